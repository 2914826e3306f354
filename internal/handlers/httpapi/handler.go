// Package httpapi serves the analysis service over HTTP
package httpapi

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/KirkDiggler/pcg-director/internal/entities"
	"github.com/KirkDiggler/pcg-director/internal/errors"
	"github.com/KirkDiggler/pcg-director/internal/repositories/history"
	"github.com/KirkDiggler/pcg-director/internal/services/director"
	"github.com/KirkDiggler/pcg-director/internal/wire"
)

const (
	// HeaderPlayerID identifies the caller
	HeaderPlayerID = "X-Player-ID"
	// AnonymousPlayerID is used when no player header is sent
	AnonymousPlayerID = "anonymous"

	// DefaultMaxBodyBytes bounds request bodies
	DefaultMaxBodyBytes = 1 << 20

	msgInternal = "internal server error"
)

// Config holds dependencies for the handler
type Config struct {
	Director director.Director
	History  history.Repository
	// MaxBodyBytes bounds request bodies (optional)
	MaxBodyBytes int64
}

// Validate ensures all required dependencies are present
func (c *Config) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}
	if c.Director == nil {
		return errors.InvalidArgument("director is required")
	}
	if c.History == nil {
		return errors.InvalidArgument("history repository is required")
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return nil
}

// Handler serves the analysis endpoints
type Handler struct {
	director     director.Director
	history      history.Repository
	maxBodyBytes int64
}

// NewHandler creates a new handler with the given configuration
func NewHandler(cfg *Config) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Handler{
		director:     cfg.Director,
		history:      cfg.History,
		maxBodyBytes: cfg.MaxBodyBytes,
	}, nil
}

// Routes returns the router with middleware and all endpoints mounted
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/openai", h.handleAnalyze)
		r.Get("/history/{playerID}", h.handleHistory)
	})

	return r
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	playerID := playerIDFrom(r)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeError(w, r, errors.WrapWithCode(err, errors.CodeInvalidArgument, "request body unreadable"))
		return
	}

	state, data, err := wire.DecodeRequest(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.director.Analyze(ctx, &director.AnalyzeInput{
		PlayerID: playerID,
		Data:     data,
		State:    state,
	})
	if err != nil {
		slog.Error("Analysis failed", "request_id", middleware.GetReqID(ctx), "player_id", playerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: msgInternal})
		return
	}

	_, err = h.history.Append(ctx, &history.AppendInput{
		PlayerID: playerID,
		State:    state,
		Data:     rawDataFor(state, data),
		Answer:   out.Answer,
		Source:   string(out.Source),
	})
	if err != nil {
		slog.Warn("Failed to record analysis", "request_id", middleware.GetReqID(ctx), "player_id", playerID, "error", err)
	}

	slog.Info("Served analysis", "request_id", middleware.GetReqID(ctx), "player_id", playerID, "source", out.Source)

	// the request envelope is echoed back verbatim under receivedData
	resp, err := wire.EncodeResponse(out.Answer, json.RawMessage(body))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, resp)
}

type historyResponse struct {
	Records []*history.Record `json:"records"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	input := &history.ListInput{PlayerID: chi.URLParam(r, "playerID")}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, r, errors.InvalidArgumentf("invalid limit %q", raw))
			return
		}
		input.Limit = limit
	}

	out, err := h.history.List(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{Records: out.Records})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": wire.StatusOK})
}

func playerIDFrom(r *http.Request) string {
	if id := r.Header.Get(HeaderPlayerID); id != "" {
		return id
	}
	return AnonymousPlayerID
}

// rawDataFor keeps the raw document only when it did not decode
func rawDataFor(state *entities.PlayerState, data string) string {
	if state != nil {
		return ""
	}
	return data
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(body); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// writeError maps err to a status. Server side failures hide their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.GetCode(err).HTTPStatus()
	message := errors.GetMessage(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "error", err)
		message = msgInternal
	}
	writeJSON(w, status, errorResponse{Error: message})
}
