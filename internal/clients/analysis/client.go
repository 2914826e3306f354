// Package analysis is the client side of the map analysis bridge: it posts
// player telemetry to the analysis service and broadcasts the tuning
// parameters that come back.
package analysis

//go:generate mockgen -destination=mock/mock_client.go -package=analysismock github.com/KirkDiggler/pcg-director/internal/clients/analysis Client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/pcg-director/internal/entities"
	"github.com/KirkDiggler/pcg-director/internal/errors"
	"github.com/KirkDiggler/pcg-director/internal/pkg/idgen"
	"github.com/KirkDiggler/pcg-director/internal/tags"
	"github.com/KirkDiggler/pcg-director/internal/wire"
)

const (
	// DefaultURL is the local development endpoint
	DefaultURL = "http://localhost:3000/api/openai"

	// HeaderPlayerID identifies the player to the analysis service
	HeaderPlayerID = "X-Player-ID"

	// maxResponseBytes bounds how much of a reply is read
	maxResponseBytes = 1 << 20
)

// Client defines the analysis bridge
type Client interface {
	// Analyze runs one round trip and blocks until it finishes. A successful
	// result is broadcast before Analyze returns.
	Analyze(ctx context.Context, state *entities.PlayerState) *Result

	// RequestMapAnalysis starts a round trip and returns its handle
	// immediately
	RequestMapAnalysis(ctx context.Context, state *entities.PlayerState) *Request

	// OnMapParamsReceived registers a listener for successful results and
	// returns its subscription ID
	OnMapParamsReceived(fn MapParamsHandler) string

	// Unsubscribe removes a listener
	Unsubscribe(subscriptionID string) error

	// Close invalidates every outstanding request and waits for their
	// goroutines to exit. Must not be called from a listener.
	Close() error
}

// Config contains configuration options for the analysis client
type Config struct {
	// URL of the analysis endpoint (optional, defaults to DefaultURL)
	URL string
	// HTTPClient used for requests (optional)
	HTTPClient *http.Client
	// Timeout per request; zero waits as long as the caller's context allows
	Timeout time.Duration
	// PlayerID is sent in the X-Player-ID header when set
	PlayerID string
	// Registry resolves tag strings (optional, defaults to tags.DefaultRegistry)
	Registry *tags.Registry
	// EventBus carries broadcasts (optional, defaults to a private bus)
	EventBus events.EventBus
	// IDGenerator names requests (optional, defaults to UUIDs)
	IDGenerator idgen.Generator
	// DropStale suppresses a success that is older than one already
	// broadcast. Off by default: overlapping requests race.
	DropStale bool
}

// Validate validates the Config and sets defaults if not provided
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.InvalidArgument("config is required")
	}

	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Registry == nil {
		cfg.Registry = tags.DefaultRegistry()
	}
	if cfg.EventBus == nil {
		cfg.EventBus = events.NewBus()
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = idgen.NewUUID(idgen.PrefixRequest)
	}

	vb := errors.NewValidationBuilder()
	errors.ValidateHTTPURL("URL", cfg.URL, vb)
	if cfg.Timeout < 0 {
		vb.Field("Timeout", "must not be negative")
	}
	return vb.Build()
}

type client struct {
	url       string
	playerID  string
	http      *http.Client
	timeout   time.Duration
	registry  *tags.Registry
	bus       events.EventBus
	idGen     idgen.Generator
	dropStale bool
	source    *bridgeEntity

	mu       sync.Mutex
	closed   bool
	seq      uint64
	inflight map[string]*Request

	// deliverMu serializes the validity check and broadcast of completions
	deliverMu     sync.Mutex
	lastDelivered uint64

	wg sync.WaitGroup
}

// New creates a new analysis client with the given configuration
func New(cfg *Config) (Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &client{
		url:       cfg.URL,
		playerID:  cfg.PlayerID,
		http:      cfg.HTTPClient,
		timeout:   cfg.Timeout,
		registry:  cfg.Registry,
		bus:       cfg.EventBus,
		idGen:     cfg.IDGenerator,
		dropStale: cfg.DropStale,
		source:    &bridgeEntity{id: cfg.IDGenerator.Generate()},
		inflight:  make(map[string]*Request),
	}, nil
}

func (c *client) Analyze(ctx context.Context, state *entities.PlayerState) *Result {
	return c.RequestMapAnalysis(ctx, state).Result()
}

func (c *client) RequestMapAnalysis(ctx context.Context, state *entities.PlayerState) *Request {
	id := c.idGen.Generate()

	body, err := wire.EncodeRequest(state)
	if err != nil {
		slog.Warn("Rejected analysis request", "request_id", id, "error", err)
		return completedRequest(id, &Result{Outcome: OutcomeInvalidRequest, Err: err})
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return completedRequest(id, &Result{
			Outcome: OutcomeCanceled,
			Err:     errors.Canceled("analysis client is closed"),
		})
	}

	reqCtx, cancel := context.WithCancel(ctx)
	if c.timeout > 0 {
		var timeoutCancel context.CancelFunc
		reqCtx, timeoutCancel = context.WithTimeout(reqCtx, c.timeout)
		parentCancel := cancel
		cancel = func() {
			timeoutCancel()
			parentCancel()
		}
	}

	c.seq++
	req := newRequest(id, c.seq, cancel)
	c.inflight[id] = req
	c.wg.Add(1)
	c.mu.Unlock()

	slog.Info("Sending analysis request", "request_id", id, "url", c.url)

	go c.run(reqCtx, req, body)
	return req
}

func (c *client) run(ctx context.Context, req *Request, body []byte) {
	defer c.wg.Done()
	defer req.cancel()

	result := c.roundTrip(ctx, req, body)
	c.complete(ctx, req, result)
}

// roundTrip performs the HTTP exchange and decodes the reply
func (c *client) roundTrip(ctx context.Context, req *Request, body []byte) *Result {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return &Result{Outcome: OutcomeInvalidRequest, Err: errors.Wrap(err, "failed to create request")}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.playerID != "" {
		httpReq.Header.Set(HeaderPlayerID, c.playerID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if !req.Valid() || errors.Is(ctx.Err(), context.Canceled) {
			return canceledResult()
		}
		slog.Error("Analysis service unreachable", "request_id", req.id, "url", c.url, "error", err)
		return &Result{
			Outcome: OutcomeTransportError,
			Err:     errors.WrapWithCode(err, transportCode(ctx), "analysis service unreachable"),
		}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		slog.Error("Analysis service returned error status", "request_id", req.id, "status_code", resp.StatusCode)
		code := errors.FromHTTPStatus(resp.StatusCode)
		if code == errors.CodeOK {
			// only a plain 200 carries an answer
			code = errors.CodeFailedPrecondition
		}
		return &Result{
			Outcome:    OutcomeStatusError,
			StatusCode: resp.StatusCode,
			Err: errors.Newf(code, "analysis service returned status %d", resp.StatusCode).
				WithMeta("status_code", resp.StatusCode),
		}
	}

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		if !req.Valid() || errors.Is(ctx.Err(), context.Canceled) {
			return canceledResult()
		}
		slog.Error("Failed to read analysis response", "request_id", req.id, "error", err)
		return &Result{
			Outcome:    OutcomeTransportError,
			StatusCode: resp.StatusCode,
			Err:        errors.WrapWithCode(err, transportCode(ctx), "failed to read analysis response"),
		}
	}

	decoded, err := wire.DecodeResponse(respBody)
	if err != nil {
		slog.Warn("Malformed analysis response", "request_id", req.id, "error", err)
		return &Result{Outcome: OutcomeParseError, StatusCode: resp.StatusCode, Err: err}
	}
	if decoded.Status != "" && decoded.Status != wire.StatusOK {
		slog.Debug("Analysis response has unexpected status field", "request_id", req.id, "status", decoded.Status)
	}

	params, err := wire.ParseMapParams(decoded.Answer, c.registry)
	if err != nil {
		slog.Warn("Failed to parse analysis answer, using defaults", "request_id", req.id, "error", err)
		return &Result{Outcome: OutcomeParseError, StatusCode: resp.StatusCode, Params: params, Err: err}
	}
	if params.HasUnresolvedTags() {
		slog.Warn("Analysis answer contains unregistered tags", "request_id", req.id, "tags", params.UnresolvedTags)
	}

	return &Result{Outcome: OutcomeSuccess, StatusCode: resp.StatusCode, Params: params}
}

// complete checks the handle is still valid, broadcasts a success and
// releases the handle. The request stays in inflight until it has finished
// so Close can always reach it.
func (c *client) complete(ctx context.Context, req *Request, result *Result) {
	defer func() {
		c.mu.Lock()
		delete(c.inflight, req.id)
		c.mu.Unlock()
	}()

	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	switch {
	case !req.Valid() || c.isClosed():
		result = canceledResult()
	case result.Outcome != OutcomeSuccess:
	case c.dropStale && req.seq < c.lastDelivered:
		slog.Info("Dropping stale analysis response", "request_id", req.id, "sequence", req.seq, "last_delivered", c.lastDelivered)
		result = &Result{
			Outcome:    OutcomeStale,
			StatusCode: result.StatusCode,
			Params:     result.Params,
			Err:        errors.Aborted("a newer analysis was already delivered"),
		}
	default:
		if req.seq > c.lastDelivered {
			c.lastDelivered = req.seq
		}
		slog.Info("Analysis complete",
			"request_id", req.id,
			"atmosphere", result.Params.Atmosphere.String(),
			"difficulty_multiplier", result.Params.DifficultyMultiplier,
		)
		c.broadcast(context.WithoutCancel(ctx), req.id, result.Params)
	}

	req.finish(result)
}

func (c *client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	pending := make([]*Request, 0, len(c.inflight))
	for _, req := range c.inflight {
		pending = append(pending, req)
	}
	c.mu.Unlock()

	for _, req := range pending {
		req.Cancel()
	}
	c.wg.Wait()

	slog.Info("Analysis client closed", "canceled_requests", len(pending))
	return nil
}

func (c *client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// transportCode reports a timeout as DeadlineExceeded, anything else as
// Unavailable
func transportCode(ctx context.Context) errors.Code {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.CodeDeadlineExceeded
	}
	return errors.CodeUnavailable
}

func canceledResult() *Result {
	return &Result{
		Outcome: OutcomeCanceled,
		Err:     errors.Canceled("analysis request canceled"),
	}
}
