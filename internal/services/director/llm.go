package director

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KirkDiggler/pcg-director/internal/errors"
)

// LLM defaults
const (
	DefaultLLMBaseURL = "https://api.openai.com/v1"
	DefaultLLMModel   = "gpt-4o"
	DefaultLLMTimeout = 30 * time.Second

	maxCompletionBytes = 1 << 20
)

const systemPrompt = `You are an adaptive game AI director.
Your goal is to analyze the player's skill and current state and choose the
procedural generation parameters for the next map that keep the player in flow.

Follow these rules and answer with JSON only:
1. Player has high health and kills enemies quickly -> raise difficulty, add traps, increase enemy aggression.
2. Player dies often or progresses slowly -> lower difficulty, add cover, add healing items.
3. Return only the JSON document, no explanation.

JSON format:
{
  "analysis": "player is bored (easy) -> build tension",
  "difficultyMultiplier": 1.0 to 5.0 (float),
  "enemySpawnRate": 0.0 to 1.0 (float, enemy density),
  "enemyAggression": "Low" | "Medium" | "High",
  "mapComplexity": 0.0 to 1.0 (float, maze complexity),
  "obstacleType": "Cover" | "Trap" | "OpenArea",
  "atmosphere": "Dark_Foggy" | "Bright_Clear" | "Red_Alarm"
}`

// LLMConfig contains configuration for the LLM director
type LLMConfig struct {
	// APIKey is sent as a bearer token
	APIKey string
	// BaseURL of an OpenAI compatible API (optional)
	BaseURL string
	// Model name (optional)
	Model string
	// HTTPClient used for requests (optional)
	HTTPClient *http.Client
	// Timeout per completion (optional)
	Timeout time.Duration
}

// Validate validates the config and sets defaults
func (cfg *LLMConfig) Validate() error {
	if cfg == nil {
		return errors.InvalidArgument("config is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultLLMBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultLLMModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultLLMTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("APIKey", cfg.APIKey, vb)
	errors.ValidateHTTPURL("BaseURL", cfg.BaseURL, vb)
	if cfg.Timeout < 0 {
		vb.Field("Timeout", "must not be negative")
	}
	return vb.Build()
}

// LLMDirector asks a chat completion model for the answer. Upstream failures
// produce the fallback answer, never an error, so the game keeps running.
type LLMDirector struct {
	apiKey  string
	url     string
	model   string
	http    *http.Client
	timeout time.Duration
}

// NewLLMDirector creates an LLM backed director
func NewLLMDirector(cfg *LLMConfig) (*LLMDirector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &LLMDirector{
		apiKey:  cfg.APIKey,
		url:     strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions",
		model:   cfg.Model,
		http:    cfg.HTTPClient,
		timeout: cfg.Timeout,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Analyze implements Director
func (d *LLMDirector) Analyze(ctx context.Context, input *AnalyzeInput) (*AnalyzeOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	slog.Info("Requesting completion", "player_id", input.PlayerID, "model", d.model)

	content, err := d.complete(ctx, input.Data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.WrapWithCode(ctxErr, errors.CodeCanceled, "analysis abandoned")
		}
		slog.Error("Completion failed, serving fallback", "player_id", input.PlayerID, "error", err)
		return fallbackOutput(), nil
	}

	return &AnalyzeOutput{Answer: content, Source: SourceLLM}, nil
}

func (d *LLMDirector) complete(ctx context.Context, data string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: d.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf("Current player state data: %s", data)},
		},
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal completion request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.http.Do(req)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeUnavailable, "completion request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxCompletionBytes))
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeUnavailable, "failed to read completion")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf(errors.FromHTTPStatus(resp.StatusCode), "completion returned status %d", resp.StatusCode).
			WithMeta("status_code", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return "", errors.WrapWithCode(err, errors.CodeDataLoss, "malformed completion")
	}
	if len(decoded.Choices) == 0 {
		return "", errors.DataLoss("completion has no choices")
	}

	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return "", errors.WrapWithCode(err, errors.CodeDataLoss, "completion content is not a JSON object")
	}
	if doc == nil {
		return "", errors.DataLoss("completion content is null")
	}
	return content, nil
}
