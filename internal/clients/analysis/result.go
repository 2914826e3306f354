package analysis

import (
	"github.com/KirkDiggler/pcg-director/internal/entities"
)

// Outcome classifies how a request ended
type Outcome int

const (
	// OutcomeSuccess means the answer parsed and was broadcast
	OutcomeSuccess Outcome = iota
	// OutcomeTransportError means the service could not be reached
	OutcomeTransportError
	// OutcomeStatusError means the service replied with a status other than 200
	OutcomeStatusError
	// OutcomeParseError means the reply or its answer could not be decoded
	OutcomeParseError
	// OutcomeInvalidRequest means the player state could not be encoded
	OutcomeInvalidRequest
	// OutcomeCanceled means the handle was canceled or the dispatcher closed
	OutcomeCanceled
	// OutcomeStale means a newer response was already broadcast
	OutcomeStale
)

var outcomeNames = map[Outcome]string{
	OutcomeSuccess:        "success",
	OutcomeTransportError: "transport_error",
	OutcomeStatusError:    "status_error",
	OutcomeParseError:     "parse_error",
	OutcomeInvalidRequest: "invalid_request",
	OutcomeCanceled:       "canceled",
	OutcomeStale:          "stale",
}

// String returns the snake_case outcome name
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// MarshalText encodes the outcome by name
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is the terminal state of one analysis request.
//
// Params is set on success. On an answer parse failure it holds the default
// params so callers that want the old "fall back to defaults" behavior can
// still use them.
type Result struct {
	RequestID  string              `json:"requestId"`
	Outcome    Outcome             `json:"outcome"`
	Params     *entities.MapParams `json:"params,omitempty"`
	StatusCode int                 `json:"statusCode,omitempty"`
	Err        error               `json:"-"`
}

// OK reports whether the request succeeded
func (r *Result) OK() bool {
	return r != nil && r.Outcome == OutcomeSuccess
}

// ErrorMessage returns the error text, empty on success
func (r *Result) ErrorMessage() string {
	if r == nil || r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
