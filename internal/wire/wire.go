// Package wire encodes the analysis service's double-layer JSON envelopes.
//
// Requests carry the player state as a JSON string inside {"data": ...}.
// Responses carry the map parameters as a JSON string inside
// {"status": "ok", "answer": ...}.
package wire

import (
	"bytes"
	"encoding/json"

	"github.com/KirkDiggler/pcg-director/internal/entities"
	"github.com/KirkDiggler/pcg-director/internal/errors"
)

// StatusOK is the status the analysis service reports on success
const StatusOK = "ok"

// RequestEnvelope is the outer request body
type RequestEnvelope struct {
	Data string `json:"data"`
}

// Response is the decoded outer response body
type Response struct {
	Status string
	// Answer is the inner JSON document as text
	Answer string
}

type responseEnvelope struct {
	Status string          `json:"status"`
	Answer json.RawMessage `json:"answer"`
}

type serverResponse struct {
	Status       string `json:"status"`
	Answer       string `json:"answer"`
	ReceivedData any    `json:"receivedData,omitempty"`
}

// MarshalPlayerState returns the inner request document
func MarshalPlayerState(state *entities.PlayerState) (string, error) {
	if err := state.Validate(); err != nil {
		return "", err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal player state")
	}
	return string(data), nil
}

// EncodeRequest returns the full request body for state
func EncodeRequest(state *entities.PlayerState) ([]byte, error) {
	inner, err := MarshalPlayerState(state)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(RequestEnvelope{Data: inner})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request envelope")
	}
	return body, nil
}

// DecodeRequest reads a request body on the server side. It returns the raw
// inner document and, when that document is a valid player state, the
// decoded state. A missing or empty data field is an InvalidArgument error.
func DecodeRequest(body []byte) (*entities.PlayerState, string, error) {
	var envelope RequestEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, "", errors.WrapWithCode(err, errors.CodeInvalidArgument, "malformed request envelope")
	}
	if envelope.Data == "" {
		return nil, "", errors.InvalidArgument("data is required")
	}

	var state entities.PlayerState
	if !isObject([]byte(envelope.Data)) || json.Unmarshal([]byte(envelope.Data), &state) != nil {
		return nil, envelope.Data, nil
	}
	return &state, envelope.Data, nil
}

// DecodeResponse reads the outer response body. The answer may arrive as a
// JSON string (the documented form) or as an inline object.
func DecodeResponse(body []byte) (*Response, error) {
	if !isObject(body) {
		return nil, errors.DataLoss("response body is not a JSON object")
	}

	var envelope responseEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeDataLoss, "malformed response envelope")
	}

	resp := &Response{Status: envelope.Status}
	raw := bytes.TrimSpace(envelope.Answer)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		// absent answer, left empty so the inner parse reports it
	case raw[0] == '"':
		if err := json.Unmarshal(raw, &resp.Answer); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeDataLoss, "malformed answer string")
		}
	default:
		resp.Answer = string(raw)
	}

	return resp, nil
}

// EncodeResponse builds a success body on the server side. received is echoed
// back under receivedData for debugging.
func EncodeResponse(answer string, received any) ([]byte, error) {
	body, err := json.Marshal(serverResponse{
		Status:       StatusOK,
		Answer:       answer,
		ReceivedData: received,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal response envelope")
	}
	return body, nil
}

func isObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}
