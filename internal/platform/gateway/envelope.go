package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// envelope covers both upstream response shapes. Exactly one of Success or
// Code is set by any given node.
type envelope struct {
	Success *bool           `json:"success,omitempty"`
	Code    *int            `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var errEnvelopeShape = errors.New("unrecognised response envelope")

// decodeEnvelope normalizes the two envelope dialects into (payload, error).
// Success-shaped envelopes succeed when success is true; code-shaped ones when
// code is 0 or 200.
func decodeEnvelope(raw []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errEnvelopeShape
	}
	switch {
	case env.Success != nil:
		if !*env.Success {
			return nil, upstreamError(env.Message)
		}
	case env.Code != nil:
		if *env.Code != 0 && *env.Code != 200 {
			return nil, upstreamError(env.Message)
		}
	default:
		return nil, errEnvelopeShape
	}
	return env.Data, nil
}

func upstreamError(message string) error {
	if message == "" {
		message = "request rejected"
	}
	return fmt.Errorf("upstream: %s", message)
}
