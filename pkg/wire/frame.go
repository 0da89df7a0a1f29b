package wire

import (
	"encoding/json"
	"fmt"
)

// Frame type tags.
const (
	TypeRequest    = "req"
	TypeResponse   = "res"
	TypeEvent      = "event"
	TypeEventAlias = "evt"
)

// Well-known methods and events.
const (
	// MethodConnect is the first request sent on every connection,
	// carrying the signed device assertion.
	MethodConnect = "connect"

	// MethodPing is the liveness probe method.
	MethodPing = "ping"

	// EventChallenge is emitted by the gateway immediately after the
	// socket opens, carrying an optional signing nonce.
	EventChallenge = "connect.challenge"
)

// FrameKind identifies the variant of a decoded frame.
type FrameKind int

const (
	KindUnknown FrameKind = iota
	KindRequest
	KindResponse
	KindEvent
)

// String returns the kind name.
func (k FrameKind) String() string {
	switch k {
	case KindRequest:
		return "REQUEST"
	case KindResponse:
		return "RESPONSE"
	case KindEvent:
		return "EVENT"
	default:
		return "UNKNOWN"
	}
}

// RequestFrame is a client-to-gateway RPC request.
type RequestFrame struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Validate checks that the request is well-formed.
func (r *RequestFrame) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("request frame missing id")
	}
	if r.Method == "" {
		return fmt.Errorf("request frame missing method")
	}
	return nil
}

// ResponseFrame is a gateway-to-client RPC response, matched to its
// request by ID.
type ResponseFrame struct {
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Err returns the application error carried by a failed response.
// A failed response without an error object yields a generic Error.
func (r *ResponseFrame) Err() error {
	if r.OK {
		return nil
	}
	if r.Error != nil {
		return r.Error
	}
	return &Error{Code: "unknown", Message: "request failed"}
}

// EventFrame is an asynchronous gateway-to-client notification.
type EventFrame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
}

// Error is a structured application-level RPC error. It never triggers
// reconnection; it is surfaced verbatim to the caller that issued the
// matching request.
type Error struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Details json.RawMessage `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// ChallengePayload is the payload of the EventChallenge event.
type ChallengePayload struct {
	Nonce string `json:"nonce,omitempty"`
}

// DecodeChallenge extracts the challenge nonce from an event payload.
// The nonce may be a JSON string or a bare number; both forms occur in
// deployed gateways and are normalized to their textual form.
func DecodeChallenge(payload json.RawMessage) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}
	var p struct {
		Nonce json.RawMessage `json:"nonce"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return "", fmt.Errorf("failed to decode challenge payload: %w", err)
	}
	if len(p.Nonce) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(p.Nonce, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(p.Nonce, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("challenge nonce is neither string nor number")
}
