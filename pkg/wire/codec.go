package wire

import (
	"encoding/json"
	"fmt"
)

// rawFrame is the union wire form of all three frame kinds.
type rawFrame struct {
	Type string `json:"type"`

	// Request / response
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	OK     *bool           `json:"ok,omitempty"`
	Error  *Error          `json:"error,omitempty"`

	// Event
	Event string `json:"event,omitempty"`
	Seq   int64  `json:"seq,omitempty"`

	// Shared payload field. Some gateways pre-serialize event payloads
	// into payloadJSON; when present it wins over payload.
	Payload     json.RawMessage `json:"payload,omitempty"`
	PayloadJSON string          `json:"payloadJSON,omitempty"`
}

// EncodeRequest encodes a request frame to wire bytes.
func EncodeRequest(req *RequestFrame) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return json.Marshal(rawFrame{
		Type:   TypeRequest,
		ID:     req.ID,
		Method: req.Method,
		Params: req.Params,
	})
}

// EncodeResponse encodes a response frame to wire bytes.
func EncodeResponse(resp *ResponseFrame) ([]byte, error) {
	ok := resp.OK
	return json.Marshal(rawFrame{
		Type:    TypeResponse,
		ID:      resp.ID,
		OK:      &ok,
		Payload: resp.Payload,
		Error:   resp.Error,
	})
}

// EncodeEvent encodes an event frame to wire bytes.
func EncodeEvent(ev *EventFrame) ([]byte, error) {
	return json.Marshal(rawFrame{
		Type:    TypeEvent,
		Event:   ev.Event,
		Payload: ev.Payload,
		Seq:     ev.Seq,
	})
}

// Decoded holds the result of decoding one wire frame. Exactly one of
// Request, Response or Event is non-nil, matching Kind.
type Decoded struct {
	Kind     FrameKind
	Request  *RequestFrame
	Response *ResponseFrame
	Event    *EventFrame
}

// Decode parses one wire frame. Unknown frame types are an error; the
// caller decides whether to drop or disconnect.
func Decode(data []byte) (*Decoded, error) {
	var raw rawFrame
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}

	switch raw.Type {
	case TypeRequest:
		req := &RequestFrame{ID: raw.ID, Method: raw.Method, Params: raw.Params}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		return &Decoded{Kind: KindRequest, Request: req}, nil

	case TypeResponse:
		if raw.ID == "" {
			return nil, fmt.Errorf("response frame missing id")
		}
		resp := &ResponseFrame{ID: raw.ID, Payload: raw.Payload, Error: raw.Error}
		if raw.OK != nil {
			resp.OK = *raw.OK
		}
		return &Decoded{Kind: KindResponse, Response: resp}, nil

	case TypeEvent, TypeEventAlias:
		if raw.Event == "" {
			return nil, fmt.Errorf("event frame missing event name")
		}
		payload := raw.Payload
		if raw.PayloadJSON != "" {
			payload = json.RawMessage(raw.PayloadJSON)
		}
		return &Decoded{
			Kind:  KindEvent,
			Event: &EventFrame{Event: raw.Event, Payload: payload, Seq: raw.Seq},
		}, nil

	case "":
		return nil, fmt.Errorf("frame missing type")
	default:
		return nil, fmt.Errorf("unknown frame type %q", raw.Type)
	}
}

// MarshalParams encodes request params for callers that hold typed values.
// A nil value produces no params field.
func MarshalParams(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode params: %w", err)
	}
	return data, nil
}
