package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies the transport session (UUID). One client
	// produces a new connection id per reconnect.
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// GatewayURL is the remote endpoint, when known.
	GatewayURL string `cbor:"6,keyasint,omitempty"`

	// DeviceID is the local device identity presented to the gateway.
	DeviceID string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (exactly one is set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Transport layer
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"` // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Connection state
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the websocket session layer (raw text frames).
	LayerTransport Layer = 0
	// LayerWire is the JSON frame codec layer (decoded frames).
	LayerWire Layer = 1
	// LayerClient is the connection-manager layer (handshake, heartbeat,
	// correlation, reconnect).
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol frame (request/response/event).
	CategoryMessage Category = 0
	// CategoryState indicates a connection state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a raw transport frame.
type FrameEvent struct {
	// Size is the frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the frame content, possibly truncated.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates Data was cut to the capture limit.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded wire frame.
type MessageEvent struct {
	// Kind is the frame kind name: REQUEST, RESPONSE or EVENT.
	Kind string `cbor:"1,keyasint"`

	// ID is the correlation id (requests and responses).
	ID string `cbor:"2,keyasint,omitempty"`

	// Method is the request method.
	Method string `cbor:"3,keyasint,omitempty"`

	// OK reports the response outcome.
	OK *bool `cbor:"4,keyasint,omitempty"`

	// Event is the event name (event frames).
	Event string `cbor:"5,keyasint,omitempty"`

	// Seq is the event sequence number, when present.
	Seq int64 `cbor:"6,keyasint,omitempty"`
}

// StateChangeEvent captures a connection state transition.
type StateChangeEvent struct {
	OldState string `cbor:"1,keyasint"`
	NewState string `cbor:"2,keyasint"`

	// Reason is a short human-readable cause ("heartbeat timeout",
	// "socket closed", "shutdown").
	Reason string `cbor:"3,keyasint,omitempty"`
}

// ErrorEventData captures an error at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes what was being attempted.
	Context string `cbor:"3,keyasint,omitempty"`
}
