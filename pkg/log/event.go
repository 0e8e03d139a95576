package log

import (
	"strings"
	"time"
)

// Event represents a log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID identifies one transport attempt (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// URL is the transport endpoint.
	URL string `cbor:"6,keyasint,omitempty"`

	// Channel is the bus destination the event concerns, if any.
	Channel string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (at most one of these is set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Bus frames
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Lifecycle
	Reconnect   *ReconnectEvent   `cbor:"12,keyasint,omitempty"` // Retry scheduling
	Misuse      *MisuseEvent      `cbor:"13,keyasint,omitempty"` // Tolerated caller errors
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"` // Absorbed failures
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming frame or event.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing frame or request.
	DirectionOut Direction = 1
	// DirectionLocal indicates an event with no wire traffic.
	DirectionLocal Direction = 2
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	case DirectionLocal:
		return "LOCAL"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerTransport is the socket layer.
	LayerTransport Layer = 0
	// LayerBus is the message-bus session layer (STOMP frames).
	LayerBus Layer = 1
	// LayerClient is the connection manager and public facade.
	LayerClient Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerBus:
		return "BUS"
	case LayerClient:
		return "CLIENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer returns the layer for a case-insensitive name.
func ParseLayer(s string) (Layer, bool) {
	switch strings.ToUpper(s) {
	case "TRANSPORT":
		return LayerTransport, true
	case "BUS":
		return LayerBus, true
	case "CLIENT":
		return LayerClient, true
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a bus frame carrying application data.
	CategoryMessage Category = 0
	// CategoryControl indicates a bus control frame (CONNECT, SUBSCRIBE, ...).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an absorbed failure.
	CategoryError Category = 3
	// CategoryMisuse indicates a tolerated caller error.
	CategoryMisuse Category = 4
	// CategoryReconnect indicates reconnect scheduling.
	CategoryReconnect Category = 5
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryMisuse:
		return "MISUSE"
	case CategoryReconnect:
		return "RECONNECT"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures a bus frame.
type FrameEvent struct {
	// Command is the bus command (SEND, MESSAGE, SUBSCRIBE, ...).
	Command string `cbor:"1,keyasint"`

	// Size is the encoded frame size in bytes.
	Size int `cbor:"2,keyasint"`

	// Data is the frame body (may be truncated for large frames).
	Data []byte `cbor:"3,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"4,keyasint,omitempty"`

	// SubscriptionID is set for SUBSCRIBE, UNSUBSCRIBE and MESSAGE frames.
	SubscriptionID string `cbor:"5,keyasint,omitempty"`
}

// MaxFrameData is the largest body captured in a FrameEvent.
const MaxFrameData = 1024

// NewFrameEvent builds a FrameEvent, truncating the captured body.
func NewFrameEvent(command string, size int, body []byte) *FrameEvent {
	fe := &FrameEvent{Command: command, Size: size}
	if len(body) > MaxFrameData {
		fe.Data = append([]byte(nil), body[:MaxFrameData]...)
		fe.Truncated = true
	} else if len(body) > 0 {
		fe.Data = append([]byte(nil), body...)
	}
	return fe
}

// StateChangeEvent captures connection, session and subscription lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection manager state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySession indicates a bus session state change.
	StateEntitySession StateEntity = 1
	// StateEntitySubscription indicates a subscription was created or removed.
	StateEntitySubscription StateEntity = 2
	// StateEntityTransport indicates a transport opened or closed.
	StateEntityTransport StateEntity = 3
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySession:
		return "SESSION"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	case StateEntityTransport:
		return "TRANSPORT"
	default:
		return "UNKNOWN"
	}
}

// ReconnectEvent captures reconnect scheduling.
type ReconnectEvent struct {
	// Attempt is the attempt number (1-based). Zero when an attempt is
	// only being scheduled.
	Attempt int `cbor:"1,keyasint"`

	// MaxAttempts is the configured reconnect budget.
	MaxAttempts int `cbor:"2,keyasint"`

	// Delay until the attempt fires. Stored as nanoseconds.
	Delay time.Duration `cbor:"3,keyasint,omitempty"`

	// Exhausted is set when the budget ran out.
	Exhausted bool `cbor:"4,keyasint,omitempty"`
}

// MisuseEvent captures an operation the caller should not have made.
type MisuseEvent struct {
	// Operation is the public operation that was called.
	Operation string `cbor:"1,keyasint"`

	// Reason explains why it was ignored.
	Reason string `cbor:"2,keyasint"`
}

// Misuse reasons.
const (
	ReasonNotConnected      = "not connected"
	ReasonInvalidHandle     = "invalid subscription handle"
	ReasonConnectInProgress = "connect in progress"
	ReasonAlreadyConnected  = "already connected"
	ReasonNoDefaultBinding  = "no default subscription"
	ReasonNothingToTearDown = "nothing to tear down"
	ReasonStaleHandle       = "subscription handle from an earlier session"
)

// ErrorEventData captures failures at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Code is the error or close code (if applicable).
	Code *int `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
