package transport

import "errors"

// Transport errors.
var (
	ErrNotOpen          = errors.New("transport not open")
	ErrConnectionClosed = errors.New("connection closed")
	ErrInvalidURL       = errors.New("invalid transport url")
)

// Close codes used by this module (RFC 6455 section 7.4.1).
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseProtocol  = 1002
	CloseAbnormal  = 1006
	CloseInternal  = 1011
)

// ReadyState is the numeric readiness of a Transport.
type ReadyState int32

const (
	// StateConnecting indicates the socket is being established.
	StateConnecting ReadyState = 0

	// StateOpen indicates the socket can send and receive.
	StateOpen ReadyState = 1

	// StateClosing indicates a close was requested.
	StateClosing ReadyState = 2

	// StateClosed indicates the socket is gone.
	StateClosed ReadyState = 3
)

// String returns the ready state name.
func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Events are the callbacks a Transport invokes.
// Nil callbacks are skipped.
type Events struct {
	// OnOpen is called once the socket is ready.
	OnOpen func()

	// OnMessage is called with each inbound message.
	OnMessage func(data []byte)

	// OnClose is called exactly once when the socket is gone.
	OnClose func(code int, reason string)
}

// Transport is a duplex message channel.
// Implemented by the WebSocket transport returned from WebSocketDialer.
type Transport interface {
	// Send writes one message. Returns ErrNotOpen unless ReadyState is StateOpen.
	Send(data []byte) error

	// Close starts closing the socket. OnClose follows asynchronously.
	// Calling Close more than once is a no-op.
	Close(code int, reason string) error

	// ReadyState returns the current readiness.
	ReadyState() ReadyState
}

// Dialer creates transports.
type Dialer interface {
	// Dial starts connecting to url and returns immediately. An error is
	// returned only when the attempt cannot start at all (for example an
	// unparsable url); in that case no events fire.
	Dial(url string, events Events) (Transport, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(url string, events Events) (Transport, error)

// Dial calls f(url, events).
func (f DialerFunc) Dial(url string, events Events) (Transport, error) {
	return f(url, events)
}

// Compile-time interface satisfaction checks.
var (
	_ Dialer    = (*WebSocketDialer)(nil)
	_ Dialer    = DialerFunc(nil)
	_ Transport = (*wsTransport)(nil)
)
