package bus

import (
	"encoding/json"
	"reflect"

	"github.com/busline/busline-go/pkg/log"
	"github.com/busline/busline-go/pkg/transport"
)

// Message is one inbound message delivered to a Handler.
type Message struct {
	// Channel is the destination the message was published to.
	Channel string

	// SubscriptionID identifies the subscription that received it.
	SubscriptionID string

	// Header holds the protocol headers.
	Header map[string]string

	// Body is the raw payload, normally JSON text.
	Body []byte
}

// Decode unmarshals the JSON body into v.
func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Body, v)
}

// Handler receives messages for one subscription.
type Handler func(Message)

// Subscription is a handle to one channel registration.
type Subscription interface {
	// ID returns the protocol subscription id; empty for an unusable handle.
	ID() string

	// Channel returns the subscribed destination.
	Channel() string

	// Unsubscribe cancels the registration. Repeated calls are no-ops.
	Unsubscribe() error
}

// Session is a message-bus session over one transport.
type Session interface {
	// Connect arms the handshake with the given protocol headers. onReady is
	// called once the broker accepts the session.
	Connect(header map[string]string, onReady func())

	// HandleOpen is called when the transport opens.
	HandleOpen()

	// HandleMessage is called with each inbound transport message.
	HandleMessage(data []byte)

	// Subscribe registers handler for channel.
	Subscribe(channel string, handler Handler) (Subscription, error)

	// Send publishes body to channel.
	Send(channel string, header map[string]string, body string) error

	// Disconnect ends the session gracefully and closes the transport.
	Disconnect() error

	// CleanUp releases session state after the transport is lost.
	CleanUp()
}

// Owned is implemented by handles that know which session issued them.
type Owned interface {
	Owner() Session
}

// IssuedBy reports whether sub was issued by s. Handles that do not
// implement Owned are taken to belong to s.
func IssuedBy(sub Subscription, s Session) bool {
	o, ok := sub.(Owned)
	if !ok {
		return true
	}
	return o.Owner() == s
}

// SessionConfig is passed to a Factory for every transport attempt.
type SessionConfig struct {
	// ConnectionID identifies the transport attempt in log events.
	ConnectionID string

	// URL is the transport endpoint.
	URL string

	// Logger receives frame and error events.
	Logger log.Logger
}

// Factory creates a Session bound to t.
type Factory func(t transport.Transport, cfg SessionConfig) Session

// Valid reports whether sub is a usable handle: not nil, not a nil
// pointer, and carrying a non-empty id.
func Valid(sub Subscription) bool {
	if sub == nil {
		return false
	}
	if v := reflect.ValueOf(sub); v.Kind() == reflect.Pointer && v.IsNil() {
		return false
	}
	return sub.ID() != ""
}
