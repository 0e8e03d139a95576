package stomp

import "github.com/busline/busline-go/pkg/bus"

// Subscription is a STOMP subscription handle.
// The zero value and a nil pointer are invalid handles: ID returns "" and
// Unsubscribe does nothing.
type Subscription struct {
	id      string
	channel string
	handler bus.Handler
	session *Session
}

// ID returns the STOMP subscription id.
func (s *Subscription) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Channel returns the subscribed destination.
func (s *Subscription) Channel() string {
	if s == nil {
		return ""
	}
	return s.channel
}

// Unsubscribe sends UNSUBSCRIBE the first time it is called on a live
// session; later calls and calls after the session is gone are no-ops.
func (s *Subscription) Unsubscribe() error {
	if s == nil || s.session == nil {
		return nil
	}
	return s.session.unsubscribe(s)
}

var _ bus.Subscription = (*Subscription)(nil)

// Owner returns the session that issued the subscription.
func (s *Subscription) Owner() bus.Session {
	if s == nil || s.session == nil {
		return nil
	}
	return s.session
}
