package subscription

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/busline/busline-go/pkg/bus"
	"github.com/busline/busline-go/pkg/log"
)

// Registry errors.
var (
	ErrNotConnected = errors.New("subscription: not connected")
	ErrNoBinding    = errors.New("subscription: no default handler bound")
)

// Registry holds the default binding and the live subscriptions.
type Registry struct {
	mu     sync.Mutex
	logger log.Logger

	// Default binding, kept across reconnects.
	channel string
	handler bus.Handler

	// Subscription installed for the binding on the current session.
	def bus.Subscription

	// Custom subscriptions by ID.
	custom map[string]bus.Subscription
}

// NewRegistry creates an empty registry.
func NewRegistry(logger log.Logger) *Registry {
	return &Registry{
		logger: log.OrNoop(logger),
		custom: make(map[string]bus.Subscription),
	}
}

// Bind records the default channel and handler without subscribing.
func (r *Registry) Bind(channel string, handler bus.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channel = channel
	r.handler = handler
}

// Binding returns the default channel and handler.
func (r *Registry) Binding() (string, bus.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel, r.handler
}

// Default returns the installed default subscription, or nil.
func (r *Registry) Default() bus.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.def
}

// CustomCount returns the number of tracked custom subscriptions.
func (r *Registry) CustomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.custom)
}

// InstallDefault unsubscribes the current default, if any, then subscribes
// handler to channel on s and records both as the new default.
func (r *Registry) InstallDefault(s bus.Session, channel string, handler bus.Handler) (bus.Subscription, error) {
	if s == nil {
		r.misuse("InstallDefault", log.ReasonNotConnected)
		return nil, ErrNotConnected
	}
	if handler == nil {
		return nil, ErrNoBinding
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old := r.def; old != nil {
		r.def = nil
		if err := old.Unsubscribe(); err != nil {
			r.logError("unsubscribe default", old.Channel(), err)
		}
		r.emitSubscription(old, "ACTIVE", "REMOVED", "replaced")
	}

	r.channel = channel
	r.handler = handler

	sub, err := s.Subscribe(channel, handler)
	if err != nil {
		return nil, fmt.Errorf("install default %s: %w", channel, err)
	}
	r.def = sub
	r.emitSubscription(sub, "", "ACTIVE", "default")
	return sub, nil
}

// RemoveDefault unsubscribes the default subscription and forgets the
// binding's handler, so reconnects no longer reinstall it.
func (r *Registry) RemoveDefault(s bus.Session) {
	if s == nil {
		r.misuse("RemoveDefault", log.ReasonNotConnected)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.def
	if old == nil {
		r.misuse("RemoveDefault", log.ReasonNoDefaultBinding)
		return
	}
	r.def = nil
	r.handler = nil
	if err := old.Unsubscribe(); err != nil {
		r.logError("unsubscribe default", old.Channel(), err)
	}
	r.emitSubscription(old, "ACTIVE", "REMOVED", "default removed")
}

// AddCustom subscribes handler to channel on s. It returns nil when s is
// nil or the subscribe fails; both are logged.
func (r *Registry) AddCustom(s bus.Session, channel string, handler bus.Handler) bus.Subscription {
	if s == nil {
		r.misuse("AddCustom", log.ReasonNotConnected)
		return nil
	}

	sub, err := s.Subscribe(channel, handler)
	if err != nil {
		r.logError("subscribe", channel, err)
		return nil
	}

	r.mu.Lock()
	r.custom[sub.ID()] = sub
	r.mu.Unlock()

	r.emitSubscription(sub, "", "ACTIVE", "custom")
	return sub
}

// RemoveCustom unsubscribes sub. Invalid handles, a nil session and
// handles issued by an earlier session are rejected with a misuse event
// and leave the registry untouched. It reports whether UNSUBSCRIBE was
// issued. Removing the default handle through here also clears the
// default.
func (r *Registry) RemoveCustom(s bus.Session, sub bus.Subscription) bool {
	if !bus.Valid(sub) {
		r.misuse("RemoveCustom", log.ReasonInvalidHandle)
		return false
	}
	if s == nil {
		r.misuse("RemoveCustom", log.ReasonNotConnected)
		return false
	}
	if !bus.IssuedBy(sub, s) {
		r.misuse("RemoveCustom", log.ReasonStaleHandle)
		return false
	}

	r.mu.Lock()
	if cur, ok := r.custom[sub.ID()]; ok && sameHandle(cur, sub) {
		delete(r.custom, sub.ID())
	}
	if r.def != nil && sameHandle(r.def, sub) {
		r.def = nil
	}
	r.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		r.logError("unsubscribe", sub.Channel(), err)
		return false
	}
	r.emitSubscription(sub, "ACTIVE", "REMOVED", "custom removed")
	return true
}

// sameHandle reports whether a and b are the same handle. Handles of
// non-comparable types never match.
func sameHandle(a, b bus.Subscription) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// Forget clears sub as the default when it still is, without
// unsubscribing. Used when the session that issued it went away while it
// was being installed.
func (r *Registry) Forget(sub bus.Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.def != nil && sameHandle(r.def, sub) {
		r.def = nil
	}
}

// Discard drops every subscription handle without unsubscribing. The
// default binding is kept for the next InstallDefault.
func (r *Registry) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.def == nil && len(r.custom) == 0 {
		return
	}
	r.def = nil
	r.custom = make(map[string]bus.Subscription)
	r.emit(log.Event{
		Category: log.CategoryState,
		Channel:  r.channel,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySubscription,
			OldState: "ACTIVE",
			NewState: "DISCARDED",
			Reason:   "transport closed",
		},
	})
}

func (r *Registry) emit(e log.Event) {
	e.Timestamp = time.Now()
	e.Direction = log.DirectionLocal
	e.Layer = log.LayerClient
	r.logger.Log(e)
}

func (r *Registry) emitSubscription(sub bus.Subscription, from, to, reason string) {
	r.emit(log.Event{
		Category: log.CategoryState,
		Channel:  sub.Channel(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySubscription,
			OldState: from,
			NewState: to,
			Reason:   reason + " " + sub.ID(),
		},
	})
}

func (r *Registry) misuse(op, reason string) {
	r.emit(log.Event{
		Category: log.CategoryMisuse,
		Misuse:   &log.MisuseEvent{Operation: op, Reason: reason},
	})
}

func (r *Registry) logError(op, channel string, err error) {
	r.emit(log.Event{
		Category: log.CategoryError,
		Channel:  channel,
		Error: &log.ErrorEventData{
			Layer:   log.LayerClient,
			Message: err.Error(),
			Context: op,
		},
	})
}
