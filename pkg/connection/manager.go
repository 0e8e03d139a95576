package connection

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/busline/busline-go/pkg/bus"
	"github.com/busline/busline-go/pkg/log"
	"github.com/busline/busline-go/pkg/subscription"
	"github.com/busline/busline-go/pkg/transport"
)

// Connection errors.
var (
	ErrConnectInProgress = errors.New("connection: connect in progress")
	ErrInvalidConfig     = errors.New("connection: invalid config")
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no transport and no pending retry.
	StateDisconnected State = iota

	// StateConnecting indicates a transport is being dialed or the bus
	// handshake is in progress.
	StateConnecting

	// StateConnected indicates the handshake completed and the default
	// subscription was installed.
	StateConnected

	// StateReconnecting indicates a retry timer is pending.
	StateReconnecting

	// StateFailed indicates the reconnect budget ran out.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// AfterFunc schedules f after d and returns a function that cancels it.
type AfterFunc func(d time.Duration, f func()) (stop func() bool)

// Config configures a Manager.
type Config struct {
	// MaxReconnectAttempts bounds the reconnect count (default 30).
	MaxReconnectAttempts int

	// ReconnectInterval is the delay before each attempt (default 1s).
	ReconnectInterval time.Duration

	// BackoffMultiplier grows the interval per attempt (default 1, fixed).
	BackoffMultiplier float64

	// MaxReconnectInterval caps the grown interval (default 60s).
	MaxReconnectInterval time.Duration

	// Jitter adds up to this fraction of the delay at random (default 0).
	Jitter float64

	// Dialer creates transports. Required.
	Dialer transport.Dialer

	// SessionFactory wraps each transport in a bus session. Required.
	SessionFactory bus.Factory

	// Registry holds the default binding. Created when nil.
	Registry *subscription.Registry

	// Logger receives lifecycle events.
	Logger log.Logger

	// AfterFunc schedules reconnect attempts (default time.AfterFunc).
	AfterFunc AfterFunc

	// NewConnectionID names each transport attempt (default random UUID).
	NewConnectionID func() string
}

// Manager owns the transport and bus session of one logical connection.
type Manager struct {
	cfg      Config
	logger   log.Logger
	registry *subscription.Registry
	backoff  *Backoff

	mu                  sync.Mutex
	state               State
	url                 string
	onReconnected       func()
	onStateChange       func(from, to State)
	transport           transport.Transport
	session             bus.Session
	connID              string
	ready               bool
	reconnectCount      int
	disconnectRequested bool
	stopTimer           func() bool

	// gen identifies the current transport attempt. Events carrying an
	// older value are ignored.
	gen uint64
}

// NewManager creates a manager in StateDisconnected.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Dialer == nil {
		return nil, fmt.Errorf("%w: dialer is required", ErrInvalidConfig)
	}
	if cfg.SessionFactory == nil {
		return nil, fmt.Errorf("%w: session factory is required", ErrInvalidConfig)
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		}
	}
	if cfg.NewConnectionID == nil {
		cfg.NewConnectionID = uuid.NewString
	}

	logger := log.OrNoop(cfg.Logger)
	registry := cfg.Registry
	if registry == nil {
		registry = subscription.NewRegistry(logger)
	}

	return &Manager{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		backoff: NewBackoffWithConfig(BackoffConfig{
			Initial:    cfg.ReconnectInterval,
			Max:        cfg.MaxReconnectInterval,
			Multiplier: cfg.BackoffMultiplier,
			Jitter:     cfg.Jitter,
		}),
		state: StateDisconnected,
	}, nil
}

// Connect dials url and starts the bus handshake with header. On success
// handler is subscribed to channel as the default subscription. After a
// recovered drop onReconnected is called once the new transport opens.
//
// Connect is a no-op while connected and returns ErrConnectInProgress
// while connecting or reconnecting. A dial error is logged and leaves the
// manager Disconnected; it is not returned.
func (m *Manager) Connect(header map[string]string, url, channel string, handler bus.Handler, onReconnected func()) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		m.misuse("Connect", log.ReasonAlreadyConnected)
		return nil
	case StateConnecting, StateReconnecting:
		m.mu.Unlock()
		m.misuse("Connect", log.ReasonConnectInProgress)
		return ErrConnectInProgress
	}

	m.url = url
	m.onReconnected = onReconnected
	m.reconnectCount = 0
	m.disconnectRequested = false
	m.backoff.Reset()
	m.registry.Bind(channel, handler)

	sess, gen, err := m.dialLocked()
	if err != nil {
		m.logErrorLocked("dial", fmt.Errorf("dial %s: %w", url, err))
		m.mu.Unlock()
		return nil
	}
	notify := m.transitionLocked(StateConnecting, "connect")
	m.mu.Unlock()

	notify()
	sess.Connect(header, func() { m.handleReady(gen) })
	return nil
}

// Close tears down the connection. A connected session disconnects
// gracefully; an in-flight transport is closed; a pending retry is
// cancelled. With nothing to tear down Close only logs.
func (m *Manager) Close() {
	m.mu.Lock()
	switch {
	case m.state == StateConnected && m.session != nil && !m.disconnectRequested:
		sess := m.session
		m.disconnectRequested = true
		m.mu.Unlock()

		if err := sess.Disconnect(); err != nil {
			m.logError("disconnect", err)
		}

	case m.state == StateConnecting && m.transport != nil && !m.disconnectRequested:
		t := m.transport
		m.disconnectRequested = true
		m.mu.Unlock()

		if err := t.Close(transport.CloseNormal, "close requested"); err != nil {
			m.logError("close transport", err)
		}

	case m.state == StateReconnecting:
		if m.stopTimer != nil {
			m.stopTimer()
			m.stopTimer = nil
		}
		m.gen++
		notify := m.transitionLocked(StateDisconnected, "close requested")
		m.mu.Unlock()
		notify()

	default:
		m.mu.Unlock()
		m.misuse("Close", log.ReasonNothingToTearDown)
	}
}

// IsConnected reports whether the handshake completed and the transport
// is open. The answer is a snapshot.
func (m *Manager) IsConnected() bool {
	return m.Session() != nil
}

// Status is an alias for IsConnected.
func (m *Manager) Status() bool {
	return m.IsConnected()
}

// Session returns the live bus session, or nil unless IsConnected would
// report true.
func (m *Manager) Session() bus.Session {
	m.mu.Lock()
	t, sess, ready := m.transport, m.session, m.ready
	m.mu.Unlock()

	if !ready || t == nil || sess == nil {
		return nil
	}
	if t.ReadyState() != transport.StateOpen {
		return nil
	}
	return sess
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ReconnectCount returns the number of attempts since the last open.
func (m *Manager) ReconnectCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnectCount
}

// ConnectionID returns the id of the current transport attempt.
func (m *Manager) ConnectionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connID
}

// Registry returns the subscription registry.
func (m *Manager) Registry() *subscription.Registry {
	return m.registry
}

// OnStateChange sets a callback invoked after every state transition.
func (m *Manager) OnStateChange(fn func(from, to State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// SetOnReconnected replaces the callback invoked after a recovered drop.
func (m *Manager) SetOnReconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnected = fn
}

// dialLocked starts a new transport attempt and returns its session.
func (m *Manager) dialLocked() (bus.Session, uint64, error) {
	m.gen++
	gen := m.gen
	events := transport.Events{
		OnOpen:    func() { m.handleOpen(gen) },
		OnMessage: func(data []byte) { m.handleMessage(gen, data) },
		OnClose:   func(code int, reason string) { m.handleClose(gen, code, reason) },
	}

	t, err := m.cfg.Dialer.Dial(m.url, events)
	if err != nil {
		return nil, 0, err
	}

	m.connID = m.cfg.NewConnectionID()
	sess := m.cfg.SessionFactory(t, bus.SessionConfig{
		ConnectionID: m.connID,
		URL:          m.url,
		Logger:       m.logger,
	})
	m.transport = t
	m.session = sess
	m.ready = false
	return sess, gen, nil
}

func (m *Manager) handleOpen(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.session == nil {
		m.mu.Unlock()
		return
	}
	recovered := m.reconnectCount > 0
	m.reconnectCount = 0
	m.backoff.Reset()
	sess := m.session
	onReconnected := m.onReconnected
	m.emitTransportLocked("CONNECTING", "OPEN", "")
	m.mu.Unlock()

	sess.HandleOpen()
	if recovered && onReconnected != nil {
		onReconnected()
	}
}

func (m *Manager) handleMessage(gen uint64, data []byte) {
	m.mu.Lock()
	if gen != m.gen || m.session == nil {
		m.mu.Unlock()
		return
	}
	sess := m.session
	m.mu.Unlock()

	sess.HandleMessage(data)
}

// handleReady runs when the broker accepts the session. The default
// subscription is installed without holding the lock, so the attempt is
// checked again before moving to Connected.
func (m *Manager) handleReady(gen uint64) {
	m.mu.Lock()
	if !m.awaitingReadyLocked(gen) {
		m.mu.Unlock()
		return
	}
	sess := m.session
	m.mu.Unlock()

	var installed bus.Subscription
	if channel, handler := m.registry.Binding(); handler != nil {
		sub, err := m.registry.InstallDefault(sess, channel, handler)
		if err != nil {
			m.logError("install default", err)
		}
		installed = sub
	}

	m.mu.Lock()
	if !m.awaitingReadyLocked(gen) {
		m.mu.Unlock()
		if installed != nil {
			m.registry.Forget(installed)
		}
		return
	}
	m.ready = true
	notify := m.transitionLocked(StateConnected, "handshake complete")
	m.mu.Unlock()

	notify()
}

// awaitingReadyLocked reports whether attempt gen is still waiting for its
// handshake and has not been asked to close.
func (m *Manager) awaitingReadyLocked(gen uint64) bool {
	return gen == m.gen && m.state == StateConnecting && m.session != nil && !m.disconnectRequested
}

func (m *Manager) handleClose(gen uint64, code int, reason string) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}

	sess := m.session
	m.transport = nil
	m.session = nil
	m.ready = false
	m.gen++
	m.registry.Discard()
	m.emitTransportLocked("", "CLOSED", fmt.Sprintf("code %d %s", code, reason))

	var notify func()
	if m.disconnectRequested {
		m.disconnectRequested = false
		notify = m.transitionLocked(StateDisconnected, "closed by client")
	} else {
		notify = m.transitionLocked(StateReconnecting, fmt.Sprintf("transport closed (%d)", code))
		m.scheduleLocked()
	}
	m.mu.Unlock()

	if sess != nil {
		sess.CleanUp()
	}
	notify()
}

// scheduleLocked arms one reconnect attempt for the current generation.
func (m *Manager) scheduleLocked() {
	delay := m.backoff.Next()
	token := m.gen
	m.stopTimer = m.cfg.AfterFunc(delay, func() { m.fireReconnect(token) })
	m.emitLocked(log.Event{
		Category: log.CategoryReconnect,
		Reconnect: &log.ReconnectEvent{
			MaxAttempts: m.cfg.MaxReconnectAttempts,
			Delay:       delay,
		},
	})
}

func (m *Manager) fireReconnect(token uint64) {
	m.mu.Lock()
	if token != m.gen || m.state != StateReconnecting {
		m.mu.Unlock()
		return
	}
	m.stopTimer = nil
	m.reconnectCount++
	attempt := m.reconnectCount

	if attempt >= m.cfg.MaxReconnectAttempts {
		m.emitLocked(log.Event{
			Category: log.CategoryReconnect,
			Reconnect: &log.ReconnectEvent{
				Attempt:     attempt,
				MaxAttempts: m.cfg.MaxReconnectAttempts,
				Exhausted:   true,
			},
		})
		notify := m.transitionLocked(StateFailed, "reconnect budget exhausted")
		m.mu.Unlock()
		notify()
		return
	}

	m.emitLocked(log.Event{
		Category: log.CategoryReconnect,
		Reconnect: &log.ReconnectEvent{
			Attempt:     attempt,
			MaxAttempts: m.cfg.MaxReconnectAttempts,
		},
	})

	sess, gen, err := m.dialLocked()
	if err != nil {
		m.logErrorLocked("redial", err)
		m.scheduleLocked()
		m.mu.Unlock()
		return
	}
	notify := m.transitionLocked(StateConnecting, fmt.Sprintf("reconnect attempt %d", attempt))
	m.mu.Unlock()

	notify()
	sess.Connect(map[string]string{}, func() { m.handleReady(gen) })
}

// transitionLocked moves to state to and returns a function that reports
// the change. Call it after releasing the lock.
func (m *Manager) transitionLocked(to State, reason string) func() {
	from := m.state
	if from == to {
		return func() {}
	}
	m.state = to
	m.emitLocked(log.Event{
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from.String(),
			NewState: to.String(),
			Reason:   reason,
		},
	})

	cb := m.onStateChange
	return func() {
		if cb != nil {
			cb(from, to)
		}
	}
}

func (m *Manager) emitLocked(e log.Event) {
	m.emitLayerLocked(log.LayerClient, e)
}

func (m *Manager) emitLayerLocked(layer log.Layer, e log.Event) {
	e.Timestamp = time.Now()
	e.ConnectionID = m.connID
	e.URL = m.url
	e.Direction = log.DirectionLocal
	e.Layer = layer
	m.logger.Log(e)
}

func (m *Manager) emitTransportLocked(from, to, reason string) {
	m.emitLayerLocked(log.LayerTransport, log.Event{
		Category: log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityTransport,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

func (m *Manager) misuse(op, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitLocked(log.Event{
		Category: log.CategoryMisuse,
		Misuse:   &log.MisuseEvent{Operation: op, Reason: reason},
	})
}

func (m *Manager) logError(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logErrorLocked(op, err)
}

func (m *Manager) logErrorLocked(op string, err error) {
	m.emitLocked(log.Event{
		Category: log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerClient,
			Message: err.Error(),
			Context: op,
		},
	})
}
