package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/go-stomp/stomp/v3/frame"

	"github.com/busline/busline-go/pkg/bus"
	"github.com/busline/busline-go/pkg/log"
	"github.com/busline/busline-go/pkg/transport"
	"github.com/busline/busline-go/pkg/version"
)

// Session errors.
var (
	ErrNotConnected = errors.New("stomp: session not connected")
	ErrClosed       = errors.New("stomp: session closed")
)

const (
	noHeartBeat        = "0,0"
	defaultContentType = "application/json"
)

// Option configures a Session.
type Option func(*Session)

// WithHost sets the CONNECT host header (default: the URL host name).
func WithHost(host string) Option {
	return func(s *Session) {
		s.host = host
	}
}

// WithContentType sets the content-type used by Send when the caller does
// not supply one.
func WithContentType(ct string) Option {
	return func(s *Session) {
		if ct != "" {
			s.contentType = ct
		}
	}
}

// Factory returns a bus.Factory producing STOMP sessions.
func Factory(opts ...Option) bus.Factory {
	return func(t transport.Transport, cfg bus.SessionConfig) bus.Session {
		return NewSession(t, cfg, opts...)
	}
}

// Session is a STOMP session over one transport.
type Session struct {
	t           transport.Transport
	cfg         bus.SessionConfig
	logger      log.Logger
	host        string
	contentType string

	mu            sync.Mutex
	connectHeader map[string]string
	onReady       func()
	armed         bool
	connectSent   bool
	connected     bool
	closed        bool
	version       string
	server        string
	nextID        int
	subs          map[string]*Subscription
}

// NewSession creates a session bound to t.
func NewSession(t transport.Transport, cfg bus.SessionConfig, opts ...Option) *Session {
	s := &Session{
		t:           t,
		cfg:         cfg,
		logger:      log.OrNoop(cfg.Logger),
		contentType: defaultContentType,
		subs:        make(map[string]*Subscription),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.host == "" {
		if u, err := url.Parse(cfg.URL); err == nil {
			s.host = u.Hostname()
		}
	}
	return s
}

// Connect stores the CONNECT headers and the ready callback. CONNECT goes
// out immediately when the transport is already open, otherwise on HandleOpen.
func (s *Session) Connect(header map[string]string, onReady func()) {
	s.mu.Lock()
	if s.closed || s.armed {
		s.mu.Unlock()
		return
	}
	s.armed = true
	s.connectHeader = header
	s.onReady = onReady
	s.mu.Unlock()

	if s.t.ReadyState() == transport.StateOpen {
		s.HandleOpen()
	}
}

// HandleOpen sends CONNECT once the session is armed.
func (s *Session) HandleOpen() {
	s.mu.Lock()
	if s.closed || !s.armed || s.connectSent {
		s.mu.Unlock()
		return
	}
	s.connectSent = true
	header := s.connectHeader
	s.mu.Unlock()

	f := frame.New(frame.CONNECT,
		frame.AcceptVersion, version.AcceptHeader(),
		frame.HeartBeat, noHeartBeat,
	)
	if s.host != "" {
		f.Header.Set(frame.Host, s.host)
	}
	setHeaders(f, header)

	if err := s.write(f, log.CategoryControl, "", ""); err != nil {
		s.logError("connect", err)
	}
}

// HandleMessage decodes every frame in data and dispatches it.
func (s *Session) HandleMessage(data []byte) {
	r := frame.NewReader(bytes.NewReader(data))
	for {
		f, err := r.Read()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logError("decode frame", err)
			}
			return
		}
		if f == nil {
			// heart-beat
			continue
		}
		s.dispatch(f, len(data))
	}
}

func (s *Session) dispatch(f *frame.Frame, size int) {
	channel := f.Header.Get(frame.Destination)
	subID := f.Header.Get(frame.Subscription)

	category := log.CategoryControl
	if f.Command == frame.MESSAGE {
		category = log.CategoryMessage
	}
	fe := log.NewFrameEvent(f.Command, size, f.Body)
	fe.SubscriptionID = subID
	s.emit(log.Event{
		Direction: log.DirectionIn,
		Category:  category,
		Channel:   channel,
		Frame:     fe,
	})

	switch f.Command {
	case frame.CONNECTED:
		s.handleConnected(f)
	case frame.MESSAGE:
		s.handleMessage(f, channel, subID)
	case frame.ERROR:
		s.emit(log.Event{
			Direction: log.DirectionIn,
			Category:  log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerBus,
				Message: f.Header.Get(frame.Message),
				Context: string(f.Body),
			},
		})
	}
}

func (s *Session) handleConnected(f *frame.Frame) {
	s.mu.Lock()
	if s.closed || s.connected {
		s.mu.Unlock()
		return
	}
	v, err := version.Negotiate(f.Header.Get(frame.Version))
	if err != nil {
		s.mu.Unlock()
		s.logError("negotiate version", err)
		_ = s.t.Close(transport.CloseProtocol, "unsupported protocol version")
		return
	}
	s.connected = true
	s.version = v.String()
	s.server = f.Header.Get(frame.Server)
	onReady := s.onReady
	s.onReady = nil
	s.mu.Unlock()

	s.emitState("CONNECTING", "CONNECTED", "version "+s.Version())
	if onReady != nil {
		onReady()
	}
}

func (s *Session) handleMessage(f *frame.Frame, channel, subID string) {
	s.mu.Lock()
	sub := s.subs[subID]
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return
	}
	if sub == nil {
		s.emit(log.Event{
			Direction: log.DirectionIn,
			Category:  log.CategoryError,
			Channel:   channel,
			Error: &log.ErrorEventData{
				Layer:   log.LayerBus,
				Message: "message for unknown subscription",
				Context: subID,
			},
		})
		return
	}

	sub.handler(bus.Message{
		Channel:        channel,
		SubscriptionID: subID,
		Header:         headerMap(f.Header),
		Body:           f.Body,
	})
}

// Subscribe registers handler for channel with automatic acknowledgement.
func (s *Session) Subscribe(channel string, handler bus.Handler) (bus.Subscription, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if !s.connected {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	id := "sub-" + strconv.Itoa(s.nextID)
	s.nextID++
	sub := &Subscription{id: id, channel: channel, handler: handler, session: s}
	s.subs[id] = sub
	s.mu.Unlock()

	f := frame.New(frame.SUBSCRIBE,
		frame.Id, id,
		frame.Destination, channel,
		frame.Ack, "auto",
	)
	if err := s.write(f, log.CategoryControl, channel, id); err != nil {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}
	return sub, nil
}

func (s *Session) unsubscribe(sub *Subscription) error {
	s.mu.Lock()
	if s.subs[sub.id] != sub {
		// Already removed, or dropped by CleanUp.
		s.mu.Unlock()
		return nil
	}
	delete(s.subs, sub.id)
	s.mu.Unlock()

	f := frame.New(frame.UNSUBSCRIBE, frame.Id, sub.id)
	if err := s.write(f, log.CategoryControl, sub.channel, sub.id); err != nil {
		return fmt.Errorf("unsubscribe %s: %w", sub.id, err)
	}
	return nil
}

// Send publishes body to channel. content-length is always set; the
// content-type defaults to the session content type.
func (s *Session) Send(channel string, header map[string]string, body string) error {
	s.mu.Lock()
	closed, connected := s.closed, s.connected
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if !connected {
		return ErrNotConnected
	}

	f := frame.New(frame.SEND, frame.Destination, channel)
	setHeaders(f, header)
	if _, ok := f.Header.Contains(frame.ContentType); !ok {
		f.Header.Set(frame.ContentType, s.contentType)
	}
	f.Header.Set(frame.ContentLength, strconv.Itoa(len(body)))
	f.Body = []byte(body)

	if err := s.write(f, log.CategoryMessage, channel, ""); err != nil {
		return fmt.Errorf("send %s: %w", channel, err)
	}
	return nil
}

// Disconnect sends DISCONNECT, closes the transport and cleans up.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	connected := s.connected
	s.mu.Unlock()

	if connected {
		if err := s.write(frame.New(frame.DISCONNECT), log.CategoryControl, "", ""); err != nil {
			s.logError("disconnect", err)
		}
	}
	s.CleanUp()
	return s.t.Close(transport.CloseNormal, "disconnect")
}

// CleanUp drops every subscription and marks the session closed.
// Safe to call more than once.
func (s *Session) CleanUp() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	wasConnected := s.connected
	s.closed = true
	s.connected = false
	s.onReady = nil
	s.subs = make(map[string]*Subscription)
	s.mu.Unlock()

	old := "CONNECTING"
	if wasConnected {
		old = "CONNECTED"
	}
	s.emitState(old, "CLOSED", "cleanup")
}

// Connected reports whether CONNECTED has been received and the session
// has not been cleaned up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Version returns the negotiated protocol version.
func (s *Session) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Server returns the broker's server header, if any.
func (s *Session) Server() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server
}

// SubscriptionCount returns the number of live subscriptions.
func (s *Session) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Session) write(f *frame.Frame, category log.Category, channel, subID string) error {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return fmt.Errorf("encode %s: %w", f.Command, err)
	}
	if err := s.t.Send(buf.Bytes()); err != nil {
		return err
	}

	fe := log.NewFrameEvent(f.Command, buf.Len(), f.Body)
	fe.SubscriptionID = subID
	s.emit(log.Event{
		Direction: log.DirectionOut,
		Category:  category,
		Channel:   channel,
		Frame:     fe,
	})
	return nil
}

func (s *Session) emit(e log.Event) {
	e.Timestamp = time.Now()
	e.ConnectionID = s.cfg.ConnectionID
	e.URL = s.cfg.URL
	e.Layer = log.LayerBus
	s.logger.Log(e)
}

func (s *Session) emitState(from, to, reason string) {
	s.emit(log.Event{
		Direction: log.DirectionLocal,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySession,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

func (s *Session) logError(op string, err error) {
	s.emit(log.Event{
		Direction: log.DirectionOut,
		Category:  log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerBus,
			Message: err.Error(),
			Context: op,
		},
	})
}

// setHeaders copies h into f in key order so frames are deterministic.
func setHeaders(f *frame.Frame, h map[string]string) {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		f.Header.Set(k, h[k])
	}
}

func headerMap(h *frame.Header) map[string]string {
	out := make(map[string]string, h.Len())
	for i := 0; i < h.Len(); i++ {
		k, v := h.GetAt(i)
		if _, seen := out[k]; !seen {
			out[k] = v
		}
	}
	return out
}

var _ bus.Session = (*Session)(nil)
