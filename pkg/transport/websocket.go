package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/busline/busline-go/pkg/version"
)

const (
	// DefaultReadLimit is the largest inbound message accepted (1 MiB).
	DefaultReadLimit = 1 << 20

	// DefaultDialTimeout bounds the opening handshake.
	DefaultDialTimeout = 30 * time.Second

	// DefaultWriteTimeout bounds a single Send.
	DefaultWriteTimeout = 10 * time.Second
)

// DefaultSubprotocols are offered when WebSocketDialer.Subprotocols is empty.
var DefaultSubprotocols = version.Subprotocols()

// WebSocketDialer dials ws:// and wss:// URLs.
// The zero value is usable.
type WebSocketDialer struct {
	// HTTPClient is used for the opening handshake (default http.DefaultClient).
	HTTPClient *http.Client

	// Header is sent with the opening handshake.
	Header http.Header

	// Subprotocols offered to the server (default DefaultSubprotocols).
	Subprotocols []string

	// ReadLimit caps inbound message size (default DefaultReadLimit).
	ReadLimit int64

	// DialTimeout bounds the opening handshake (default DefaultDialTimeout).
	DialTimeout time.Duration

	// WriteTimeout bounds a single Send (default DefaultWriteTimeout).
	WriteTimeout time.Duration
}

// Dial validates rawURL and starts connecting in the background.
func (d *WebSocketDialer) Dial(rawURL string, events Events) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &wsTransport{
		url:    rawURL,
		dialer: d.withDefaults(),
		events: events,
		ctx:    ctx,
		cancel: cancel,
		state:  StateConnecting,
	}
	go t.run()
	return t, nil
}

func (d *WebSocketDialer) withDefaults() WebSocketDialer {
	out := WebSocketDialer{}
	if d != nil {
		out = *d
	}
	if out.HTTPClient == nil {
		out.HTTPClient = http.DefaultClient
	}
	if len(out.Subprotocols) == 0 {
		out.Subprotocols = DefaultSubprotocols
	}
	if out.ReadLimit <= 0 {
		out.ReadLimit = DefaultReadLimit
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = DefaultDialTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = DefaultWriteTimeout
	}
	return out
}

// wsTransport is a Transport backed by a websocket.Conn.
type wsTransport struct {
	url    string
	dialer WebSocketDialer
	events Events

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       ReadyState
	conn        *websocket.Conn
	closeCode   int
	closeReason string
	closeOnce   sync.Once
}

// ReadyState returns the current readiness.
func (t *wsTransport) ReadyState() ReadyState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Send writes data as a single text message.
func (t *wsTransport) Send(data []byte) error {
	t.mu.Lock()
	if t.state != StateOpen {
		t.mu.Unlock()
		return ErrNotOpen
	}
	conn := t.conn
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(t.ctx, t.dialer.WriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

// Close requests a close with the given code. A close requested while the
// handshake is still running aborts the dial.
func (t *wsTransport) Close(code int, reason string) error {
	t.mu.Lock()
	switch t.state {
	case StateClosing, StateClosed:
		t.mu.Unlock()
		return nil
	}
	prev := t.state
	t.state = StateClosing
	t.closeCode = code
	t.closeReason = reason
	conn := t.conn
	t.mu.Unlock()

	if prev == StateConnecting {
		t.cancel()
		return nil
	}

	// The close handshake waits for the peer; it must not block callers that
	// run inside OnMessage on the read goroutine.
	go func() {
		_ = conn.Close(websocket.StatusCode(code), reason)
	}()
	return nil
}

func (t *wsTransport) run() {
	dialCtx, cancel := context.WithTimeout(t.ctx, t.dialer.DialTimeout)
	conn, resp, err := websocket.Dial(dialCtx, t.url, &websocket.DialOptions{
		HTTPClient:   t.dialer.HTTPClient,
		HTTPHeader:   t.dialer.Header,
		Subprotocols: t.dialer.Subprotocols,
	})
	cancel()
	if err != nil {
		reason := err.Error()
		if resp != nil {
			reason = fmt.Sprintf("%s (status: %s)", reason, resp.Status)
		}
		t.finish(CloseAbnormal, reason)
		return
	}
	conn.SetReadLimit(t.dialer.ReadLimit)

	t.mu.Lock()
	if t.state == StateClosing {
		// Close raced the handshake and lost the cancel.
		t.mu.Unlock()
		_ = conn.CloseNow()
		t.finish(CloseAbnormal, "closed during dial")
		return
	}
	t.conn = conn
	t.state = StateOpen
	t.mu.Unlock()

	if t.events.OnOpen != nil {
		t.events.OnOpen()
	}

	for {
		_, data, err := conn.Read(t.ctx)
		if err != nil {
			code, reason := closeInfo(err)
			t.finish(code, reason)
			return
		}
		if t.events.OnMessage != nil {
			t.events.OnMessage(data)
		}
	}
}

// finish settles the transport in StateClosed and fires OnClose once.
func (t *wsTransport) finish(code int, reason string) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		if t.state == StateClosing && t.closeCode != 0 {
			// A locally requested close reports the requested code.
			code, reason = t.closeCode, t.closeReason
		}
		t.state = StateClosed
		conn := t.conn
		t.mu.Unlock()

		t.cancel()
		if conn != nil {
			_ = conn.CloseNow()
		}
		if t.events.OnClose != nil {
			t.events.OnClose(code, reason)
		}
	})
}

// closeInfo extracts the close code and reason from a read error.
func closeInfo(err error) (int, string) {
	var ce websocket.CloseError
	if errors.As(err, &ce) {
		return int(ce.Code), ce.Reason
	}
	return CloseAbnormal, err.Error()
}
