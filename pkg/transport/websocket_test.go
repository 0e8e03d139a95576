package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeEvent struct {
	code   int
	reason string
}

type eventSink struct {
	opened   chan struct{}
	messages chan []byte
	closed   chan closeEvent
}

func newEventSink() *eventSink {
	return &eventSink{
		opened:   make(chan struct{}, 1),
		messages: make(chan []byte, 16),
		closed:   make(chan closeEvent, 2),
	}
}

func (s *eventSink) events() Events {
	return Events{
		OnOpen:    func() { s.opened <- struct{}{} },
		OnMessage: func(data []byte) { s.messages <- data },
		OnClose:   func(code int, reason string) { s.closed <- closeEvent{code, reason} },
	}
}

func (s *eventSink) waitOpen(t *testing.T) {
	t.Helper()
	select {
	case <-s.opened:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for OnOpen")
	}
}

func (s *eventSink) waitClose(t *testing.T) closeEvent {
	t.Helper()
	select {
	case ev := <-s.closed:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for OnClose")
	}
	return closeEvent{}
}

// startEchoServer echoes every message back. A message "bye" makes the
// server close with code 4000.
func startEchoServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{Subprotocols: []string{"v12.stomp"}})
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := context.Background()
		for {
			typ, data, err := c.Read(ctx)
			if err != nil {
				return
			}
			if string(data) == "bye" {
				c.Close(4000, "server says bye")
				return
			}
			if err := c.Write(ctx, typ, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketDialerEcho(t *testing.T) {
	url := startEchoServer(t)
	sink := newEventSink()

	tr, err := (&WebSocketDialer{}).Dial(url, sink.events())
	require.NoError(t, err)
	sink.waitOpen(t)
	assert.Equal(t, StateOpen, tr.ReadyState())

	require.NoError(t, tr.Send([]byte("SEND\n\n{}\x00")))
	select {
	case msg := <-sink.messages:
		assert.Equal(t, "SEND\n\n{}\x00", string(msg))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	require.NoError(t, tr.Close(CloseNormal, "done"))
	ev := sink.waitClose(t)
	assert.Equal(t, CloseNormal, ev.code)
	assert.Equal(t, StateClosed, tr.ReadyState())

	// Idempotent close, no second OnClose.
	require.NoError(t, tr.Close(CloseNormal, "again"))
	select {
	case ev := <-sink.closed:
		t.Fatalf("unexpected second OnClose: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
	assert.ErrorIs(t, tr.Send([]byte("late")), ErrNotOpen)
}

func TestWebSocketDialerServerClose(t *testing.T) {
	url := startEchoServer(t)
	sink := newEventSink()

	tr, err := (&WebSocketDialer{}).Dial(url, sink.events())
	require.NoError(t, err)
	sink.waitOpen(t)

	require.NoError(t, tr.Send([]byte("bye")))
	ev := sink.waitClose(t)
	assert.Equal(t, 4000, ev.code)
	assert.Equal(t, "server says bye", ev.reason)
}

func TestWebSocketDialerRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	sink := newEventSink()
	tr, err := (&WebSocketDialer{DialTimeout: 2 * time.Second}).Dial(url, sink.events())
	require.NoError(t, err)

	ev := sink.waitClose(t)
	assert.Equal(t, CloseAbnormal, ev.code)
	assert.Equal(t, StateClosed, tr.ReadyState())
	select {
	case <-sink.opened:
		t.Fatal("OnOpen must not fire for a failed dial")
	default:
	}
}

func TestWebSocketDialerCloseWhileConnecting(t *testing.T) {
	// The handler never upgrades, so the handshake hangs until cancelled.
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})

	sink := newEventSink()
	tr, err := (&WebSocketDialer{}).Dial("ws"+strings.TrimPrefix(srv.URL, "http"), sink.events())
	require.NoError(t, err)
	assert.Equal(t, StateConnecting, tr.ReadyState())

	require.NoError(t, tr.Close(CloseNormal, "abort"))
	ev := sink.waitClose(t)
	assert.Equal(t, CloseNormal, ev.code)
	assert.Equal(t, "abort", ev.reason)
}

func TestWebSocketDialerInvalidURL(t *testing.T) {
	for _, raw := range []string{"tcp://example.com", "ws://", "::bad"} {
		_, err := (&WebSocketDialer{}).Dial(raw, Events{})
		assert.ErrorIs(t, err, ErrInvalidURL, raw)
	}
}

func TestReadyStateString(t *testing.T) {
	assert.Equal(t, "OPEN", StateOpen.String())
	assert.Equal(t, "CLOSING", StateClosing.String())
	assert.Equal(t, "UNKNOWN", ReadyState(42).String())
	assert.Equal(t, ReadyState(1), StateOpen)
}
