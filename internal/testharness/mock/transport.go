package mock

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/go-stomp/stomp/v3/frame"

	"github.com/busline/busline-go/pkg/transport"
)

// ErrDialRefused is returned by Dialer.Dial when Refuse is set.
var ErrDialRefused = errors.New("dial refused")

// Transport is an in-memory transport.Transport.
type Transport struct {
	// URL is the dialed address.
	URL string

	mu          sync.Mutex
	events      transport.Events
	state       transport.ReadyState
	sent        [][]byte
	closeCalls  int
	closeCode   int
	closeReason string
	onSend      func(data []byte)
	onClosed    func()
	holdClose   bool
}

// NewTransport creates a transport in StateConnecting.
func NewTransport(url string, events transport.Events) *Transport {
	return &Transport{URL: url, events: events, state: transport.StateConnecting}
}

// Send records data and passes it to the send hook.
func (t *Transport) Send(data []byte) error {
	t.mu.Lock()
	if t.state != transport.StateOpen {
		t.mu.Unlock()
		return transport.ErrNotOpen
	}
	cp := append([]byte(nil), data...)
	t.sent = append(t.sent, cp)
	hook := t.onSend
	t.mu.Unlock()

	if hook != nil {
		hook(cp)
	}
	return nil
}

// Close settles the transport in StateClosed and fires OnClose.
func (t *Transport) Close(code int, reason string) error {
	t.mu.Lock()
	t.closeCalls++
	if t.state == transport.StateClosed {
		t.mu.Unlock()
		return nil
	}
	if t.holdClose {
		if t.state != transport.StateClosing {
			t.state = transport.StateClosing
			t.closeCode = code
			t.closeReason = reason
		}
		t.mu.Unlock()
		return nil
	}
	t.state = transport.StateClosed
	t.closeCode = code
	t.closeReason = reason
	onClose := t.events.OnClose
	onClosed := t.onClosed
	t.mu.Unlock()

	if onClosed != nil {
		onClosed()
	}
	if onClose != nil {
		onClose(code, reason)
	}
	return nil
}

// ReadyState returns the current readiness.
func (t *Transport) ReadyState() transport.ReadyState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Open moves the transport to StateOpen and fires OnOpen.
func (t *Transport) Open() {
	t.mu.Lock()
	if t.state != transport.StateConnecting {
		t.mu.Unlock()
		return
	}
	t.state = transport.StateOpen
	onOpen := t.events.OnOpen
	t.mu.Unlock()

	if onOpen != nil {
		onOpen()
	}
}

// Deliver fires OnMessage with data. A closing transport still delivers.
func (t *Transport) Deliver(data []byte) {
	t.mu.Lock()
	open := t.state == transport.StateOpen || t.state == transport.StateClosing
	onMessage := t.events.OnMessage
	t.mu.Unlock()

	if open && onMessage != nil {
		onMessage(data)
	}
}

// DeliverFrame encodes f and delivers it.
func (t *Transport) DeliverFrame(f *frame.Frame) {
	t.Deliver(EncodeFrame(f))
}

// Drop simulates the peer or network closing the socket.
func (t *Transport) Drop(code int, reason string) {
	t.mu.Lock()
	if t.state == transport.StateClosed {
		t.mu.Unlock()
		return
	}
	t.state = transport.StateClosed
	t.closeCode = code
	t.closeReason = reason
	onClose := t.events.OnClose
	onClosed := t.onClosed
	t.mu.Unlock()

	if onClosed != nil {
		onClosed()
	}
	if onClose != nil {
		onClose(code, reason)
	}
}

// HoldClose makes the next Close stop in StateClosing without firing
// OnClose, as a socket does while the close handshake is in flight.
func (t *Transport) HoldClose() {
	t.mu.Lock()
	t.holdClose = true
	t.mu.Unlock()
}

// ReleaseClose completes a held Close.
func (t *Transport) ReleaseClose() {
	t.mu.Lock()
	if t.state != transport.StateClosing {
		t.mu.Unlock()
		return
	}
	t.holdClose = false
	code, reason := t.closeCode, t.closeReason
	t.mu.Unlock()

	t.Drop(code, reason)
}

// Refuse simulates a dial that never opens.
func (t *Transport) Refuse() {
	t.Drop(transport.CloseAbnormal, "connection refused")
}

// SetState forces the ready state without firing events.
func (t *Transport) SetState(s transport.ReadyState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// SetOnSend installs a hook called with every sent message.
func (t *Transport) SetOnSend(fn func(data []byte)) {
	t.mu.Lock()
	t.onSend = fn
	t.mu.Unlock()
}

// SetOnClosed installs a hook called once when the transport closes,
// before OnClose fires.
func (t *Transport) SetOnClosed(fn func()) {
	t.mu.Lock()
	t.onClosed = fn
	t.mu.Unlock()
}

// Sent returns copies of every sent message.
func (t *Transport) Sent() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.sent))
	copy(out, t.sent)
	return out
}

// SentFrames decodes every sent message.
func (t *Transport) SentFrames() []*frame.Frame {
	var out []*frame.Frame
	for _, data := range t.Sent() {
		out = append(out, DecodeFrames(data)...)
	}
	return out
}

// Commands returns the commands of every sent frame.
func (t *Transport) Commands() []string {
	var out []string
	for _, f := range t.SentFrames() {
		out = append(out, f.Command)
	}
	return out
}

// CountCommand returns how many sent frames carry command.
func (t *Transport) CountCommand(command string) int {
	n := 0
	for _, c := range t.Commands() {
		if c == command {
			n++
		}
	}
	return n
}

// CloseCalls returns how many times Close was called.
func (t *Transport) CloseCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCalls
}

// CloseCode returns the code the transport closed with.
func (t *Transport) CloseCode() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeCode
}

// EncodeFrame encodes f for delivery.
func EncodeFrame(f *frame.Frame) []byte {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// DecodeFrames decodes every frame in data, skipping heart-beats.
func DecodeFrames(data []byte) []*frame.Frame {
	var out []*frame.Frame
	r := frame.NewReader(bytes.NewReader(data))
	for {
		f, err := r.Read()
		if err == io.EOF {
			return out
		}
		if err != nil {
			panic(err)
		}
		if f != nil {
			out = append(out, f)
		}
	}
}

var _ transport.Transport = (*Transport)(nil)
