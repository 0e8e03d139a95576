package mock

import (
	"strconv"
	"sync"

	"github.com/go-stomp/stomp/v3/frame"
)

// Broker is a minimal in-memory STOMP broker.
//
// It answers CONNECT with CONNECTED, records SUBSCRIBE and UNSUBSCRIBE,
// forgets a transport's subscriptions when it closes, and routes SEND to every matching subscription as MESSAGE. Replies are
// delivered synchronously from inside Transport.Send.
type Broker struct {
	// Silent suppresses CONNECTED replies, leaving sessions stuck in the
	// handshake.
	Silent bool

	// Version is the version header sent in CONNECTED (default "1.2").
	Version string

	mu           sync.Mutex
	subs         []brokerSub
	received     []*frame.Frame
	connects     int
	unsubscribes int
	nextMsg      int
}

type brokerSub struct {
	t           *Transport
	id          string
	destination string
}

// NewBroker creates a broker answering with STOMP 1.2.
func NewBroker() *Broker {
	return &Broker{Version: "1.2"}
}

// Attach makes the broker serve t. Subscriptions made over t are dropped
// when t closes.
func (b *Broker) Attach(t *Transport) {
	t.SetOnSend(func(data []byte) {
		for _, f := range DecodeFrames(data) {
			b.handle(t, f)
		}
	})
	t.SetOnClosed(func() { b.detach(t) })
}

func (b *Broker) detach(t *Transport) {
	b.mu.Lock()
	defer b.mu.Unlock()
	kept := b.subs[:0]
	for _, s := range b.subs {
		if s.t != t {
			kept = append(kept, s)
		}
	}
	b.subs = kept
}

func (b *Broker) handle(t *Transport, f *frame.Frame) {
	b.mu.Lock()
	b.received = append(b.received, f)

	switch f.Command {
	case frame.CONNECT, frame.STOMP:
		b.connects++
		silent := b.Silent
		version := b.Version
		b.mu.Unlock()
		if !silent {
			if version == "" {
				version = "1.2"
			}
			t.DeliverFrame(frame.New(frame.CONNECTED,
				frame.Version, version,
				frame.Server, "mock-broker/1.0",
				frame.HeartBeat, "0,0",
			))
		}

	case frame.SUBSCRIBE:
		b.subs = append(b.subs, brokerSub{
			t:           t,
			id:          f.Header.Get(frame.Id),
			destination: f.Header.Get(frame.Destination),
		})
		b.mu.Unlock()

	case frame.UNSUBSCRIBE:
		b.unsubscribes++
		id := f.Header.Get(frame.Id)
		kept := b.subs[:0]
		for _, s := range b.subs {
			if s.t != t || s.id != id {
				kept = append(kept, s)
			}
		}
		b.subs = kept
		b.mu.Unlock()

	case frame.SEND:
		dest := f.Header.Get(frame.Destination)
		var targets []brokerSub
		for _, s := range b.subs {
			if s.destination == dest {
				targets = append(targets, s)
			}
		}
		b.nextMsg++
		msgID := "msg-" + strconv.Itoa(b.nextMsg)
		b.mu.Unlock()

		contentType := f.Header.Get(frame.ContentType)
		for _, s := range targets {
			m := frame.New(frame.MESSAGE,
				frame.Destination, dest,
				frame.Subscription, s.id,
				frame.MessageId, msgID,
			)
			if contentType != "" {
				m.Header.Set(frame.ContentType, contentType)
			}
			m.Header.Set(frame.ContentLength, strconv.Itoa(len(f.Body)))
			m.Body = append([]byte(nil), f.Body...)
			s.t.DeliverFrame(m)
		}

	default:
		b.mu.Unlock()
	}
}

// Publish delivers body as MESSAGE to every subscription on destination,
// as if another client had sent it.
func (b *Broker) Publish(destination, body string) int {
	b.mu.Lock()
	var targets []brokerSub
	for _, s := range b.subs {
		if s.destination == destination {
			targets = append(targets, s)
		}
	}
	b.nextMsg++
	msgID := "msg-" + strconv.Itoa(b.nextMsg)
	b.mu.Unlock()

	for _, s := range targets {
		m := frame.New(frame.MESSAGE,
			frame.Destination, destination,
			frame.Subscription, s.id,
			frame.MessageId, msgID,
			frame.ContentType, "application/json",
		)
		m.Body = []byte(body)
		s.t.DeliverFrame(m)
	}
	return len(targets)
}

// Subscriptions returns the number of live subscriptions on destination.
func (b *Broker) Subscriptions(destination string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, s := range b.subs {
		if s.destination == destination {
			n++
		}
	}
	return n
}

// Connects returns how many CONNECT frames were received.
func (b *Broker) Connects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

// Unsubscribes returns how many UNSUBSCRIBE frames were received.
func (b *Broker) Unsubscribes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unsubscribes
}

// Received returns every frame the broker received, in order.
func (b *Broker) Received() []*frame.Frame {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*frame.Frame, len(b.received))
	copy(out, b.received)
	return out
}
