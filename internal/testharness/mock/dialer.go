package mock

import (
	"sync"

	"github.com/busline/busline-go/pkg/transport"
)

// Dialer records every transport it creates.
// Dial never fires events; tests call Open, Refuse or Drop on the result.
type Dialer struct {
	// Broker, when set, is attached to every new transport.
	Broker *Broker

	// Refuse makes Dial fail synchronously.
	Refuse bool

	mu         sync.Mutex
	transports []*Transport
}

// Dial creates a mock Transport in StateConnecting.
func (d *Dialer) Dial(url string, events transport.Events) (transport.Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.Refuse {
		return nil, ErrDialRefused
	}
	t := NewTransport(url, events)
	if d.Broker != nil {
		d.Broker.Attach(t)
	}
	d.transports = append(d.transports, t)
	return t, nil
}

// Transports returns every dialed transport in order.
func (d *Dialer) Transports() []*Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Transport, len(d.transports))
	copy(out, d.transports)
	return out
}

// Count returns the number of Dial calls that produced a transport.
func (d *Dialer) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

// Last returns the most recent transport, or nil.
func (d *Dialer) Last() *Transport {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.transports) == 0 {
		return nil
	}
	return d.transports[len(d.transports)-1]
}

// OpenCount returns how many transports are currently open.
func (d *Dialer) OpenCount() int {
	n := 0
	for _, t := range d.Transports() {
		if s := t.ReadyState(); s == transport.StateOpen || s == transport.StateConnecting {
			n++
		}
	}
	return n
}

var _ transport.Dialer = (*Dialer)(nil)
