package commands

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/busline/busline-go/pkg/bus"
)

// PrintedMessage is the JSON line written for each received message.
type PrintedMessage struct {
	Time         time.Time         `json:"time"`
	Channel      string            `json:"channel"`
	Subscription string            `json:"subscription"`
	Header       map[string]string `json:"header,omitempty"`
	Body         json.RawMessage   `json:"body,omitempty"`
	Text         string            `json:"text,omitempty"`
}

// MessagePrinter writes received messages as JSON lines.
// It is safe for concurrent use.
type MessagePrinter struct {
	mu  sync.Mutex
	enc *json.Encoder
	now func() time.Time
}

// NewMessagePrinter creates a printer writing to w.
func NewMessagePrinter(w io.Writer) *MessagePrinter {
	return &MessagePrinter{enc: json.NewEncoder(w), now: time.Now}
}

// Handle is a bus.Handler.
func (p *MessagePrinter) Handle(msg bus.Message) {
	line := PrintedMessage{
		Time:         p.now(),
		Channel:      msg.Channel,
		Subscription: msg.SubscriptionID,
		Header:       msg.Header,
	}
	if json.Valid(msg.Body) {
		line.Body = json.RawMessage(msg.Body)
	} else {
		line.Text = string(msg.Body)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.enc.Encode(line)
}
