package commands

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/busline/busline-go/pkg/bus"
)

func TestMessagePrinter(t *testing.T) {
	var buf bytes.Buffer
	p := NewMessagePrinter(&buf)
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return ts }

	p.Handle(bus.Message{
		Channel:        "/topic/a",
		SubscriptionID: "sub-0",
		Header:         map[string]string{"content-type": "application/json"},
		Body:           []byte(`{"n":1}`),
	})
	p.Handle(bus.Message{Channel: "/topic/a", SubscriptionID: "sub-0", Body: []byte("plain text")})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %s", len(lines), buf.String())
	}

	var first PrintedMessage
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if first.Channel != "/topic/a" || first.Subscription != "sub-0" {
		t.Errorf("unexpected routing fields: %+v", first)
	}
	if string(first.Body) != `{"n":1}` {
		t.Errorf("expected raw JSON body, got %s", first.Body)
	}
	if !first.Time.Equal(ts) {
		t.Errorf("unexpected time %v", first.Time)
	}

	var second PrintedMessage
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("invalid JSON line: %v", err)
	}
	if second.Text != "plain text" || len(second.Body) != 0 {
		t.Errorf("expected text fallback, got %+v", second)
	}
}
