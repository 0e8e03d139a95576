package mock_test

import (
	"testing"
	"time"

	"github.com/go-stomp/stomp/v3/frame"

	"github.com/busline/busline-go/internal/testharness/mock"
	"github.com/busline/busline-go/pkg/transport"
)

func TestTransportLifecycle(t *testing.T) {
	var opened, closed int
	var closeCode int
	tr := mock.NewTransport("ws://test", transport.Events{
		OnOpen: func() { opened++ },
		OnClose: func(code int, _ string) {
			closed++
			closeCode = code
		},
	})

	if tr.ReadyState() != transport.StateConnecting {
		t.Fatalf("Expected CONNECTING, got %s", tr.ReadyState())
	}
	if err := tr.Send([]byte("x")); err != transport.ErrNotOpen {
		t.Errorf("Expected ErrNotOpen before open, got %v", err)
	}

	tr.Open()
	tr.Open()
	if opened != 1 {
		t.Errorf("Expected one OnOpen, got %d", opened)
	}

	tr.Close(transport.CloseNormal, "bye")
	tr.Drop(transport.CloseAbnormal, "late")
	if closed != 1 {
		t.Errorf("Expected one OnClose, got %d", closed)
	}
	if closeCode != transport.CloseNormal {
		t.Errorf("Expected close code 1000, got %d", closeCode)
	}
}

func TestBrokerRoutesSend(t *testing.T) {
	b := mock.NewBroker()
	var got []string
	tr := mock.NewTransport("ws://test", transport.Events{
		OnMessage: func(data []byte) {
			for _, f := range mock.DecodeFrames(data) {
				got = append(got, f.Command)
			}
		},
	})
	b.Attach(tr)
	tr.Open()

	tr.Send(mock.EncodeFrame(frame.New(frame.CONNECT, frame.AcceptVersion, "1.2")))
	tr.Send(mock.EncodeFrame(frame.New(frame.SUBSCRIBE, frame.Id, "sub-0", frame.Destination, "/topic/a")))
	tr.Send(mock.EncodeFrame(frame.New(frame.SEND, frame.Destination, "/topic/a")))
	tr.Send(mock.EncodeFrame(frame.New(frame.SEND, frame.Destination, "/topic/b")))

	want := []string{frame.CONNECTED, frame.MESSAGE}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Frame %d: expected %s, got %s", i, want[i], got[i])
		}
	}

	tr.Send(mock.EncodeFrame(frame.New(frame.UNSUBSCRIBE, frame.Id, "sub-0")))
	if b.Subscriptions("/topic/a") != 0 {
		t.Error("Expected subscription removed")
	}
	if b.Unsubscribes() != 1 {
		t.Errorf("Expected 1 unsubscribe, got %d", b.Unsubscribes())
	}
}

func TestBrokerForgetsClosedTransport(t *testing.T) {
	b := mock.NewBroker()
	closed := mock.NewTransport("ws://test", transport.Events{})
	live := mock.NewTransport("ws://test", transport.Events{})
	b.Attach(closed)
	b.Attach(live)
	closed.Open()
	live.Open()

	closed.Send(mock.EncodeFrame(frame.New(frame.SUBSCRIBE, frame.Id, "sub-0", frame.Destination, "/topic/a")))
	live.Send(mock.EncodeFrame(frame.New(frame.SUBSCRIBE, frame.Id, "sub-0", frame.Destination, "/topic/a")))
	if got := b.Subscriptions("/topic/a"); got != 2 {
		t.Fatalf("Expected 2 subscriptions, got %d", got)
	}

	closed.Drop(transport.CloseAbnormal, "lost")
	if got := b.Subscriptions("/topic/a"); got != 1 {
		t.Errorf("Expected 1 subscription after drop, got %d", got)
	}
	if got := b.Publish("/topic/a", "{}"); got != 1 {
		t.Errorf("Expected publish to reach 1 subscription, got %d", got)
	}

	live.Close(transport.CloseNormal, "bye")
	if got := b.Subscriptions("/topic/a"); got != 0 {
		t.Errorf("Expected no subscriptions after close, got %d", got)
	}
}

func TestDialerRefuse(t *testing.T) {
	d := &mock.Dialer{Refuse: true}
	if _, err := d.Dial("ws://test", transport.Events{}); err == nil {
		t.Error("Expected dial error")
	}
	if d.Count() != 0 || d.Last() != nil {
		t.Error("Expected no transports recorded")
	}
}

func TestSchedulerStop(t *testing.T) {
	var s mock.Scheduler
	fired := 0
	stop := s.AfterFunc(time.Second, func() { fired++ })
	s.AfterFunc(2*time.Second, func() { fired += 10 })

	if !stop() {
		t.Error("Expected stop to report a pending timer")
	}
	if stop() {
		t.Error("Expected second stop to report false")
	}
	if s.FireAll(10) != 1 {
		t.Error("Expected one callback to run")
	}
	if fired != 10 {
		t.Errorf("Expected only the second callback, got %d", fired)
	}
	if s.LastDelay() != 2*time.Second {
		t.Errorf("Expected last delay 2s, got %v", s.LastDelay())
	}
}
