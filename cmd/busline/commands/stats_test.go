package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/busline/busline-go/pkg/log"
)

func TestStatsCounts(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := []log.Event{
		{Timestamp: base, ConnectionID: "conn-1", URL: "ws://a", Layer: log.LayerTransport, Category: log.CategoryState, Direction: log.DirectionLocal,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityTransport, NewState: "OPEN"}},
		{Timestamp: base.Add(time.Second), ConnectionID: "conn-1", Layer: log.LayerBus, Category: log.CategoryControl, Direction: log.DirectionOut,
			Frame: &log.FrameEvent{Command: "CONNECT"}},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "conn-1", Layer: log.LayerBus, Category: log.CategoryMessage, Direction: log.DirectionIn,
			Frame: &log.FrameEvent{Command: "MESSAGE"}},
		{Timestamp: base.Add(3 * time.Second), Layer: log.LayerClient, Category: log.CategoryReconnect, Direction: log.DirectionLocal,
			Reconnect: &log.ReconnectEvent{Attempt: 1, MaxAttempts: 30}},
		{Timestamp: base.Add(4 * time.Second), Layer: log.LayerClient, Category: log.CategoryReconnect, Direction: log.DirectionLocal,
			Reconnect: &log.ReconnectEvent{MaxAttempts: 30, Delay: time.Second}},
		{Timestamp: base.Add(5 * time.Second), Layer: log.LayerClient, Category: log.CategoryMisuse, Direction: log.DirectionLocal,
			Misuse: &log.MisuseEvent{Operation: "Send", Reason: log.ReasonNotConnected}},
		{Timestamp: base.Add(6 * time.Second), ConnectionID: "conn-2", Layer: log.LayerTransport, Category: log.CategoryError, Direction: log.DirectionIn,
			Error: &log.ErrorEventData{Message: "refused"}},
	}
	path := createTestLogFile(t, events)

	stats, err := CollectStats(path)
	if err != nil {
		t.Fatalf("CollectStats failed: %v", err)
	}

	if stats.TotalEvents != 7 {
		t.Errorf("expected 7 events, got %d", stats.TotalEvents)
	}
	if stats.EventsByLayer[log.LayerBus] != 2 {
		t.Errorf("expected 2 bus events, got %d", stats.EventsByLayer[log.LayerBus])
	}
	if stats.EventsByCategory[log.CategoryReconnect] != 2 {
		t.Errorf("expected 2 reconnect events, got %d", stats.EventsByCategory[log.CategoryReconnect])
	}
	if stats.FramesByCommand["CONNECT"] != 1 || stats.FramesByCommand["MESSAGE"] != 1 {
		t.Errorf("unexpected frame counts: %v", stats.FramesByCommand)
	}
	if stats.ReconnectAttempts != 1 {
		t.Errorf("expected 1 reconnect attempt, got %d", stats.ReconnectAttempts)
	}
	if stats.Misuses != 1 || stats.Errors != 1 {
		t.Errorf("expected 1 misuse and 1 error, got %d and %d", stats.Misuses, stats.Errors)
	}
	if len(stats.Connections) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(stats.Connections))
	}
	conn := stats.Connections["conn-1"]
	if conn.Events != 3 || conn.Frames != 2 || conn.URL != "ws://a" {
		t.Errorf("unexpected conn-1 stats: %+v", conn)
	}
	if !stats.TimeRange.Start.Equal(base) || !stats.TimeRange.End.Equal(base.Add(6*time.Second)) {
		t.Errorf("unexpected time range: %v to %v", stats.TimeRange.Start, stats.TimeRange.End)
	}
}

func TestRunStatsOutput(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: ts, ConnectionID: "abcdef0123", Layer: log.LayerBus, Frame: &log.FrameEvent{Command: "SEND"}},
		{Timestamp: ts, Layer: log.LayerClient, Category: log.CategoryReconnect,
			Reconnect: &log.ReconnectEvent{Attempt: 30, MaxAttempts: 30, Exhausted: true}},
	})

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{"Total Events: 2", "SEND:", "Connections: 1", "[abcdef01]", "Gave Up: 1"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("expected zero total, got: %s", buf.String())
	}
}
