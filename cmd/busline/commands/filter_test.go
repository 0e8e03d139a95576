package commands

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/busline/busline-go/pkg/log"
)

func readAll(t *testing.T, path string) []log.Event {
	t.Helper()
	reader, err := log.NewReader(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer reader.Close()

	var events []log.Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("failed to read event: %v", err)
		}
		events = append(events, event)
	}
}

func TestFilterByConnectionID(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: ts, ConnectionID: "conn-1"},
		{Timestamp: ts, ConnectionID: "conn-2"},
		{Timestamp: ts, ConnectionID: "conn-1"},
	})
	outPath := filepath.Join(t.TempDir(), "filtered.blog")

	var buf bytes.Buffer
	if err := RunFilter(path, FilterOptions{Output: outPath, ConnID: "conn-1"}, &buf); err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	events := readAll(t, outPath)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, e := range events {
		if e.ConnectionID != "conn-1" {
			t.Errorf("expected conn-1, got %s", e.ConnectionID)
		}
	}
	if !strings.Contains(buf.String(), "Filtered 2 events") {
		t.Errorf("unexpected summary: %s", buf.String())
	}
}

func TestFilterByTimeRangeAndCategory(t *testing.T) {
	base := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []log.Event{
		{Timestamp: base, Category: log.CategoryMisuse},
		{Timestamp: base.Add(time.Hour), Category: log.CategoryMisuse},
		{Timestamp: base.Add(time.Hour), Category: log.CategoryState},
		{Timestamp: base.Add(3 * time.Hour), Category: log.CategoryMisuse},
	})
	outPath := filepath.Join(t.TempDir(), "filtered.blog")

	err := RunFilter(path, FilterOptions{
		Output:    outPath,
		TimeStart: base.Add(30 * time.Minute).Format(time.RFC3339),
		TimeEnd:   base.Add(2 * time.Hour).Format(time.RFC3339),
		Category:  "misuse",
	}, io.Discard)
	if err != nil {
		t.Fatalf("RunFilter failed: %v", err)
	}

	events := readAll(t, outPath)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if !events[0].Timestamp.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected event time %v", events[0].Timestamp)
	}
}

func TestFilterRequiresOutput(t *testing.T) {
	if err := RunFilter("unused", FilterOptions{}, io.Discard); err == nil {
		t.Fatal("expected error without output")
	}
}

func TestBuildFilterRejectsBadInput(t *testing.T) {
	tests := []FilterOptions{
		{TimeStart: "yesterday"},
		{TimeEnd: "tomorrow"},
		{Layer: "wire"},
		{Direction: "up"},
		{Category: "noise"},
	}
	for _, opts := range tests {
		if _, err := opts.BuildFilter(); err == nil {
			t.Errorf("expected error for %+v", opts)
		}
	}
}

func TestBuildFilterDirection(t *testing.T) {
	f, err := FilterOptions{Direction: "out", Layer: "transport"}.BuildFilter()
	if err != nil {
		t.Fatalf("BuildFilter failed: %v", err)
	}
	if f.Direction == nil || *f.Direction != log.DirectionOut {
		t.Errorf("expected OUT direction, got %v", f.Direction)
	}
	if f.Layer == nil || *f.Layer != log.LayerTransport {
		t.Errorf("expected TRANSPORT layer, got %v", f.Layer)
	}
}
