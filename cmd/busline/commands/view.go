// Package commands implements the busline subcommands that do not need a
// live connection, plus the message printer shared by listen and shell.
package commands

import (
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/busline/busline-go/pkg/log"
)

// ViewFilter specifies criteria for filtering events in the view command.
type ViewFilter struct {
	ConnectionID string
	Channel      string
	Layer        *log.Layer
	Direction    *log.Direction
	Category     *log.Category
}

func (f ViewFilter) logFilter() log.Filter {
	return log.Filter{
		ConnectionID: f.ConnectionID,
		Channel:      f.Channel,
		Layer:        f.Layer,
		Direction:    f.Direction,
		Category:     f.Category,
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [conn:id] DIRECTION LAYER Type
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")
	connID := shortenConnID(event.ConnectionID)

	var typeLabel string
	switch {
	case event.Frame != nil:
		typeLabel = event.Frame.Command
	case event.StateChange != nil:
		typeLabel = "State"
	case event.Reconnect != nil:
		typeLabel = "Reconnect"
	case event.Misuse != nil:
		typeLabel = "Misuse"
	case event.Error != nil:
		typeLabel = "Error"
	default:
		typeLabel = "Unknown"
	}

	layerStr := event.Layer.String()
	if event.Category == log.CategoryControl {
		layerStr = "CTRL"
	}

	fmt.Fprintf(w, "%s [conn:%s] %-5s %s %s\n", ts, connID, event.Direction.String(), layerStr, typeLabel)
	if event.Channel != "" {
		fmt.Fprintf(w, "  Channel: %s\n", event.Channel)
	}

	switch {
	case event.Frame != nil:
		formatFrameDetails(w, event.Frame)
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Reconnect != nil:
		formatReconnectDetails(w, event.Reconnect)
	case event.Misuse != nil:
		fmt.Fprintf(w, "  Operation: %s\n", event.Misuse.Operation)
		fmt.Fprintf(w, "  Reason: %s\n", event.Misuse.Reason)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func formatFrameDetails(w io.Writer, frame *log.FrameEvent) {
	fmt.Fprintf(w, "  Size: %d bytes\n", frame.Size)
	if frame.SubscriptionID != "" {
		fmt.Fprintf(w, "  Subscription: %s\n", frame.SubscriptionID)
	}
	if len(frame.Data) > 0 {
		fmt.Fprintf(w, "  Body: %s", printable(frame.Data))
		if frame.Truncated {
			fmt.Fprint(w, " (truncated)")
		}
		fmt.Fprintln(w)
	}
}

// printable returns data as text, or %q-quoted when it is not valid UTF-8.
func printable(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	return fmt.Sprintf("%q", data)
}

func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

func formatReconnectDetails(w io.Writer, rc *log.ReconnectEvent) {
	switch {
	case rc.Exhausted:
		fmt.Fprintf(w, "  Gave up after %d of %d attempts\n", rc.Attempt, rc.MaxAttempts)
	case rc.Attempt == 0:
		fmt.Fprintf(w, "  Next attempt in %s\n", formatDuration(rc.Delay))
	default:
		fmt.Fprintf(w, "  Attempt %d of %d\n", rc.Attempt, rc.MaxAttempts)
	}
}

func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Layer: %s\n", err.Layer.String())
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Code != nil {
		fmt.Fprintf(w, "  Code: %d\n", *err.Code)
	}
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1000)
	}
	if d < time.Second {
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	if l, ok := log.ParseLayer(s); ok {
		return l, nil
	}
	return 0, fmt.Errorf("invalid layer: %s (must be transport, bus, or client)", s)
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	case "local":
		return log.DirectionLocal, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in, out, or local)", s)
	}
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	for _, c := range allCategories {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("invalid category: %s (must be message, control, state, error, misuse, or reconnect)", s)
}

var allCategories = []log.Category{
	log.CategoryMessage,
	log.CategoryControl,
	log.CategoryState,
	log.CategoryError,
	log.CategoryMisuse,
	log.CategoryReconnect,
}

// RunView prints every event of the log file at path that matches filter.
func RunView(path string, filter ViewFilter, output io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter.logFilter())
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
