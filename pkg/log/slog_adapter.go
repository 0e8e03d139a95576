package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes events to an slog.Logger.
// Frames go out at Debug, misuse and reconnect events at Info, errors and
// budget exhaustion at Warn.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger.
func (a *SlogAdapter) Log(event Event) {
	level := slog.LevelDebug
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.URL != "" {
		attrs = append(attrs, slog.String("url", event.URL))
	}
	if event.Channel != "" {
		attrs = append(attrs, slog.String("channel", event.Channel))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs,
			slog.String("command", event.Frame.Command),
			slog.Int("frame_size", event.Frame.Size),
			slog.Bool("truncated", event.Frame.Truncated),
		)
		if event.Frame.SubscriptionID != "" {
			attrs = append(attrs, slog.String("sub_id", event.Frame.SubscriptionID))
		}
	case event.StateChange != nil:
		level = slog.LevelInfo
		attrs = append(attrs,
			slog.String("entity", event.StateChange.Entity.String()),
			slog.String("old_state", event.StateChange.OldState),
			slog.String("new_state", event.StateChange.NewState),
		)
		if event.StateChange.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.StateChange.Reason))
		}
	case event.Reconnect != nil:
		level = slog.LevelInfo
		if event.Reconnect.Exhausted {
			level = slog.LevelWarn
		}
		attrs = append(attrs,
			slog.Int("attempt", event.Reconnect.Attempt),
			slog.Int("max_attempts", event.Reconnect.MaxAttempts),
			slog.Duration("delay", event.Reconnect.Delay),
			slog.Bool("exhausted", event.Reconnect.Exhausted),
		)
	case event.Misuse != nil:
		level = slog.LevelInfo
		attrs = append(attrs,
			slog.String("operation", event.Misuse.Operation),
			slog.String("reason", event.Misuse.Reason),
		)
	case event.Error != nil:
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message),
			slog.String("error_context", event.Error.Context),
		)
		if event.Error.Code != nil {
			attrs = append(attrs, slog.Int("error_code", *event.Error.Code))
		}
	}

	a.logger.LogAttrs(context.Background(), level, "busline", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
