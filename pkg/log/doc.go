// Package log provides structured lifecycle and frame logging for busline.
//
// This package defines the Logger interface and Event types for capturing
// events at the transport, bus and client layers. It is separate from
// operational logging (slog): event capture yields a machine-readable trace
// that tests can assert on and the busline CLI can replay.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	opts = append(opts, messaging.WithLogger(log.NewSlogAdapter(slog.Default())))
//
//	// For production: write to a binary event file
//	fl, _ := log.NewFileLogger("/var/log/busline/client.blog")
//
//	// Both, plus Prometheus counters
//	logger := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fl,
//	    log.NewMetricsLogger(prometheus.DefaultRegisterer),
//	)
//
// # Event Types
//
//   - Frame: a bus frame sent or received (FrameEvent)
//   - StateChange: connection, session or subscription lifecycle
//   - Reconnect: a scheduled or fired reconnect attempt
//   - Misuse: a tolerated caller error (operation while disconnected,
//     invalid subscription handle)
//   - Error: failures absorbed at any layer
//
// # File Format
//
// Event files are a stream of CBOR-encoded events with integer keys and use
// the .blog extension. "busline log view" and "busline log stats" read them.
package log
