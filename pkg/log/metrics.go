package log

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsLogger turns events into Prometheus counters.
type MetricsLogger struct {
	events     *prometheus.CounterVec
	frames     *prometheus.CounterVec
	reconnects *prometheus.CounterVec
	misuse     *prometheus.CounterVec
	states     *prometheus.CounterVec
}

// NewMetricsLogger creates the busline counters and registers them with reg.
// A nil reg skips registration, which is useful in tests.
func NewMetricsLogger(reg prometheus.Registerer) *MetricsLogger {
	m := &MetricsLogger{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "busline",
				Name:      "events_total",
				Help:      "Events emitted, by layer and category.",
			},
			[]string{"layer", "category"},
		),
		frames: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "busline",
				Subsystem: "bus",
				Name:      "frames_total",
				Help:      "Bus frames sent and received, by command.",
			},
			[]string{"direction", "command"},
		),
		reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "busline",
				Subsystem: "connection",
				Name:      "reconnect_attempts_total",
				Help:      "Reconnect attempts fired, and budgets exhausted.",
			},
			[]string{"outcome"},
		),
		misuse: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "busline",
				Subsystem: "client",
				Name:      "ignored_operations_total",
				Help:      "Operations ignored as tolerated caller errors.",
			},
			[]string{"operation", "reason"},
		),
		states: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "busline",
				Subsystem: "connection",
				Name:      "state_transitions_total",
				Help:      "Lifecycle transitions, by entity and new state.",
			},
			[]string{"entity", "state"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.events, m.frames, m.reconnects, m.misuse, m.states)
	}
	return m
}

// Log increments the counters matching the event.
func (m *MetricsLogger) Log(event Event) {
	m.events.WithLabelValues(event.Layer.String(), event.Category.String()).Inc()

	switch {
	case event.Frame != nil:
		m.frames.WithLabelValues(event.Direction.String(), event.Frame.Command).Inc()
	case event.Reconnect != nil:
		switch {
		case event.Reconnect.Exhausted:
			m.reconnects.WithLabelValues("exhausted").Inc()
		case event.Reconnect.Attempt > 0:
			m.reconnects.WithLabelValues("fired").Inc()
		}
	case event.Misuse != nil:
		m.misuse.WithLabelValues(event.Misuse.Operation, event.Misuse.Reason).Inc()
	case event.StateChange != nil:
		m.states.WithLabelValues(event.StateChange.Entity.String(), event.StateChange.NewState).Inc()
	}
}

// Collectors returns the underlying collectors.
func (m *MetricsLogger) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.events, m.frames, m.reconnects, m.misuse, m.states}
}

var _ Logger = (*MetricsLogger)(nil)
