package messaging

import (
	"time"

	"github.com/busline/busline-go/pkg/bus"
	"github.com/busline/busline-go/pkg/connection"
	"github.com/busline/busline-go/pkg/log"
	"github.com/busline/busline-go/pkg/transport"
)

// Config configures a Client.
type Config struct {
	// MaxReconnectAttempts bounds automatic reconnects after a drop.
	MaxReconnectAttempts int

	// ReconnectInterval is the delay before each reconnect attempt.
	ReconnectInterval time.Duration

	// BackoffMultiplier grows the interval per attempt. 1 keeps it fixed.
	BackoffMultiplier float64

	// MaxReconnectInterval caps the grown interval.
	MaxReconnectInterval time.Duration

	// Jitter adds up to this fraction of each delay at random.
	Jitter float64

	// Dialer creates transports. Defaults to a WebSocketDialer.
	Dialer transport.Dialer

	// SessionFactory wraps transports in bus sessions. Defaults to STOMP.
	SessionFactory bus.Factory

	// Logger receives protocol and lifecycle events.
	// If nil, events are discarded.
	Logger log.Logger

	// AfterFunc schedules reconnect attempts. Tests replace it.
	AfterFunc connection.AfterFunc
}

// DefaultConfig returns a Config with a fixed one second interval and a
// budget of 30 attempts.
func DefaultConfig() Config {
	return Config{
		MaxReconnectAttempts: connection.DefaultMaxReconnectAttempts,
		ReconnectInterval:    connection.DefaultReconnectInterval,
		BackoffMultiplier:    connection.DefaultBackoffMultiplier,
		MaxReconnectInterval: connection.DefaultMaxReconnectInterval,
	}
}
