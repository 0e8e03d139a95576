package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/busline/busline-go/pkg/connection"
	"github.com/busline/busline-go/pkg/messaging"
)

// Config is the file format.
type Config struct {
	// URL is the broker WebSocket endpoint.
	URL string `yaml:"url"`

	// Channel is the default subscription destination.
	Channel string `yaml:"channel"`

	// Headers are sent with the first STOMP CONNECT.
	Headers map[string]string `yaml:"headers"`

	Reconnect ReconnectConfig `yaml:"reconnect"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ReconnectConfig configures retries after a drop.
type ReconnectConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxInterval time.Duration `yaml:"max_interval"`
	Jitter      float64       `yaml:"jitter"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// File receives the binary event log, if set.
	File string `yaml:"file"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Listen is the address serving /metrics. Empty disables it.
	Listen string `yaml:"listen"`
}

// LoadError describes a configuration that could not be loaded.
type LoadError struct {
	// File is the path to the file that failed to load.
	File string

	// Message describes the error.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *LoadError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	if e.File == "" {
		return msg
	}
	return e.File + ": " + msg
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// Default returns the built-in settings.
func Default() Config {
	mc := messaging.DefaultConfig()
	return Config{
		Reconnect: ReconnectConfig{
			MaxAttempts: mc.MaxReconnectAttempts,
			Interval:    mc.ReconnectInterval,
			Multiplier:  mc.BackoffMultiplier,
			MaxInterval: mc.MaxReconnectInterval,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Parse decodes YAML on top of Default and validates the result.
// Empty input yields Default.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			le.File = path
			return nil, le
		}
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	return cfg, nil
}

// applyDefaults restores defaults for values explicitly zeroed in the file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = d.Reconnect.MaxAttempts
	}
	if c.Reconnect.Interval == 0 {
		c.Reconnect.Interval = d.Reconnect.Interval
	}
	if c.Reconnect.Multiplier == 0 {
		c.Reconnect.Multiplier = d.Reconnect.Multiplier
	}
	if c.Reconnect.MaxInterval == 0 {
		c.Reconnect.MaxInterval = d.Reconnect.MaxInterval
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// Validate checks value ranges. The URL is checked only when set, since
// commands may supply it by flag.
func (c *Config) Validate() error {
	if c.URL != "" {
		u, err := url.Parse(c.URL)
		if err != nil {
			return &LoadError{Message: "invalid url", Cause: err}
		}
		switch u.Scheme {
		case "ws", "wss", "http", "https":
		default:
			return &LoadError{Message: fmt.Sprintf("url scheme %q is not ws, wss, http or https", u.Scheme)}
		}
	}
	if c.Reconnect.MaxAttempts < 0 {
		return &LoadError{Message: "reconnect.max_attempts must not be negative"}
	}
	if c.Reconnect.Interval < 0 || c.Reconnect.MaxInterval < 0 {
		return &LoadError{Message: "reconnect intervals must not be negative"}
	}
	if c.Reconnect.Multiplier < 1 {
		return &LoadError{Message: "reconnect.multiplier must be at least 1"}
	}
	if c.Reconnect.Jitter < 0 || c.Reconnect.Jitter > 1 {
		return &LoadError{Message: "reconnect.jitter must be between 0 and 1"}
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return &LoadError{Message: "invalid log.level", Cause: err}
	}
	return nil
}

// Messaging returns the client settings described by c.
func (c *Config) Messaging() messaging.Config {
	mc := messaging.DefaultConfig()
	mc.MaxReconnectAttempts = c.Reconnect.MaxAttempts
	mc.ReconnectInterval = c.Reconnect.Interval
	mc.BackoffMultiplier = c.Reconnect.Multiplier
	mc.MaxReconnectInterval = c.Reconnect.MaxInterval
	mc.Jitter = c.Reconnect.Jitter
	if mc.MaxReconnectAttempts == 0 {
		mc.MaxReconnectAttempts = connection.DefaultMaxReconnectAttempts
	}
	return mc
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown level %q", s)
	}
}
