package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/busline/busline-go/pkg/bus"
	"github.com/busline/busline-go/pkg/config"
	"github.com/busline/busline-go/pkg/connection"
	"github.com/busline/busline-go/pkg/log"
	"github.com/busline/busline-go/pkg/messaging"
)

// runtime holds everything a connecting command needs.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	client   *messaging.Client
	metrics  *prometheus.Registry
	eventLog *log.FileLogger
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	var cfg *config.Config
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		d := config.Default()
		cfg = &d
	}

	if opts.url != "" {
		cfg.URL = opts.url
	}
	if opts.channel != "" {
		cfg.Channel = opts.channel
	}
	if len(opts.headers) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string, len(opts.headers))
		}
		for k, v := range opts.headers {
			cfg.Headers[k] = v
		}
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.eventLog != "" {
		cfg.Log.File = opts.eventLog
	}
	if opts.metricsListen != "" {
		cfg.Metrics.Listen = opts.metricsListen
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newRuntime builds the logger chain and the client. Diagnostics go to
// stderr so stdout stays machine readable.
func newRuntime(opts *rootOptions, stderr io.Writer) (*runtime, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	level, err := config.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rt := &runtime{cfg: cfg, logger: logger}
	loggers := []log.Logger{log.NewSlogAdapter(logger)}

	if cfg.Log.File != "" {
		fl, err := log.NewFileLogger(cfg.Log.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open event log: %w", err)
		}
		rt.eventLog = fl
		loggers = append(loggers, fl)
	}
	if cfg.Metrics.Listen != "" {
		rt.metrics = prometheus.NewRegistry()
		loggers = append(loggers, log.NewMetricsLogger(rt.metrics))
	}

	mc := cfg.Messaging()
	mc.Logger = log.NewMultiLogger(loggers...)
	client, err := messaging.New(mc)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.client = client
	return rt, nil
}

// requireTarget fails unless the broker URL and channel are known.
func (rt *runtime) requireTarget() error {
	if rt.cfg.URL == "" || rt.cfg.Channel == "" {
		return errors.New("both url and channel are required (flags or config file)")
	}
	return nil
}

// connect starts the connection with the configured URL, channel and
// headers. The client absorbs dial failures, so a client still
// disconnected afterwards means the URL could not be dialed.
func (rt *runtime) connect(handler bus.Handler, onReconnected func()) error {
	if err := rt.client.Connect(rt.cfg.Headers, rt.cfg.URL, rt.cfg.Channel, handler, onReconnected); err != nil {
		return err
	}
	if rt.client.State() == connection.StateDisconnected {
		return fmt.Errorf("could not dial %s (see log)", rt.cfg.URL)
	}
	return nil
}

// serveMetrics runs the metrics endpoint in g until ctx is done.
func (rt *runtime) serveMetrics(ctx context.Context, g *errgroup.Group) {
	if rt.metrics == nil {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(rt.metrics, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              rt.cfg.Metrics.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		rt.logger.Info("serving metrics", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// close releases the event log.
func (rt *runtime) close() {
	if rt.eventLog == nil {
		return
	}
	if n := rt.eventLog.Dropped(); n > 0 {
		rt.logger.Warn("event log dropped events", "count", n)
	}
	if err := rt.eventLog.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "closing event log: %v\n", err)
	}
}

// stateWatcher buffers state transitions for commands that block on them.
type stateWatcher struct {
	ch chan connection.State
}

// watchStates installs the client's state callback. It must be called
// before Connect so no transition is missed.
func watchStates(client *messaging.Client, logger *slog.Logger) *stateWatcher {
	w := &stateWatcher{ch: make(chan connection.State, 64)}
	client.OnStateChange(func(from, to connection.State) {
		logger.Info("connection state", "from", from.String(), "to", to.String())
		select {
		case w.ch <- to:
		default:
		}
	})
	return w
}

// waitFor blocks until one of want is entered and returns it.
func (w *stateWatcher) waitFor(ctx context.Context, timeout time.Duration, want ...connection.State) (connection.State, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case s := <-w.ch:
			for _, ws := range want {
				if s == ws {
					return s, nil
				}
			}
		case <-deadline:
			return 0, fmt.Errorf("timed out after %s waiting for %v", timeout, want)
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
}
