package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/busline/busline-go/pkg/bus"
	"github.com/busline/busline-go/pkg/connection"
	"github.com/busline/busline-go/pkg/log"
	"github.com/busline/busline-go/pkg/stomp"
	"github.com/busline/busline-go/pkg/subscription"
	"github.com/busline/busline-go/pkg/transport"
)

// ErrSerialization is returned by Send when the body cannot be encoded.
var ErrSerialization = errors.New("messaging: body is not JSON encodable")

// Client is a reconnecting publish/subscribe client.
type Client struct {
	logger   log.Logger
	conn     *connection.Manager
	registry *subscription.Registry
}

// New creates a disconnected Client.
func New(cfg Config) (*Client, error) {
	if cfg.Dialer == nil {
		cfg.Dialer = &transport.WebSocketDialer{}
	}
	if cfg.SessionFactory == nil {
		cfg.SessionFactory = stomp.Factory()
	}
	logger := log.OrNoop(cfg.Logger)
	registry := subscription.NewRegistry(logger)

	conn, err := connection.NewManager(connection.Config{
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		ReconnectInterval:    cfg.ReconnectInterval,
		BackoffMultiplier:    cfg.BackoffMultiplier,
		MaxReconnectInterval: cfg.MaxReconnectInterval,
		Jitter:               cfg.Jitter,
		Dialer:               cfg.Dialer,
		SessionFactory:       cfg.SessionFactory,
		Registry:             registry,
		Logger:               logger,
		AfterFunc:            cfg.AfterFunc,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		logger:   logger,
		conn:     conn,
		registry: registry,
	}, nil
}

// Connect opens the connection to url with the given STOMP CONNECT
// headers and subscribes handler to channel once the broker accepts.
// onReconnected runs each time a dropped connection is re-established.
//
// Connect does nothing while connected and returns
// connection.ErrConnectInProgress while a connect or retry is pending.
// A failed dial is logged and leaves the client disconnected.
func (c *Client) Connect(header map[string]string, url, channel string, handler bus.Handler, onReconnected func()) error {
	return c.conn.Connect(header, url, channel, handler, onReconnected)
}

// SetDefaultHandler replaces the handler of the default channel and the
// reconnect callback. The previous default subscription is removed first.
func (c *Client) SetDefaultHandler(handler bus.Handler, onReconnected func()) {
	sess := c.conn.Session()
	if sess == nil {
		c.misuse("SetDefaultHandler", log.ReasonNotConnected)
		return
	}

	channel, _ := c.registry.Binding()
	if _, err := c.registry.InstallDefault(sess, channel, handler); err != nil {
		c.logError("set default handler", channel, err)
		return
	}
	c.conn.SetOnReconnected(onReconnected)
}

// RemoveDefaultHandler unsubscribes the default channel. It is not
// reinstalled on reconnect.
func (c *Client) RemoveDefaultHandler() {
	c.registry.RemoveDefault(c.conn.Session())
}

// AddListener subscribes handler to channel and returns the handle, or
// nil when not connected. Listeners are not restored after a reconnect.
func (c *Client) AddListener(channel string, handler bus.Handler) bus.Subscription {
	return c.registry.AddCustom(c.conn.Session(), channel, handler)
}

// RemoveListener unsubscribes sub. Nil and empty handles are ignored.
// It reports whether an UNSUBSCRIBE was sent.
func (c *Client) RemoveListener(sub bus.Subscription) bool {
	if !bus.Valid(sub) {
		c.misuse("RemoveListener", log.ReasonInvalidHandle)
		return false
	}
	return c.registry.RemoveCustom(c.conn.Session(), sub)
}

// Send encodes body as JSON and publishes it to channel. Only encoding
// failures are returned; a send while disconnected is logged and dropped.
func (c *Client) Send(channel string, header map[string]string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	sess := c.conn.Session()
	if sess == nil {
		c.misuse("Send", log.ReasonNotConnected)
		return nil
	}
	if err := sess.Send(channel, header, string(data)); err != nil {
		c.logError("send", channel, err)
	}
	return nil
}

// Close disconnects voluntarily. No reconnect follows.
func (c *Client) Close() {
	c.conn.Close()
}

// IsConnected reports whether the transport is open and the handshake
// completed.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// State returns the connection state.
func (c *Client) State() connection.State {
	return c.conn.State()
}

// ReconnectCount returns the number of retries since the last open.
func (c *Client) ReconnectCount() int {
	return c.conn.ReconnectCount()
}

// OnStateChange sets a callback invoked after each state transition.
func (c *Client) OnStateChange(fn func(from, to connection.State)) {
	c.conn.OnStateChange(fn)
}

func (c *Client) emit(e log.Event) {
	e.Timestamp = time.Now()
	e.ConnectionID = c.conn.ConnectionID()
	e.Direction = log.DirectionLocal
	e.Layer = log.LayerClient
	c.logger.Log(e)
}

func (c *Client) misuse(op, reason string) {
	c.emit(log.Event{
		Category: log.CategoryMisuse,
		Misuse:   &log.MisuseEvent{Operation: op, Reason: reason},
	})
}

func (c *Client) logError(op, channel string, err error) {
	c.emit(log.Event{
		Category: log.CategoryError,
		Channel:  channel,
		Error: &log.ErrorEventData{
			Layer:   log.LayerClient,
			Message: err.Error(),
			Context: op,
		},
	})
}
