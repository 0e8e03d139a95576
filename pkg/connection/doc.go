// Package connection manages the lifecycle of a single bus connection.
//
// A Manager owns at most one transport and one bus session at a time. It
// dials, drives the bus handshake, installs the default subscription
// through a subscription.Registry, and recovers from unexpected drops with
// bounded, timer-driven retries.
//
// # States
//
//	Disconnected -> Connecting -> Connected
//	Connected -> Reconnecting -> Connecting -> Connected
//	Reconnecting -> Failed (retry budget exhausted)
//	any -> Disconnected (voluntary Close)
//
// Failed and Disconnected are left only by an explicit Connect, which
// starts a fresh retry budget.
//
// # Reconnection
//
// When a transport closes without a preceding Close, the Manager schedules
// one attempt after the reconnect interval. Each fired timer increments the
// reconnect count; once the count reaches MaxReconnectAttempts the Manager
// settles Failed. A transport that opens resets the count and, when the
// count was non-zero, calls the reconnect callback.
//
// The interval is fixed at one second by default. A backoff multiplier,
// a cap and jitter may be configured:
//
//	delay = min(interval * multiplier^n, max) + random(0, delay * jitter)
//
// # Concurrency
//
// Transport events arrive on transport goroutines. Every transition is
// made under one mutex; callbacks and session calls that may re-enter run
// after it is released. Events from superseded transports are ignored.
package connection
