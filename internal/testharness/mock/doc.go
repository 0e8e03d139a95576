// Package mock provides in-memory transports, a STOMP broker and a manual
// timer scheduler for testing busline without sockets or sleeps.
//
// Events are delivered synchronously on the calling goroutine: Open,
// Deliver and Drop invoke the transport callbacks before returning, and the
// Broker replies from inside Send. Tests drive every step explicitly.
package mock
