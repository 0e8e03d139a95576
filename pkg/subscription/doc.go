// Package subscription tracks the bus subscriptions of one client.
//
// A Registry holds the default binding (channel and handler) and the
// subscription installed for it on the current session, plus any custom
// subscriptions the application created.
//
// # Default subscription
//
// The binding survives reconnects; the installed subscription does not.
// The connection manager calls InstallDefault after every successful
// handshake and Discard when the transport goes away. Discard drops the
// handles without sending UNSUBSCRIBE since the session that owned them
// is already gone.
//
// Replacing the default while connected unsubscribes the previous one
// exactly once before the new one is created.
//
// # Custom subscriptions
//
// Custom subscriptions belong to the application. They are never
// reinstalled after a reconnect.
//
// # Misuse
//
// Calls without a session, or with nil or empty handles, do nothing and
// emit a log.CategoryMisuse event.
package subscription
