// Package bus defines the message-bus session the connection manager drives.
//
// A Session layers a publish/subscribe protocol over one transport.Transport.
// The connection manager forwards the transport events to the session
// (HandleOpen, HandleMessage) and calls CleanUp when the transport is lost.
// The stomp package provides the STOMP 1.2 implementation.
//
// # Handshake
//
//	session.Connect(header, onReady)   arm the handshake
//	transport OnOpen -> HandleOpen     send the protocol CONNECT
//	CONNECTED frame  -> onReady        session usable, called at most once
//
// # Subscriptions
//
// Subscribe returns a Subscription handle owned by the caller. Handles die
// with the session: after CleanUp no handler is invoked and Unsubscribe is
// a no-op.
package bus
