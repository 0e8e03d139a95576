// Package transport provides the socket layer that carries bus frames.
//
// A Transport is a duplex message channel created by a Dialer. Events are
// delivered through the Events callbacks supplied at dial time:
//
//	OnOpen     the socket is ready; ReadyState() == StateOpen
//	OnMessage  one complete inbound message
//	OnClose    the socket is gone; fires exactly once per dialed transport,
//	           including dials that never opened
//
// Events for one transport are delivered sequentially from a goroutine owned
// by the transport, never from inside Dial, Send or Close.
//
// # Ready States
//
// ReadyState mirrors the browser WebSocket readyState numbering:
//
//	0 CONNECTING
//	1 OPEN
//	2 CLOSING
//	3 CLOSED
//
// # WebSocket
//
// WebSocketDialer implements Dialer on top of github.com/coder/websocket.
// Every text or binary message becomes one OnMessage call. Close codes
// follow RFC 6455; a socket lost without a close frame reports 1006.
package transport
