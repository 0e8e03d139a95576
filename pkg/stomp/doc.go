// Package stomp implements bus.Session for STOMP 1.0-1.2 brokers.
//
// Frames are encoded with github.com/go-stomp/stomp/v3/frame, one frame per
// transport message, the way STOMP-over-WebSocket brokers (RabbitMQ
// Web-STOMP, ActiveMQ, Spring's simple broker) expect them.
//
// # Session Flow
//
//	Connect(header, onReady)  store headers and callback
//	HandleOpen                send CONNECT (accept-version 1.2,1.1,1.0,
//	                          heart-beat 0,0, host)
//	CONNECTED                 mark ready, call onReady once
//	Subscribe                 SUBSCRIBE id:sub-N ack:auto
//	MESSAGE                   routed by the subscription header
//	Disconnect                DISCONNECT, close transport, CleanUp
//
// Heart-beating is not negotiated; liveness is left to the transport.
package stomp
