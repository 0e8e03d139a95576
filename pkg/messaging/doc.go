// Package messaging is the public surface of busline.
//
// A Client keeps one publish/subscribe connection to a STOMP broker over
// WebSocket. It connects once, installs a default subscription, and keeps
// both alive across network drops:
//
//	client, err := messaging.New(messaging.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	err = client.Connect(nil, "wss://broker.example/ws", "/topic/updates",
//		func(msg bus.Message) { fmt.Println(string(msg.Body)) },
//		func() { fmt.Println("reconnected") },
//	)
//
//	client.Send("/topic/commands", nil, map[string]any{"op": "ping"})
//	client.Close()
//
// Calls made while not connected do nothing and are reported as
// log.CategoryMisuse events. Send returns an error only when the body
// cannot be encoded as JSON.
package messaging
