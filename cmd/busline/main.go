// Command busline is a STOMP-over-WebSocket publish/subscribe client.
//
// Usage:
//
//	busline <command> [flags]
//
// Commands:
//
//	listen   Connect and print every message of the default channel
//	send     Publish one JSON message and disconnect
//	shell    Interactive session
//	log      Inspect binary event logs written with --event-log
//
// Examples:
//
//	# Print updates, reconnecting on drops
//	busline listen --url ws://localhost:15674/ws --channel /topic/updates
//
//	# Publish one message
//	busline send --url ws://localhost:15674/ws --channel /topic/updates --body '{"temp":21}'
//
//	# Record an event log and inspect it afterwards
//	busline listen --config busline.yaml --event-log session.blog
//	busline log view --category reconnect session.blog
package main

import (
	"context"
	"os"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
