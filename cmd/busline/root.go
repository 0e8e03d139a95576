package main

import (
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by the connecting commands.
// Non-empty values override the config file.
type rootOptions struct {
	configPath    string
	url           string
	channel       string
	headers       map[string]string
	logLevel      string
	eventLog      string
	metricsListen string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "busline",
		Short:        "STOMP over WebSocket publish/subscribe client",
		Long:         "busline connects to a STOMP broker over WebSocket, subscribes a default channel and reconnects after drops.",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	flags.StringVar(&opts.url, "url", "", "broker WebSocket URL (ws:// or wss://)")
	flags.StringVar(&opts.channel, "channel", "", "default subscription destination")
	flags.StringToStringVar(&opts.headers, "connect-header", nil, "STOMP CONNECT header (key=value, repeatable)")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&opts.eventLog, "event-log", "", "write binary event log to this file")
	flags.StringVar(&opts.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")

	root.AddCommand(newListenCommand(opts))
	root.AddCommand(newSendCommand(opts))
	root.AddCommand(newShellCommand(opts))
	root.AddCommand(newLogCommand())
	return root
}
