// Package interactive provides the interactive command-line interface
// for busline.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"

	"github.com/busline/busline-go/cmd/busline/commands"
	"github.com/busline/busline-go/pkg/bus"
	"github.com/busline/busline-go/pkg/connection"
	"github.com/busline/busline-go/pkg/messaging"
)

// Options carries the connection settings used by the connect command.
type Options struct {
	URL     string
	Channel string
	Header  map[string]string
}

// Shell handles interactive mode.
type Shell struct {
	client  *messaging.Client
	opts    Options
	out     io.Writer
	printer *commands.MessagePrinter
	rl      *readline.Instance

	// Listener handles by subscription id.
	listeners map[string]bus.Subscription
}

// New creates a shell reading commands from the terminal.
func New(client *messaging.Client, opts Options) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "busline> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	s := newShell(client, opts, rl.Stdout())
	s.rl = rl
	return s, nil
}

func newShell(client *messaging.Client, opts Options, out io.Writer) *Shell {
	s := &Shell{
		client:    client,
		opts:      opts,
		out:       out,
		printer:   commands.NewMessagePrinter(out),
		listeners: make(map[string]bus.Subscription),
	}
	client.OnStateChange(func(from, to connection.State) {
		fmt.Fprintf(s.out, "[state] %s -> %s\n", from, to)
	})
	return s
}

// Stdout returns a writer that properly coordinates with the readline input.
func (s *Shell) Stdout() io.Writer {
	return s.out
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			cancel()
			return
		}

		if !s.Exec(line) {
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false when the shell should exit.
func (s *Shell) Exec(line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()

	case "connect", "c":
		s.cmdConnect(args)

	case "send", "s":
		s.cmdSend(input)

	case "sub":
		s.cmdSub(args)

	case "unsub":
		s.cmdUnsub(args)

	case "default":
		s.client.SetDefaultHandler(s.printer.Handle, s.onReconnected)

	case "undefault":
		s.client.RemoveDefaultHandler()

	case "status":
		s.cmdStatus()

	case "close":
		s.client.Close()

	case "quit", "exit", "q":
		s.client.Close()
		fmt.Fprintln(s.out, "Exiting...")
		return false

	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (s *Shell) printHelp() {
	fmt.Fprintln(s.out, `
busline Commands:
  Connection:
    connect [url] [channel] - Connect and subscribe the default channel
    close                   - Disconnect (no reconnect)
    status                  - Show connection state

  Messaging:
    send <channel> <json>   - Publish a JSON body
    sub <channel>           - Add a listener
    unsub <id>              - Remove a listener
    default                 - Reinstall the default subscription
    undefault               - Remove the default subscription

  Other:
    help                    - Show this help
    quit                    - Close and exit`)
}

func (s *Shell) onReconnected() {
	fmt.Fprintln(s.out, "[reconnected]")
}

func (s *Shell) cmdConnect(args []string) {
	url, channel := s.opts.URL, s.opts.Channel
	if len(args) > 0 {
		url = args[0]
	}
	if len(args) > 1 {
		channel = args[1]
	}
	if url == "" || channel == "" {
		fmt.Fprintln(s.out, "Usage: connect <url> <channel>")
		return
	}

	if err := s.client.Connect(s.opts.Header, url, channel, s.printer.Handle, s.onReconnected); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	if s.client.State() == connection.StateDisconnected {
		fmt.Fprintf(s.out, "Error: could not dial %s\n", url)
	}
}

func (s *Shell) cmdSend(input string) {
	// The body is everything after the channel, spaces included.
	parts := strings.SplitN(input, " ", 3)
	if len(parts) < 3 {
		fmt.Fprintln(s.out, "Usage: send <channel> <json>")
		return
	}
	channel := parts[1]
	body := json.RawMessage(strings.TrimSpace(parts[2]))

	if !s.client.IsConnected() {
		fmt.Fprintln(s.out, "Not connected (message dropped)")
	}
	if err := s.client.Send(channel, nil, body); err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
	}
}

func (s *Shell) cmdSub(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: sub <channel>")
		return
	}

	sub := s.client.AddListener(args[0], s.printer.Handle)
	if sub == nil {
		fmt.Fprintln(s.out, "Not connected")
		return
	}
	s.listeners[sub.ID()] = sub
	fmt.Fprintf(s.out, "Subscribed %s as %s\n", sub.Channel(), sub.ID())
}

func (s *Shell) cmdUnsub(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.out, "Usage: unsub <id>")
		return
	}

	sub, ok := s.listeners[args[0]]
	if !ok {
		fmt.Fprintf(s.out, "Unknown listener: %s\n", args[0])
		return
	}
	delete(s.listeners, args[0])
	if s.client.RemoveListener(sub) {
		fmt.Fprintf(s.out, "Unsubscribed %s\n", args[0])
	} else {
		fmt.Fprintf(s.out, "Listener %s was already gone\n", args[0])
	}
}

func (s *Shell) cmdStatus() {
	fmt.Fprintf(s.out, "State:      %s\n", s.client.State())
	fmt.Fprintf(s.out, "Connected:  %v\n", s.client.IsConnected())
	fmt.Fprintf(s.out, "Reconnects: %d\n", s.client.ReconnectCount())

	if len(s.listeners) == 0 {
		return
	}
	ids := make([]string, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	fmt.Fprintln(s.out, "Listeners:")
	for _, id := range ids {
		fmt.Fprintf(s.out, "  %s  %s\n", id, s.listeners[id].Channel())
	}
}
