package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/busline/busline-go/pkg/bus"
	"github.com/busline/busline-go/pkg/connection"
)

func newSendCommand(opts *rootOptions) *cobra.Command {
	var (
		to      string
		body    string
		headers map[string]string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Publish one JSON message and disconnect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !json.Valid([]byte(body)) {
				return fmt.Errorf("--body is not valid JSON")
			}

			rt, err := newRuntime(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.close()
			if err := rt.requireTarget(); err != nil {
				return err
			}

			states := watchStates(rt.client, rt.logger)
			if err := rt.connect(func(bus.Message) {}, nil); err != nil {
				return err
			}

			ctx := cmd.Context()
			s, err := states.waitFor(ctx, timeout, connection.StateConnected, connection.StateFailed)
			if err != nil {
				rt.client.Close()
				return err
			}
			if s == connection.StateFailed {
				return errGaveUp
			}

			dest := to
			if dest == "" {
				dest = rt.cfg.Channel
			}
			if err := rt.client.Send(dest, headers, json.RawMessage(body)); err != nil {
				rt.client.Close()
				return err
			}

			rt.client.Close()
			if _, err := states.waitFor(ctx, timeout, connection.StateDisconnected); err != nil {
				return errors.Join(errors.New("disconnect did not complete"), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "destination (defaults to --channel)")
	cmd.Flags().StringVar(&body, "body", "", "JSON body")
	cmd.Flags().StringToStringVar(&headers, "header", nil, "SEND header (key=value, repeatable)")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "how long to wait for the connection")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}
