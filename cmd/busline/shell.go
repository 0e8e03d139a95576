package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/busline/busline-go/cmd/busline/interactive"
)

func newShellCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive session",
		Long:  "Interactive session. url and channel from flags or the config file become the defaults of the connect command.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Keep the prompt readable unless asked otherwise.
			if opts.logLevel == "" {
				opts.logLevel = "warn"
			}

			rt, err := newRuntime(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer rt.close()

			sh, err := interactive.New(rt.client, interactive.Options{
				URL:     rt.cfg.URL,
				Channel: rt.cfg.Channel,
				Header:  rt.cfg.Headers,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			sh.Run(ctx, cancel)
			return nil
		},
	}
}
