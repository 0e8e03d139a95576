package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/busline/busline-go/cmd/busline/commands"
	"github.com/busline/busline-go/pkg/connection"
)

var errGaveUp = errors.New("gave up reconnecting")

func newListenCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "listen",
		Short: "Print messages of the default channel as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runListen(ctx, opts, cmd)
		},
	}
}

func runListen(ctx context.Context, opts *rootOptions, cmd *cobra.Command) error {
	rt, err := newRuntime(opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.close()
	if err := rt.requireTarget(); err != nil {
		return err
	}

	printer := commands.NewMessagePrinter(cmd.OutOrStdout())
	states := watchStates(rt.client, rt.logger)

	g, ctx := errgroup.WithContext(ctx)
	rt.serveMetrics(ctx, g)

	if err := rt.connect(printer.Handle, func() {
		rt.logger.Info("reconnected", "url", rt.cfg.URL)
	}); err != nil {
		return err
	}

	g.Go(func() error {
		_, err := states.waitFor(ctx, 0, connection.StateFailed)
		if err == nil {
			return errGaveUp
		}
		// Interrupted: leave without a reconnect.
		rt.client.Close()
		return nil
	})

	return g.Wait()
}
