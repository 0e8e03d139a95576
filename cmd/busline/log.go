package main

import (
	"github.com/spf13/cobra"

	"github.com/busline/busline-go/cmd/busline/commands"
)

func newLogCommand() *cobra.Command {
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect binary event logs",
	}
	logCmd.AddCommand(newLogViewCommand(), newLogStatsCommand(), newLogFilterCommand())
	return logCmd
}

func newLogViewCommand() *cobra.Command {
	var (
		connID    string
		channel   string
		layer     string
		direction string
		category  string
	)

	cmd := &cobra.Command{
		Use:   "view <file.blog>",
		Short: "View log file in human-readable format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := commands.ViewFilter{ConnectionID: connID, Channel: channel}
			if layer != "" {
				l, err := commands.ParseLayerFlag(layer)
				if err != nil {
					return err
				}
				filter.Layer = &l
			}
			if direction != "" {
				d, err := commands.ParseDirectionFlag(direction)
				if err != nil {
					return err
				}
				filter.Direction = &d
			}
			if category != "" {
				c, err := commands.ParseCategoryFlag(category)
				if err != nil {
					return err
				}
				filter.Category = &c
			}
			return commands.RunView(args[0], filter, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVar(&connID, "conn-id", "", "filter by connection ID")
	f.StringVar(&channel, "channel", "", "filter by channel")
	f.StringVar(&layer, "layer", "", "filter by layer (transport, bus, client)")
	f.StringVar(&direction, "direction", "", "filter by direction (in, out, local)")
	f.StringVar(&category, "category", "", "filter by category (message, control, state, error, misuse, reconnect)")
	return cmd
}

func newLogStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file.blog>",
		Short: "Show statistics about the log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunStats(args[0], cmd.OutOrStdout())
		},
	}
}

func newLogFilterCommand() *cobra.Command {
	var opts commands.FilterOptions

	cmd := &cobra.Command{
		Use:   "filter <file.blog>",
		Short: "Filter log file and write to new file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunFilter(args[0], opts, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Output, "output", "o", "", "output file (required)")
	f.StringVar(&opts.ConnID, "conn-id", "", "filter by connection ID")
	f.StringVar(&opts.Channel, "channel", "", "filter by channel")
	f.StringVar(&opts.TimeStart, "time-start", "", "events at or after this time (RFC3339)")
	f.StringVar(&opts.TimeEnd, "time-end", "", "events before this time (RFC3339)")
	f.StringVar(&opts.Layer, "layer", "", "filter by layer")
	f.StringVar(&opts.Direction, "direction", "", "filter by direction")
	f.StringVar(&opts.Category, "category", "", "filter by category")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
