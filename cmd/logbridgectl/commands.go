package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the log service is connected to its backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.dial()
			if err != nil {
				return fmt.Errorf("logbridgectl status: %w", err)
			}
			defer client.Close()

			online, message, err := client.CheckIfOnline()
			if err != nil {
				return fmt.Errorf("logbridgectl status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatus(online, message))
			if !online {
				return errOffline
			}
			return nil
		},
	}
}

func newFlushCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Trigger an immediate flush of pending log entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.dial()
			if err != nil {
				return fmt.Errorf("logbridgectl flush: %w", err)
			}
			defer client.Close()

			flushed, err := client.TriggerFlush()
			if err != nil {
				return fmt.Errorf("logbridgectl flush: %w", err)
			}
			if !flushed {
				return errors.New("logbridgectl flush: node did not accept the flush")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "flush triggered")
			return nil
		},
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show forwarding counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := opts.dial()
			if err != nil {
				return fmt.Errorf("logbridgectl stats: %w", err)
			}
			defer client.Close()

			stats, err := client.Stats()
			if err != nil {
				return fmt.Errorf("logbridgectl stats: %w", err)
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			fmt.Fprintln(w, renderStats(stats))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print counters as JSON")
	return cmd
}
