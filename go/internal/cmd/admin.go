package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mcdev12/birthdaycake/go/clients/cake_client"
	"github.com/mcdev12/birthdaycake/go/internal/cake/admin"
	"github.com/mcdev12/birthdaycake/go/internal/cake/statefeed"
	"github.com/spf13/cobra"
)

func newResetCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Relight every candle on a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if err := adminClient(url).Reset(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "candles relit")
			return nil
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "server base URL (default from SERVER_HOST/SERVER_PORT)")
	return cmd
}

func newStateCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Print the aggregate state of a running server as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			state, err := adminClient(url).GetState(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(statefeed.SnapshotOf(state))
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "server base URL (default from SERVER_HOST/SERVER_PORT)")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var url string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print the websocket connections of a running server as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			if url == "" {
				url = adminURL(cfg)
			}
			hc := cake_client.NewHTTPClient(url)
			if err := hc.Health(ctx); err != nil {
				return fmt.Errorf("server unhealthy: %w", err)
			}
			stats, err := hc.Stats(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "server base URL (default from SERVER_HOST/SERVER_PORT)")
	return cmd
}

func adminClient(url string) *admin.Client {
	if url == "" {
		url = adminURL(cfg)
	}
	return admin.NewDefaultClient(url)
}

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay",
		Short: "Print the recorded state feed, then follow it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			feedCfg, ok := stateFeedConfig(cfg)
			if !ok {
				return fmt.Errorf("state feed disabled: set NATS_URL")
			}

			replayer, err := statefeed.NewReplayer(feedCfg)
			if err != nil {
				return err
			}
			defer replayer.Close()

			ctx, stop := interruptContext(cmd.Context())
			defer stop()

			enc := json.NewEncoder(os.Stdout)
			return replayer.Replay(ctx, func(event statefeed.Event) {
				if err := enc.Encode(event); err != nil {
					fmt.Fprintf(os.Stderr, "error: %v\n", err)
				}
			})
		},
	}
}
