package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mcdev12/birthdaycake/go/internal/cake/app"
	"github.com/mcdev12/birthdaycake/go/internal/cake/statefeed"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the authoritative simulation behind the websocket gateway",
		Long: `Run the authoritative simulation behind the websocket gateway.

SIGHUP relights every candle; SIGINT or SIGTERM stops the server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}
}

func runServer(ctx context.Context) error {
	engineOpts, err := cfg.ServerEngineOptions()
	if err != nil {
		return err
	}

	opts := app.ServerOptions{
		Gateway: gatewayConfig(cfg),
		Engine:  engineOpts,
	}

	if feedCfg, ok := stateFeedConfig(cfg); ok {
		feed, err := statefeed.NewPublisher(ctx, feedCfg)
		if err != nil {
			return err
		}
		opts.Feed = feed
	}

	server, err := newServerApp(opts)
	if err != nil {
		return err
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	ctx, stop := interruptContext(ctx)
	defer stop()

	go func() {
		for {
			select {
			case <-hup:
				log.Info().Msg("SIGHUP received, resetting candles")
				server.Reset()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info().
		Str("addr", opts.Gateway.Addr()).
		Uint32("candles", engineOpts.CandleCount).
		Dur("tick", engineOpts.TickInterval).
		Bool("state_feed", opts.Feed != nil).
		Msg("starting cake server")

	return server.Run(ctx)
}

// newServerApp builds the app and releases the state feed if that fails.
func newServerApp(opts app.ServerOptions) (*app.ServerApp, error) {
	server, err := app.NewServerApp(opts)
	if err != nil {
		if opts.Feed != nil {
			if closeErr := opts.Feed.Close(); closeErr != nil {
				log.Error().Err(closeErr).Msg("failed to close state feed")
			}
		}
		return nil, err
	}
	return server, nil
}
