package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mcdev12/birthdaycake/go/internal/cake/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newClientCmd() *cobra.Command {
	var (
		url    string
		wind   string
		period time.Duration
	)

	cmd := &cobra.Command{
		Use:   "client",
		Short: "Join a cake server as a headless participant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				url = cfg.Client.URL
			}
			source, err := windSource(wind, period)
			if err != nil {
				return err
			}
			return runClient(cmd.Context(), url, source)
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "gateway websocket URL (default CLIENT_URL)")
	cmd.Flags().StringVar(&wind, "wind", "oscillating", "wind source: constant or oscillating")
	cmd.Flags().DurationVar(&period, "period", 4*time.Second, "oscillating wind period")
	return cmd
}

func windSource(kind string, period time.Duration) (app.WindSource, error) {
	peak := float32(cfg.Client.WindForce)
	switch kind {
	case "constant":
		return app.ConstantWind(peak), nil
	case "oscillating":
		return app.NewOscillatingWind(peak, period, nil), nil
	default:
		return nil, fmt.Errorf("unknown wind source %q", kind)
	}
}

func runClient(ctx context.Context, url string, wind app.WindSource) error {
	engineOpts, err := cfg.ClientEngineOptions()
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(ctx)
	defer stop()

	client, err := app.DialClientApp(ctx, app.ClientOptions{
		URL:      url,
		Engine:   engineOpts,
		Wind:     wind,
		Renderer: app.NewLogRenderer(log.Logger),
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return client.Stop()
	case <-client.Done():
		client.Stop()
		return fmt.Errorf("connection to %s closed", url)
	}
}
