package main

import (
	"context"
	"time"

	"github.com/mcdev12/birthdaycake/go/internal/cake/app"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newLocalCmd() *cobra.Command {
	var (
		wind   string
		period time.Duration
	)

	cmd := &cobra.Command{
		Use:   "local",
		Short: "Run server and client engines in one process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := windSource(wind, period)
			if err != nil {
				return err
			}
			return runLocal(cmd.Context(), source)
		},
	}

	cmd.Flags().StringVar(&wind, "wind", "oscillating", "wind source: constant or oscillating")
	cmd.Flags().DurationVar(&period, "period", 4*time.Second, "oscillating wind period")
	return cmd
}

func runLocal(ctx context.Context, wind app.WindSource) error {
	serverOpts, err := cfg.ServerEngineOptions()
	if err != nil {
		return err
	}
	clientOpts, err := cfg.ClientEngineOptions()
	if err != nil {
		return err
	}

	local, err := app.NewLocalApp(app.LocalOptions{
		Server:   serverOpts,
		Client:   clientOpts,
		Wind:     wind,
		Renderer: app.NewLogRenderer(log.Logger),
	})
	if err != nil {
		return err
	}

	ctx, stop := interruptContext(ctx)
	defer stop()

	local.Start()
	<-ctx.Done()
	local.Stop()
	return nil
}
