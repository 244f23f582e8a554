package main

import (
	"fmt"
	"os"

	"github.com/mcdev12/birthdaycake/go/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "cake",
	Short: "Shared birthday cake candle blow-out",
	Long: `Any number of connected clients jointly blow out the candles on a shared
birthday cake. "cake server" runs the authoritative simulation, "cake client"
joins one, and "cake local" runs both ends in a single process.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel = logLevel
		}
		cfg = loaded
		setupLogging(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $"+config.ConfigFileEnv+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (trace, debug, info, warn, error)")

	rootCmd.AddCommand(
		newServerCmd(),
		newClientCmd(),
		newLocalCmd(),
		newResetCmd(),
		newStateCmd(),
		newStatsCmd(),
		newReplayCmd(),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
