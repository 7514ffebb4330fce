package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/flashsol"
	"github.com/aretw0/flashsol/internal/config"
	"github.com/aretw0/flashsol/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flashsol",
	Short: "FlashSol is a custodial Solana swap service",
	Long: `FlashSol executes token buys and sells on Solana for chat users.
Wallet secrets are sealed at rest and unlocked by a passkey for a bounded session.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides configuration")
}

// loadApp reads the configuration named by the command flags and
// assembles the service.
func loadApp(cmd *cobra.Command, opts ...flashsol.Option) (*flashsol.App, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	app, err := flashsol.New(cfg, append([]flashsol.Option{flashsol.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize flashsol: %w", err)
	}
	return app, logger, nil
}
