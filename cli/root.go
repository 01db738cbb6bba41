package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"twister-backend/internal/app"
	"twister-backend/internal/config"
	"twister-backend/internal/handlers"
)

// GlobalFlags flags shared by every subcommand
type GlobalFlags struct {
	ConfigPath string
	Network    string
	Verbose    bool
}

var globalFlags GlobalFlags

var rootCmd = &cobra.Command{
	Use:   "twister",
	Short: "Twister shielded partial-withdrawal client",
	Long: "Twister keeps a local copy of the Twister contract's commitment list, rebuilds the\n" +
		"accumulator, prepares prover inputs and submits deposits and partial withdrawals.\n" +
		"Run `twister serve` for the HTTP API or use the subcommands directly.",
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&globalFlags.ConfigPath, "config", "c", "", "config file (default config.yaml, or config.local.yaml when present)")
	rootCmd.PersistentFlags().StringVarP(&globalFlags.Network, "network", "n", "", "network name (default blockchain.default_network)")
	rootCmd.PersistentFlags().BoolVarP(&globalFlags.Verbose, "verbose", "v", false, "debug logging")
}

// loadConfig reads the config file once and applies the logging settings.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	if err := config.LoadConfig(globalFlags.ConfigPath); err != nil {
		return nil, nil, err
	}
	cfg := config.AppConfig
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	handlers.SetJWTSecret(cfg.Auth.JWTSecret)
	return cfg, logger, nil
}

func newLogger(cfg config.LogConfig) (*logrus.Logger, error) {
	logger := logrus.StandardLogger()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	if globalFlags.Verbose {
		level = logrus.DebugLevel
	}
	logger.SetLevel(level)
	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// openContainer loads config and wires every service for the selected network.
func openContainer(ctx context.Context) (*app.ServiceContainer, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.NewServiceContainer(ctx, cfg, globalFlags.Network, logger)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
