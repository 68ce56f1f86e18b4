package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jaki95/slsk-fetcher/config"
)

var (
	configPath string
	cmdRoot    = &cobra.Command{
		Use:           "slsk-fetcher",
		Short:         "Fetch missing library tracks from Soulseek through slskd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	cmdRoot.PersistentFlags().StringVar(&configPath, "config", "./config/config.yaml", "path to the configuration file")
}

// loadConfig reads the configuration and installs the CLI log handler.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}))
	slog.SetDefault(logger)
	return cfg, nil
}

func main() {
	if err := cmdRoot.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
