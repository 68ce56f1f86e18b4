package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jaki95/slsk-fetcher/internal/slskd"
)

func init() {
	cmdRoot.AddCommand(cmdClean())
}

func cmdClean() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove completed transfers and searches from slskd",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			client, err := slskd.New(cfg.Slskd.Host, cfg.Slskd.APIKey, slskd.WithRateLimit(cfg.Slskd.RequestsPerSecond))
			if err != nil {
				return err
			}
			if err := client.Clean(cmd.Context()); err != nil {
				return err
			}

			color.Green("slskd transfers and searches cleaned")
			return nil
		},
	}
}
