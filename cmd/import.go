package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jaki95/slsk-fetcher/internal/library"
	"github.com/jaki95/slsk-fetcher/internal/tracklist"
)

func init() {
	cmdRoot.AddCommand(cmdImport())
}

func cmdImport() *cobra.Command {
	return &cobra.Command{
		Use:   "import <source>",
		Short: "Add the tracks of a CSV file, 1001tracklists page or tracklist search to the library",
		Example: `  slsk-fetcher import tracks.csv
  slsk-fetcher import https://www.1001tracklists.com/tracklist/2tlrkszk/bicep-printworks.html
  slsk-fetcher import "Bicep Printworks 2023"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			var searcher tracklist.WebSearcher
			if cfg.Tracklists.SearchEnabled() {
				google, err := tracklist.NewGoogleClient(cmd.Context(), cfg.Tracklists.GoogleAPIKey, cfg.Tracklists.GoogleSearchID)
				if err != nil {
					return err
				}
				searcher = google
			}

			importer, err := tracklist.NewImporter(args[0], searcher)
			if err != nil {
				return err
			}

			tracks, err := importer.Import(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("%s import failed: %w", importer.Name(), err)
			}

			store, err := library.Open(cfg.Library.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Add(cmd.Context(), tracks); err != nil {
				return err
			}

			color.Green("Imported %d tracks from %s", len(tracks), importer.Name())
			return nil
		},
	}
}
