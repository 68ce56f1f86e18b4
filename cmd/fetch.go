package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/k0kubun/go-ansi"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/jaki95/slsk-fetcher/internal/job"
	"github.com/jaki95/slsk-fetcher/internal/library"
	"github.com/jaki95/slsk-fetcher/internal/progress"
	"github.com/jaki95/slsk-fetcher/internal/service"
)

func init() {
	cmdRoot.AddCommand(cmdFetch())
}

func cmdFetch() *cobra.Command {
	var (
		workers int
		breadth int
		noClean bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Search and download every library track without a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, err := library.Open(cfg.Library.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			tracks, err := store.Missing(ctx)
			if err != nil {
				return fmt.Errorf("failed to read the work list: %w", err)
			}
			if len(tracks) == 0 {
				color.Green("Nothing to fetch, every track has a file.")
				return nil
			}

			pipeline, err := service.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer pipeline.Close()

			if err := pipeline.Check(ctx); err != nil {
				return err
			}
			if !noClean {
				if err := pipeline.Clean(ctx); err != nil {
					slog.Warn("Failed to clean slskd state", "error", err)
				}
			}

			tracker := progress.NewProgressTracker()
			bar := newProgressBar(len(tracks))
			tracker.AddListener(func(e progress.Event) {
				if e.Terminal {
					bar.Describe(fmt.Sprintf("[cyan]%s[reset] %s", e.Stage, e.Track))
					_ = bar.Add(1)
				}
			})

			started := time.Now()
			outcome, err := pipeline.Run(ctx, tracks, service.RunOptions{
				Workers: workers,
				Breadth: breadth,
				Tracker: tracker,
			})
			_ = bar.Finish()
			fmt.Println()
			if err != nil {
				return err
			}

			// persist even when interrupted so finished tracks are not fetched again
			updated, err := store.Persist(context.Background(), tracks)
			if err != nil {
				return fmt.Errorf("failed to persist library paths: %w", err)
			}

			printSummary(outcome, updated, started)
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of concurrent workers (defaults to download.workers)")
	cmd.Flags().IntVarP(&breadth, "breadth", "b", 0, "ranked matches to try per track (defaults to download.breadth)")
	cmd.Flags().BoolVar(&noClean, "no-clean", false, "keep completed transfers and searches in slskd")
	return cmd
}

func newProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(
		total,
		progressbar.OptionSetWriter(ansi.NewAnsiStdout()),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionFullWidth(),
		progressbar.OptionShowCount(),
		progressbar.OptionSetDescription("[cyan]fetching[reset] tracks..."),
	)
}

func printSummary(outcome service.Outcome, persisted int64, started time.Time) {
	s := outcome.Summary
	took := strings.TrimSpace(humanize.RelTime(started, time.Now(), "", ""))

	bold := color.New(color.Bold)
	bold.Printf("Fetched %s of %s tracks in %s\n", humanize.Comma(int64(s.Counts[job.StatusSuccess])), humanize.Comma(int64(s.Total)), took)

	for _, status := range job.TerminalStatuses {
		n := s.Counts[status]
		if n == 0 {
			continue
		}
		c := color.New(color.FgRed)
		switch status {
		case job.StatusSuccess:
			c = color.New(color.FgGreen)
		case job.StatusNoResults, job.StatusNoMatches:
			c = color.New(color.FgYellow)
		}
		c.Printf("  %-17s %d\n", status, n)
	}
	if s.Unfinished > 0 {
		color.Red("  %-17s %d", "unfinished", s.Unfinished)
	}

	fmt.Printf("Success ratio %.1f%%, %d library entries updated\n", s.SuccessRatio*100, persisted)

	for _, r := range outcome.Records {
		if r.Status != job.StatusSuccess && r.Detail != "" {
			color.New(color.Faint).Printf("  %s: %s (%s)\n", r.Display, r.Status, r.Detail)
		}
	}
}
