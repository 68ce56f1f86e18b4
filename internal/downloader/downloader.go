// Package downloader fetches one ranked match through slskd and moves the
// result into the library.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jaki95/slsk-fetcher/internal/domain"
	"github.com/jaki95/slsk-fetcher/internal/retry"
	"github.com/jaki95/slsk-fetcher/internal/slskd"
)

const (
	defaultDownloadTimeout = 5 * time.Minute
	defaultPollInterval    = time.Second
)

type Options struct {
	// StagingDir is where slskd writes finished downloads.
	StagingDir   string
	Timeout      time.Duration
	PollInterval time.Duration
	Enqueue      retry.Policy
}

type Downloader struct {
	client  TransferClient
	library Library
	opts    Options
}

func New(client TransferClient, library Library, opts Options) *Downloader {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultDownloadTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Downloader{client: client, library: library, opts: opts}
}

// Attempt downloads match for track and returns the library location of the
// file. It never retries a failed transfer.
func (d *Downloader) Attempt(ctx context.Context, match domain.RankedMatch, track *domain.TrackRequest) (string, error) {
	c := match.Candidate
	slog.Info("Starting download",
		"track", track.ID,
		"peer", c.Peer,
		"file", c.Filename,
		"size", humanize.Bytes(uint64(max(c.Size, 0))),
		"bitrate", match.BitRate)

	err := retry.Do(ctx, d.opts.Enqueue, "enqueue download", func(ctx context.Context) error {
		return d.client.EnqueueDownload(ctx, c.Peer, slskd.DownloadRequest{Filename: c.Filename, Size: c.Size})
	})
	if err != nil {
		return "", err
	}

	start := time.Now()
	if err := d.waitForTransfer(ctx, c); err != nil {
		return "", err
	}
	slog.Info("Download complete", "track", track.ID, "peer", c.Peer, "took", time.Since(start).Round(time.Millisecond))

	return d.place(ctx, c, track)
}

func (d *Downloader) waitForTransfer(ctx context.Context, c domain.SearchCandidate) error {
	pollCtx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			slog.Warn("Download timeout reached", "peer", c.Peer, "file", c.Filename, "timeout", d.opts.Timeout)
			return fmt.Errorf("%w: %s from %s after %v", ErrDownloadTimeout, c.BaseName(), c.Peer, d.opts.Timeout)
		case <-ticker.C:
		}

		transfers, err := d.client.ListDownloads(pollCtx, c.Peer)
		if err != nil {
			if !errors.Is(err, slskd.ErrNotFound) && pollCtx.Err() == nil {
				slog.Warn("Failed to poll transfers", "peer", c.Peer, "error", err)
			}
			continue
		}

		transfer, ok := transfers.Find(c.Filename)
		if !ok {
			continue
		}

		switch {
		case transfer.State == slskd.TransferSucceeded:
			return nil
		case strings.HasPrefix(transfer.State, "Completed"):
			return fmt.Errorf("%w: %s from %s: %s", ErrDownloadFailed, c.BaseName(), c.Peer, transfer.State)
		default:
			slog.Debug("Transfer in progress", "peer", c.Peer, "file", c.BaseName(), "state", transfer.State, "percent", transfer.PercentComplete)
		}
	}
}

func (d *Downloader) place(ctx context.Context, c domain.SearchCandidate, track *domain.TrackRequest) (string, error) {
	staged, err := resolveStaged(d.opts.StagingDir, c)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPlacementFailed, err)
	}

	name := track.FileName(c.Ext())
	exists, err := d.library.Exists(ctx, name)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPlacementFailed, err)
	}

	var dst string
	if exists {
		slog.Info("File already in library, discarding duplicate", "track", track.ID, "path", d.library.Path(name))
		if err := os.Remove(staged); err != nil {
			return "", fmt.Errorf("%w: failed to remove duplicate: %w", ErrPlacementFailed, err)
		}
		dst = d.library.Path(name)
	} else {
		dst, err = d.library.Place(ctx, staged, name)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrPlacementFailed, err)
		}
	}

	if err := removeStagingDir(d.opts.StagingDir, staged); err != nil {
		return "", fmt.Errorf("%w: %w", ErrPlacementFailed, err)
	}

	slog.Info("File placed", "track", track.ID, "path", dst)
	return dst, nil
}
