// Package search runs network searches for a track and ranks what comes back.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaki95/slsk-fetcher/internal/domain"
	"github.com/jaki95/slsk-fetcher/internal/retry"
	"github.com/jaki95/slsk-fetcher/internal/slskd"
)

// Client is the part of the slskd API the searcher needs.
type Client interface {
	SubmitSearch(ctx context.Context, text string) (string, error)
	IsSearchComplete(ctx context.Context, id string) (bool, error)
	FetchResults(ctx context.Context, id string) ([]slskd.SearchResponse, error)
	CancelSearch(ctx context.Context, id string) error
}

// Ranker orders raw candidates for a track.
type Ranker interface {
	Rank(candidates []domain.SearchCandidate, track *domain.TrackRequest) []domain.RankedMatch
}

type Options struct {
	PollInterval time.Duration
	// Timeout bounds how long a single search is polled. Zero disables it.
	Timeout time.Duration
	Submit  retry.Policy
}

// DefaultOptions mirror the configuration defaults.
func DefaultOptions() Options {
	return Options{
		PollInterval: time.Second,
		Timeout:      time.Minute,
		Submit:       retry.Policy{Attempts: 3, Delay: 2 * time.Second},
	}
}

// Result is the outcome of searching for one track.
type Result struct {
	Matches []domain.RankedMatch
	// RawCount is the number of candidates returned before ranking.
	RawCount    int
	Query       string
	AttemptedAt time.Time
}

type Searcher struct {
	client Client
	ranker Ranker
	opts   Options
}

func New(client Client, ranker Ranker, opts Options) *Searcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Searcher{client: client, ranker: ranker, opts: opts}
}

// Search tries each query in turn and ranks the results of the first one that
// returns anything.
func (s *Searcher) Search(ctx context.Context, track *domain.TrackRequest) (Result, error) {
	result := Result{AttemptedAt: time.Now()}

	for _, query := range Queries(track) {
		candidates, err := s.run(ctx, query)
		if err != nil {
			slog.Error("Search failed", "track", track.ID, "query", query, "error", err)
			return result, err
		}
		slog.Debug("Search finished", "track", track.ID, "query", query, "results", len(candidates))

		if len(candidates) == 0 {
			continue
		}

		result.Query = query
		result.RawCount = len(candidates)
		result.Matches = s.ranker.Rank(candidates, track)
		return result, nil
	}

	return result, nil
}

func (s *Searcher) run(ctx context.Context, query string) ([]domain.SearchCandidate, error) {
	var id string
	err := retry.Do(ctx, s.opts.Submit, "submit search", func(ctx context.Context) error {
		var err error
		id, err = s.client.SubmitSearch(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	if err := s.waitForCompletion(ctx, id); err != nil {
		return nil, err
	}

	responses, err := s.client.FetchResults(ctx, id)
	if err != nil {
		return nil, err
	}
	return flatten(responses), nil
}

func (s *Searcher) waitForCompletion(ctx context.Context, id string) error {
	var deadline <-chan time.Time
	if s.opts.Timeout > 0 {
		timer := time.NewTimer(s.opts.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		complete, err := s.client.IsSearchComplete(ctx, id)
		switch {
		case err == nil && complete:
			return nil
		case err != nil && errors.Is(err, context.Canceled):
			return err
		case err != nil:
			slog.Warn("Failed to poll search state", "search", id, "error", err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("search %s: %w", id, ctx.Err())
		case <-deadline:
			slog.Warn("Search timed out, using partial responses", "search", id, "timeout", s.opts.Timeout)
			if err := s.client.CancelSearch(ctx, id); err != nil {
				slog.Debug("Failed to stop search", "search", id, "error", err)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// flatten turns per-peer responses into candidates, keeping discovery order.
func flatten(responses []slskd.SearchResponse) []domain.SearchCandidate {
	var out []domain.SearchCandidate
	for _, r := range responses {
		for _, f := range r.Files {
			out = append(out, domain.SearchCandidate{
				Peer:      r.Username,
				Filename:  f.Filename,
				Size:      f.Size,
				Length:    f.Length,
				BitRate:   f.BitRate,
				BitDepth:  f.BitDepth,
				Extension: f.Extension,
				Locked:    f.IsLocked,
			})
		}
		for _, f := range r.LockedFiles {
			out = append(out, domain.SearchCandidate{
				Peer:      r.Username,
				Filename:  f.Filename,
				Size:      f.Size,
				Length:    f.Length,
				BitRate:   f.BitRate,
				BitDepth:  f.BitDepth,
				Extension: f.Extension,
				Locked:    true,
			})
		}
	}
	return out
}
