// Package service assembles the download pipeline from configuration.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jaki95/slsk-fetcher/config"
	"github.com/jaki95/slsk-fetcher/internal/coordinator"
	"github.com/jaki95/slsk-fetcher/internal/domain"
	"github.com/jaki95/slsk-fetcher/internal/downloader"
	"github.com/jaki95/slsk-fetcher/internal/job"
	"github.com/jaki95/slsk-fetcher/internal/matcher"
	"github.com/jaki95/slsk-fetcher/internal/metrics"
	"github.com/jaki95/slsk-fetcher/internal/progress"
	"github.com/jaki95/slsk-fetcher/internal/retry"
	"github.com/jaki95/slsk-fetcher/internal/search"
	"github.com/jaki95/slsk-fetcher/internal/slskd"
	"github.com/jaki95/slsk-fetcher/internal/storage"
)

type Option func(*Pipeline)

// WithMetrics feeds every run's progress events into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithStorage overrides the library backend built from the config.
func WithStorage(s storage.Storage) Option {
	return func(p *Pipeline) {
		p.library = s
	}
}

// Pipeline holds the long-lived collaborators shared by every run: the slskd
// client and the library backend.
type Pipeline struct {
	cfg     *config.Config
	client  *slskd.Client
	library storage.Storage
	metrics *metrics.Metrics
}

// RunOptions tune a single run. Zero values fall back to the config.
type RunOptions struct {
	Workers int
	Breadth int
	// Tracker receives the run's progress events. A fresh one is used when nil.
	Tracker *progress.ProgressTracker
}

// Outcome is the drained results table of a run.
type Outcome struct {
	Records []job.Record
	Summary job.Summary
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Pipeline, error) {
	client, err := slskd.New(cfg.Slskd.Host, cfg.Slskd.APIKey, slskd.WithRateLimit(cfg.Slskd.RequestsPerSecond))
	if err != nil {
		return nil, err
	}

	p := &Pipeline{cfg: cfg, client: client}
	for _, opt := range opts {
		opt(p)
	}

	if p.library == nil {
		p.library, err = NewStorage(ctx, cfg.Storage)
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

// NewStorage builds the library backend named by cfg.Type.
func NewStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Type {
	case "", "local":
		return storage.NewLocalFileStorage(cfg.OutputDir)
	case "gcs":
		return storage.NewGCSStorage(ctx, cfg.Bucket, cfg.ObjectPrefix, cfg.CredentialsFile)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func (p *Pipeline) Client() *slskd.Client {
	return p.client
}

// Check verifies slskd answers with the configured API key.
func (p *Pipeline) Check(ctx context.Context) error {
	if err := p.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w at %s: %w", ErrSlskdUnreachable, p.cfg.Slskd.Host, err)
	}
	return nil
}

// Clean clears finished transfers and searches left over from earlier runs.
func (p *Pipeline) Clean(ctx context.Context) error {
	return p.client.Clean(ctx)
}

// Run fetches tracks with a fresh worker pool and returns once every track has
// a terminal status. Paths of successfully placed tracks are set on the
// requests themselves.
func (p *Pipeline) Run(ctx context.Context, tracks []*domain.TrackRequest, opts RunOptions) (Outcome, error) {
	if len(tracks) == 0 {
		return Outcome{}, ErrNoTracks
	}

	d := p.cfg.Download
	workers := opts.Workers
	if workers <= 0 {
		workers = d.Workers
	}
	breadth := opts.Breadth
	if breadth <= 0 {
		breadth = d.Breadth
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = progress.NewProgressTracker()
	}
	if p.metrics != nil {
		observe := p.metrics.Listener()
		tracker.AddListener(observe)
		defer tracker.RemoveListener(observe)
	}

	policy := retry.Policy{Attempts: d.SubmitAttempts, Delay: d.SubmitDelay}
	searcher := search.New(p.client, matcher.New(d.DisallowedExtensions), searchOptions(d, policy))
	dl := downloader.New(p.client, p.library, downloader.Options{
		StagingDir:   d.StagingDir,
		Timeout:      d.Timeout,
		PollInterval: d.PollInterval,
		Enqueue:      policy,
	})

	coord := coordinator.New(searcher, dl,
		coordinator.WithBreadth(breadth),
		coordinator.WithPopTimeout(d.PopTimeout),
		coordinator.WithProgressTracker(tracker),
	)

	slog.Info("Starting run", "tracks", len(tracks), "workers", workers, "breadth", breadth)
	if err := coord.Start(ctx, workers); err != nil {
		return Outcome{}, err
	}
	enqueueErr := coord.Enqueue(tracks...)
	if err := coord.DrainAndStop(); err != nil {
		return Outcome{}, err
	}
	if enqueueErr != nil {
		return Outcome{}, fmt.Errorf("failed to enqueue tracks: %w", enqueueErr)
	}

	return Outcome{
		Records: coord.Results().Records(),
		Summary: coord.Results().Summary(),
	}, nil
}

// searchOptions maps the download config onto the searcher. A negative search
// timeout turns the poll bound off.
func searchOptions(d config.DownloadConfig, submit retry.Policy) search.Options {
	return search.Options{
		PollInterval: d.SearchPollInterval,
		Timeout:      max(d.SearchTimeout, 0),
		Submit:       submit,
	}
}

func (p *Pipeline) Close() error {
	return p.library.Close()
}
