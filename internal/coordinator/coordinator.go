// Package coordinator runs the download pipeline: a fixed pool of workers
// drains a shared queue of tracks, taking each one through search, download
// and placement, and records the outcome in a shared results table.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jaki95/slsk-fetcher/internal/domain"
	"github.com/jaki95/slsk-fetcher/internal/downloader"
	"github.com/jaki95/slsk-fetcher/internal/job"
	"github.com/jaki95/slsk-fetcher/internal/progress"
	"github.com/jaki95/slsk-fetcher/internal/search"
)

const (
	defaultBreadth    = 1
	defaultPopTimeout = time.Second
)

// Searcher finds ranked matches for a track.
type Searcher interface {
	Search(ctx context.Context, track *domain.TrackRequest) (search.Result, error)
}

// Downloader fetches one match and returns where the file was placed.
type Downloader interface {
	Attempt(ctx context.Context, match domain.RankedMatch, track *domain.TrackRequest) (string, error)
}

type Option func(*Coordinator)

// WithBreadth sets how many ranked matches are tried per track.
func WithBreadth(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.breadth = n
		}
	}
}

// WithPopTimeout bounds how long an idle worker waits before re-checking the
// stop signal.
func WithPopTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.popTimeout = d
		}
	}
}

func WithProgressTracker(t *progress.ProgressTracker) Option {
	return func(c *Coordinator) {
		if t != nil {
			c.tracker = t
		}
	}
}

type Coordinator struct {
	searcher   Searcher
	downloader Downloader
	breadth    int
	popTimeout time.Duration
	tracker    *progress.ProgressTracker
	results    *job.Table

	mu      sync.Mutex
	queue   *queue
	running bool
	runCtx  context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group

	stopped atomic.Bool
	active  atomic.Int32
}

func New(searcher Searcher, dl Downloader, opts ...Option) *Coordinator {
	c := &Coordinator{
		searcher:   searcher,
		downloader: dl,
		breadth:    defaultBreadth,
		popTimeout: defaultPopTimeout,
		tracker:    progress.NewProgressTracker(),
		results:    job.NewTable(),
		queue:      newQueue(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Results returns the shared results table. It is complete once DrainAndStop
// has returned.
func (c *Coordinator) Results() *job.Table {
	return c.results
}

func (c *Coordinator) Tracker() *progress.ProgressTracker {
	return c.tracker
}

// ActiveWorkers is the number of worker goroutines currently alive.
func (c *Coordinator) ActiveWorkers() int {
	return int(c.active.Load())
}

// Enqueue adds tracks to the work queue. Each track id may be enqueued once.
func (c *Coordinator) Enqueue(tracks ...*domain.TrackRequest) error {
	if c.stopped.Load() {
		return ErrStopped
	}

	seen := make(map[string]bool, len(tracks))
	for _, t := range tracks {
		if t == nil {
			return fmt.Errorf("%w: nil track", ErrInvalidTrack)
		}
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTrack, err)
		}
		if _, exists := c.results.Get(t.ID); exists || seen[t.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateTrack, t.ID)
		}
		seen[t.ID] = true
	}

	c.mu.Lock()
	q := c.queue
	c.mu.Unlock()

	// no worker can hold the tracks yet, so these precede any worker event
	for _, t := range tracks {
		c.tracker.Publish(progress.Event{Stage: progress.Stage(job.StatusQueued), TrackID: t.ID, Track: t.DisplayName(), Message: "Queued"})
	}

	// runs under the queue lock so the record exists before any worker can
	// pick the track up; listeners are never called from here
	record := func() {
		c.tracker.AddTotal(len(tracks))
		for _, t := range tracks {
			c.results.Store(job.Record{TrackID: t.ID, Display: t.DisplayName(), Track: t, Status: job.StatusQueued})
		}
	}
	if err := q.push(record, tracks...); err != nil {
		return ErrStopped
	}

	slog.Debug("Enqueued tracks", "count", len(tracks))
	return nil
}

// Start spawns n workers. n is normalised with job.ValidateWorkers.
func (c *Coordinator) Start(ctx context.Context, n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return ErrRunning
	}

	workers := job.ValidateWorkers(n)
	if workers != n {
		slog.Warn("invalid worker count, adjusted", "requested", n, "workers", workers)
	}

	if c.queue.isClosed() {
		c.queue = newQueue()
	}
	q := c.queue
	c.stopped.Store(false)

	c.runCtx, c.cancel = context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(c.runCtx)
	for i := 0; i < workers; i++ {
		id := i
		g.Go(func() error {
			c.worker(gctx, id, q)
			return nil
		})
	}
	c.group = g
	c.running = true

	slog.Info("Started download workers", "workers", workers, "breadth", c.breadth)
	return nil
}

// DrainAndStop waits until every enqueued track has a terminal status, then
// stops the workers and waits for them to exit. If the context given to Start
// is cancelled first, tracks still queued are recorded as errors.
func (c *Coordinator) DrainAndStop() error {
	c.mu.Lock()
	q := c.queue
	if !c.running {
		c.stopped.Store(true)
		q.close()
		c.mu.Unlock()
		c.abandon(q, ErrStopped)
		return nil
	}
	runCtx, cancel, group := c.runCtx, c.cancel, c.group
	c.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		q.join()
		close(drained)
	}()

	select {
	case <-drained:
	case <-runCtx.Done():
		slog.Warn("Run cancelled before the queue drained", "error", runCtx.Err())
	}

	c.stopped.Store(true)
	q.close()
	err := group.Wait()
	cancel()

	// only non-empty after cancellation
	c.abandon(q, context.Canceled)
	<-drained

	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	s := c.results.Summary()
	slog.Info("Download pipeline drained",
		"total", s.Total,
		"success", s.Counts[job.StatusSuccess],
		"success_ratio", fmt.Sprintf("%.2f", s.SuccessRatio))
	return err
}

func (c *Coordinator) abandon(q *queue, cause error) {
	for _, t := range q.takeAll() {
		rec, _ := c.results.Get(t.ID)
		rec.Status = job.StatusError
		rec.Detail = cause.Error()
		c.finish(rec)
		q.done()
	}
}

func (c *Coordinator) worker(ctx context.Context, id int, q *queue) {
	c.active.Add(1)
	defer c.active.Add(-1)

	slog.Debug("Worker started", "worker", id)
	for {
		if c.stopped.Load() || ctx.Err() != nil {
			slog.Debug("Worker stopping", "worker", id)
			return
		}

		track, err := q.pop(c.popTimeout)
		if errors.Is(err, errQueueEmpty) {
			continue
		}
		if errors.Is(err, errQueueClosed) {
			slog.Debug("Queue closed, worker exiting", "worker", id)
			return
		}

		c.process(ctx, q, track)
	}
}

// process takes one track through the pipeline and always records a terminal
// status for it.
func (c *Coordinator) process(ctx context.Context, q *queue, track *domain.TrackRequest) {
	defer q.done()

	rec := job.Record{
		TrackID:   track.ID,
		Display:   track.DisplayName(),
		Track:     track,
		Status:    job.StatusStarted,
		StartedAt: time.Now(),
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while processing track", "track", track.ID, "panic", r, "stack", string(debug.Stack()))
			rec.Status = job.StatusError
			rec.Detail = fmt.Sprintf("panic: %v", r)
			c.finish(rec)
		}
	}()

	c.update(rec, "Started")

	rec.Status = job.StatusSearching
	c.update(rec, "Searching")

	res, err := c.searcher.Search(ctx, track)
	searchedAt := time.Now()
	rec.SearchedAt = &searchedAt
	rec.ResultsFound = res.RawCount
	rec.MatchesFound = len(res.Matches)
	rec.Query = res.Query

	switch {
	case err != nil:
		slog.Error("Search failed", "track", track.ID, "error", err)
		rec.Status = job.StatusError
		rec.Detail = err.Error()
		c.finish(rec)
		return
	case res.RawCount == 0:
		rec.Status = job.StatusNoResults
		c.finish(rec)
		return
	case len(res.Matches) == 0:
		rec.Status = job.StatusNoMatches
		rec.Detail = fmt.Sprintf("%d results, none acceptable", res.RawCount)
		c.finish(rec)
		return
	}

	rec.Status = job.StatusDownloading
	candidates := res.Matches[:min(c.breadth, len(res.Matches))]

	var lastErr error
	for i, match := range candidates {
		rec.Peer = match.Peer()
		rec.Filename = match.Candidate.Filename
		c.update(rec, fmt.Sprintf("Downloading candidate %d/%d", i+1, len(candidates)))

		path, err := c.downloader.Attempt(ctx, match, track)
		if err == nil {
			downloadedAt := time.Now()
			track.Path = path
			rec.DownloadedAt = &downloadedAt
			rec.Path = path
			rec.Status = job.StatusSuccess
			rec.Detail = ""
			c.finish(rec)
			return
		}

		lastErr = err
		if errors.Is(err, downloader.ErrPlacementFailed) {
			rec.Status = job.StatusPlacementFailed
			rec.Detail = err.Error()
			c.finish(rec)
			return
		}
		if ctx.Err() != nil {
			rec.Status = job.StatusError
			rec.Detail = err.Error()
			c.finish(rec)
			return
		}
		slog.Warn("Candidate failed", "track", track.ID, "peer", match.Peer(), "attempt", i+1, "error", err)
	}

	rec.Status = job.StatusDownloadFailed
	rec.Detail = lastErr.Error()
	c.finish(rec)
}

func (c *Coordinator) update(rec job.Record, msg string) {
	c.results.Store(rec)
	c.tracker.Publish(progress.Event{
		Stage:   progress.Stage(rec.Status),
		TrackID: rec.TrackID,
		Track:   rec.Display,
		Message: msg,
	})
}

func (c *Coordinator) finish(rec job.Record) {
	finishedAt := time.Now()
	rec.FinishedAt = &finishedAt
	c.results.Store(rec)

	attrs := []any{"track", rec.TrackID, "status", rec.Status, "took", rec.Duration().Round(time.Millisecond)}
	if rec.Detail != "" {
		attrs = append(attrs, "detail", rec.Detail)
	}
	if rec.Status == job.StatusSuccess {
		slog.Info("Track finished", append(attrs, "path", rec.Path)...)
	} else {
		slog.Info("Track finished", attrs...)
	}

	c.tracker.Publish(progress.Event{
		Stage:    progress.Stage(rec.Status),
		TrackID:  rec.TrackID,
		Track:    rec.Display,
		Message:  string(rec.Status),
		Detail:   rec.Detail,
		Terminal: true,
		Duration: rec.Duration(),
	})
}
