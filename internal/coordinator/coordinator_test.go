package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/slsk-fetcher/internal/domain"
	"github.com/jaki95/slsk-fetcher/internal/downloader"
	"github.com/jaki95/slsk-fetcher/internal/job"
	"github.com/jaki95/slsk-fetcher/internal/progress"
	"github.com/jaki95/slsk-fetcher/internal/search"
)

type searchFunc func(ctx context.Context, track *domain.TrackRequest) (search.Result, error)

func (f searchFunc) Search(ctx context.Context, track *domain.TrackRequest) (search.Result, error) {
	return f(ctx, track)
}

type attemptFunc func(ctx context.Context, match domain.RankedMatch, track *domain.TrackRequest) (string, error)

func (f attemptFunc) Attempt(ctx context.Context, match domain.RankedMatch, track *domain.TrackRequest) (string, error) {
	return f(ctx, match, track)
}

func track(id string) *domain.TrackRequest {
	return &domain.TrackRequest{ID: id, MainArtist: "Artist " + id, Title: "Title " + id}
}

func matches(peers ...string) []domain.RankedMatch {
	out := make([]domain.RankedMatch, len(peers))
	for i, p := range peers {
		out[i] = domain.RankedMatch{Candidate: domain.SearchCandidate{Peer: p, Filename: p + ".flac"}, BitRate: 1000 - i}
	}
	return out
}

func found(peers ...string) search.Result {
	return search.Result{Matches: matches(peers...), RawCount: len(peers) + 1, Query: "q"}
}

func runAll(t *testing.T, c *Coordinator, workers int, tracks ...*domain.TrackRequest) {
	t.Helper()
	require.NoError(t, c.Start(context.Background(), workers))
	require.NoError(t, c.Enqueue(tracks...))
	require.NoError(t, c.DrainAndStop())
	assert.Zero(t, c.ActiveWorkers())
}

func TestOutcomes(t *testing.T) {
	searcher := searchFunc(func(ctx context.Context, tr *domain.TrackRequest) (search.Result, error) {
		switch tr.ID {
		case "no-results":
			return search.Result{}, nil
		case "no-matches":
			return search.Result{RawCount: 7, Query: "q"}, nil
		case "search-error":
			return search.Result{}, errors.New("submit search failed after 3 attempts")
		case "panic":
			panic("boom")
		default:
			return found("peer1", "peer2"), nil
		}
	})

	dl := attemptFunc(func(ctx context.Context, m domain.RankedMatch, tr *domain.TrackRequest) (string, error) {
		switch tr.ID {
		case "timeout":
			return "", fmt.Errorf("%w: after 5m", downloader.ErrDownloadTimeout)
		case "placement":
			return "", fmt.Errorf("%w: permission denied", downloader.ErrPlacementFailed)
		default:
			return "/music/" + tr.ID + ".flac", nil
		}
	})

	c := New(searcher, dl, WithPopTimeout(10*time.Millisecond))
	tracks := []*domain.TrackRequest{
		track("ok"), track("no-results"), track("no-matches"), track("search-error"),
		track("panic"), track("timeout"), track("placement"),
	}
	runAll(t, c, 3, tracks...)

	want := map[string]job.Status{
		"ok":           job.StatusSuccess,
		"no-results":   job.StatusNoResults,
		"no-matches":   job.StatusNoMatches,
		"search-error": job.StatusError,
		"panic":        job.StatusError,
		"timeout":      job.StatusDownloadFailed,
		"placement":    job.StatusPlacementFailed,
	}

	results := c.Results()
	require.Equal(t, len(want), results.Len())
	for id, status := range want {
		rec, ok := results.Get(id)
		require.True(t, ok, id)
		assert.Equal(t, status, rec.Status, id)
		assert.NotNil(t, rec.FinishedAt, id)
	}

	ok, _ := results.Get("ok")
	assert.Equal(t, "/music/ok.flac", ok.Path)
	assert.Equal(t, "/music/ok.flac", tracks[0].Path)
	assert.Equal(t, "peer1", ok.Peer)
	assert.Equal(t, 3, ok.ResultsFound)
	assert.Equal(t, 2, ok.MatchesFound)

	noMatches, _ := results.Get("no-matches")
	assert.Equal(t, 7, noMatches.ResultsFound)
	assert.Zero(t, noMatches.MatchesFound)

	panicked, _ := results.Get("panic")
	assert.Contains(t, panicked.Detail, "boom")

	timeout, _ := results.Get("timeout")
	assert.Contains(t, timeout.Detail, "download timeout")
	assert.Empty(t, tracks[5].Path)

	s := results.Summary()
	assert.Zero(t, s.Unfinished)
	assert.InDelta(t, 1.0/7.0, s.SuccessRatio, 1e-9)
}

func TestBreadthTriesFurtherCandidates(t *testing.T) {
	var mu sync.Mutex
	var tried []string

	searcher := searchFunc(func(ctx context.Context, tr *domain.TrackRequest) (search.Result, error) {
		return found("p1", "p2", "p3"), nil
	})
	dl := attemptFunc(func(ctx context.Context, m domain.RankedMatch, tr *domain.TrackRequest) (string, error) {
		mu.Lock()
		tried = append(tried, m.Peer())
		mu.Unlock()
		if m.Peer() == "p2" {
			return "/music/x.flac", nil
		}
		return "", fmt.Errorf("%w: Completed, Errored", downloader.ErrDownloadFailed)
	})

	c := New(searcher, dl, WithBreadth(3), WithPopTimeout(10*time.Millisecond))
	runAll(t, c, 1, track("1"))

	rec, _ := c.Results().Get("1")
	assert.Equal(t, job.StatusSuccess, rec.Status)
	assert.Equal(t, "p2", rec.Peer)
	assert.Equal(t, []string{"p1", "p2"}, tried)
}

func TestDefaultBreadthTriesOnlyBestCandidate(t *testing.T) {
	var mu sync.Mutex
	attempts := 0

	searcher := searchFunc(func(ctx context.Context, tr *domain.TrackRequest) (search.Result, error) {
		return found("p1", "p2"), nil
	})
	dl := attemptFunc(func(ctx context.Context, m domain.RankedMatch, tr *domain.TrackRequest) (string, error) {
		mu.Lock()
		attempts++
		mu.Unlock()
		return "", fmt.Errorf("%w: 5m", downloader.ErrDownloadTimeout)
	})

	c := New(searcher, dl, WithPopTimeout(10*time.Millisecond))
	runAll(t, c, 2, track("1"))

	rec, _ := c.Results().Get("1")
	assert.Equal(t, job.StatusDownloadFailed, rec.Status)
	assert.Equal(t, 1, attempts)
}

func TestPlacementFailureStopsFallback(t *testing.T) {
	attempts := 0
	searcher := searchFunc(func(ctx context.Context, tr *domain.TrackRequest) (search.Result, error) {
		return found("p1", "p2"), nil
	})
	dl := attemptFunc(func(ctx context.Context, m domain.RankedMatch, tr *domain.TrackRequest) (string, error) {
		attempts++
		return "", fmt.Errorf("%w: disk full", downloader.ErrPlacementFailed)
	})

	c := New(searcher, dl, WithBreadth(2), WithPopTimeout(10*time.Millisecond))
	runAll(t, c, 1, track("1"))

	rec, _ := c.Results().Get("1")
	assert.Equal(t, job.StatusPlacementFailed, rec.Status)
	assert.Equal(t, 1, attempts)
}

func TestDrainAndStopWithNoItems(t *testing.T) {
	c := New(searchFunc(nil), attemptFunc(nil), WithPopTimeout(10*time.Millisecond))
	require.NoError(t, c.Start(context.Background(), 8))

	start := time.Now()
	require.NoError(t, c.DrainAndStop())

	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, c.ActiveWorkers())
	assert.Zero(t, c.Results().Len())
}

func TestDrainAndStopWithoutStart(t *testing.T) {
	c := New(searchFunc(nil), attemptFunc(nil))
	require.NoError(t, c.Enqueue(track("1")))

	require.NoError(t, c.DrainAndStop())

	rec, ok := c.Results().Get("1")
	require.True(t, ok)
	assert.Equal(t, job.StatusError, rec.Status)
}

func TestLifecycleErrors(t *testing.T) {
	searcher := searchFunc(func(ctx context.Context, tr *domain.TrackRequest) (search.Result, error) {
		return search.Result{}, nil
	})
	c := New(searcher, attemptFunc(nil), WithPopTimeout(10*time.Millisecond))

	require.NoError(t, c.Start(context.Background(), 2))
	assert.ErrorIs(t, c.Start(context.Background(), 2), ErrRunning)

	require.NoError(t, c.Enqueue(track("1")))
	assert.ErrorIs(t, c.Enqueue(track("1")), ErrDuplicateTrack)
	assert.ErrorIs(t, c.Enqueue(track("2"), track("2")), ErrDuplicateTrack)
	assert.ErrorIs(t, c.Enqueue(&domain.TrackRequest{ID: "3"}), ErrInvalidTrack)
	assert.ErrorIs(t, c.Enqueue(nil), ErrInvalidTrack)

	require.NoError(t, c.DrainAndStop())
	assert.ErrorIs(t, c.Enqueue(track("4")), ErrStopped)

	// a stopped coordinator can be started again
	require.NoError(t, c.Start(context.Background(), 1))
	require.NoError(t, c.Enqueue(track("5")))
	require.NoError(t, c.DrainAndStop())

	rec, _ := c.Results().Get("5")
	assert.Equal(t, job.StatusNoResults, rec.Status)
}

func TestEnqueueWhileRunning(t *testing.T) {
	searcher := searchFunc(func(ctx context.Context, tr *domain.TrackRequest) (search.Result, error) {
		time.Sleep(time.Millisecond)
		return found("p"), nil
	})
	dl := attemptFunc(func(ctx context.Context, m domain.RankedMatch, tr *domain.TrackRequest) (string, error) {
		return "/music/" + tr.ID, nil
	})

	c := New(searcher, dl, WithPopTimeout(5*time.Millisecond))
	require.NoError(t, c.Start(context.Background(), 4))

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				assert.NoError(t, c.Enqueue(track(fmt.Sprintf("%d-%02d", p, i))))
			}
		}(p)
	}
	wg.Wait()
	require.NoError(t, c.DrainAndStop())

	s := c.Results().Summary()
	assert.Equal(t, 100, s.Total)
	assert.Equal(t, 100, s.Counts[job.StatusSuccess])
}

func TestCancelledContextAbandonsQueuedItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{}, 1)

	searcher := searchFunc(func(ctx context.Context, tr *domain.TrackRequest) (search.Result, error) {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return search.Result{}, ctx.Err()
	})

	c := New(searcher, attemptFunc(nil), WithPopTimeout(5*time.Millisecond))
	require.NoError(t, c.Start(ctx, 1))
	require.NoError(t, c.Enqueue(track("1"), track("2"), track("3")))

	<-started
	cancel()

	done := make(chan error)
	go func() { done <- c.DrainAndStop() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("DrainAndStop did not return after cancellation")
	}

	for _, rec := range c.Results().Records() {
		assert.Equal(t, job.StatusError, rec.Status, rec.TrackID)
	}
	assert.Equal(t, 3, c.Results().Len())
}

func TestProgressEvents(t *testing.T) {
	tracker := progress.NewProgressTracker()
	var mu sync.Mutex
	var stages []progress.Stage
	tracker.AddListener(func(e progress.Event) {
		mu.Lock()
		stages = append(stages, e.Stage)
		mu.Unlock()
	})

	searcher := searchFunc(func(ctx context.Context, tr *domain.TrackRequest) (search.Result, error) {
		return found("p"), nil
	})
	dl := attemptFunc(func(ctx context.Context, m domain.RankedMatch, tr *domain.TrackRequest) (string, error) {
		return "/music/a.flac", nil
	})

	c := New(searcher, dl, WithProgressTracker(tracker), WithPopTimeout(10*time.Millisecond))
	runAll(t, c, 1, track("1"))

	assert.Equal(t, []progress.Stage{"queued", "started", "searching", "downloading", "success"}, stages)
	assert.Equal(t, 1, tracker.Snapshot().Finished)
}

func TestListenerMayEnqueue(t *testing.T) {
	tracker := progress.NewProgressTracker()
	searcher := searchFunc(func(ctx context.Context, tr *domain.TrackRequest) (search.Result, error) {
		return search.Result{}, nil
	})
	c := New(searcher, attemptFunc(nil), WithProgressTracker(tracker), WithPopTimeout(10*time.Millisecond))

	var follow sync.Once
	tracker.AddListener(func(e progress.Event) {
		if e.Stage == "queued" && e.TrackID == "1" {
			follow.Do(func() { assert.NoError(t, c.Enqueue(track("2"))) })
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		runAll(t, c, 2, track("1"))
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("enqueue from a progress listener blocked the coordinator")
	}

	assert.Equal(t, 2, c.Results().Len())
	for _, rec := range c.Results().Records() {
		assert.Equal(t, job.StatusNoResults, rec.Status, rec.TrackID)
	}
}

// Every enqueued track ends with exactly one terminal record, whatever the
// item and worker counts.
func TestRandomizedDrain(t *testing.T) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	for round := 0; round < 10; round++ {
		n := 1 + rng.Intn(150)
		w := 1 + rng.Intn(n)
		seed := rng.Int63()

		t.Run(fmt.Sprintf("n=%d/w=%d", n, w), func(t *testing.T) {
			var mu sync.Mutex
			local := rand.New(rand.NewSource(seed))
			outcome := func() int {
				mu.Lock()
				defer mu.Unlock()
				return local.Intn(6)
			}

			searcher := searchFunc(func(ctx context.Context, tr *domain.TrackRequest) (search.Result, error) {
				switch outcome() {
				case 0:
					return search.Result{}, nil
				case 1:
					return search.Result{RawCount: 2}, nil
				case 2:
					return search.Result{}, errors.New("unreachable")
				case 3:
					panic("unexpected")
				default:
					return found("p1", "p2"), nil
				}
			})
			dl := attemptFunc(func(ctx context.Context, m domain.RankedMatch, tr *domain.TrackRequest) (string, error) {
				if outcome()%2 == 0 {
					return "", downloader.ErrDownloadTimeout
				}
				return "/music/" + tr.ID, nil
			})

			c := New(searcher, dl, WithBreadth(2), WithPopTimeout(5*time.Millisecond))
			tracks := make([]*domain.TrackRequest, n)
			for i := range tracks {
				tracks[i] = track(fmt.Sprintf("%04d", i))
			}
			runAll(t, c, w, tracks...)

			records := c.Results().Records()
			require.Len(t, records, n)
			for i, rec := range records {
				assert.Equal(t, tracks[i].ID, rec.TrackID)
				assert.True(t, rec.Status.Terminal(), "%s: %s", rec.TrackID, rec.Status)
				if rec.Status == job.StatusSuccess {
					assert.Equal(t, rec.Path, tracks[i].Path)
				}
			}
		})
	}
}
