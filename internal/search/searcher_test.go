package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/slsk-fetcher/internal/domain"
	"github.com/jaki95/slsk-fetcher/internal/matcher"
	"github.com/jaki95/slsk-fetcher/internal/retry"
	"github.com/jaki95/slsk-fetcher/internal/slskd"
)

func intPtr(v int) *int { return &v }

func testOptions() Options {
	return Options{
		PollInterval: time.Millisecond,
		Timeout:      time.Second,
		Submit:       retry.Policy{Attempts: 3, Delay: time.Millisecond},
	}
}

func file(name string, bitRate int) slskd.File {
	return slskd.File{Filename: name, Size: 100, Length: intPtr(240), BitRate: intPtr(bitRate), Extension: "mp3"}
}

func TestQueries(t *testing.T) {
	tests := []struct {
		name  string
		track domain.TrackRequest
		want  []string
	}{
		{
			name:  "artist and title only",
			track: domain.TrackRequest{MainArtist: "Bicep", Title: "Glue"},
			want:  []string{"Bicep Glue"},
		},
		{
			name:  "remix",
			track: domain.TrackRequest{MainArtist: "Bicep", Title: "Glue", Remixer: "Hammer", RemixType: "Remix"},
			want:  []string{"Bicep Glue Hammer Remix", "Bicep Glue Hammer", "Bicep Glue"},
		},
		{
			name:  "feature without remix",
			track: domain.TrackRequest{MainArtist: "Fred again..", Title: "Jungle", FeatArtist: "Elley Duhé"},
			want:  []string{"Fred again.. Elley Duhé Jungle", "Fred again.. Jungle"},
		},
		{
			name:  "whitespace collapsed",
			track: domain.TrackRequest{MainArtist: "  Bicep ", Title: "Glue  "},
			want:  []string{"Bicep Glue"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Queries(&tt.track))
		})
	}
}

func TestSearchShortCircuitsOnFirstResults(t *testing.T) {
	var submitted []string
	client := &MockClient{
		SubmitSearchFunc: func(ctx context.Context, text string) (string, error) {
			submitted = append(submitted, text)
			return text, nil
		},
		FetchResultsFunc: func(ctx context.Context, id string) ([]slskd.SearchResponse, error) {
			if id == "Bicep Glue Hammer" {
				return []slskd.SearchResponse{{Username: "peer", Files: []slskd.File{file("Bicep - Glue (Hammer Remix).mp3", 320)}}}, nil
			}
			return nil, nil
		},
	}
	track := &domain.TrackRequest{ID: "1", MainArtist: "Bicep", Title: "Glue", Remixer: "Hammer", RemixType: "Remix"}

	res, err := New(client, matcher.New(nil), testOptions()).Search(context.Background(), track)

	require.NoError(t, err)
	assert.Equal(t, []string{"Bicep Glue Hammer Remix", "Bicep Glue Hammer"}, submitted)
	assert.Equal(t, "Bicep Glue Hammer", res.Query)
	assert.Equal(t, 1, res.RawCount)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "peer", res.Matches[0].Peer())
	assert.False(t, res.AttemptedAt.IsZero())
}

func TestSearchNoResults(t *testing.T) {
	track := &domain.TrackRequest{ID: "1", MainArtist: "Bicep", Title: "Glue"}

	res, err := New(&MockClient{}, matcher.New(nil), testOptions()).Search(context.Background(), track)

	require.NoError(t, err)
	assert.Zero(t, res.RawCount)
	assert.Empty(t, res.Matches)
}

func TestSearchResultsWithoutMatches(t *testing.T) {
	client := &MockClient{
		FetchResultsFunc: func(ctx context.Context, id string) ([]slskd.SearchResponse, error) {
			return []slskd.SearchResponse{{Username: "peer", Files: []slskd.File{file("Someone - Else.mp3", 320)}}}, nil
		},
	}
	track := &domain.TrackRequest{ID: "1", MainArtist: "Bicep", Title: "Glue"}

	res, err := New(client, matcher.New(nil), testOptions()).Search(context.Background(), track)

	require.NoError(t, err)
	assert.Equal(t, 1, res.RawCount)
	assert.Empty(t, res.Matches)
}

func TestSearchRetriesSubmission(t *testing.T) {
	var calls int32
	client := &MockClient{
		SubmitSearchFunc: func(ctx context.Context, text string) (string, error) {
			if atomic.AddInt32(&calls, 1) < 3 {
				return "", errors.New("connection refused")
			}
			return "id", nil
		},
	}
	track := &domain.TrackRequest{ID: "1", MainArtist: "Bicep", Title: "Glue"}

	_, err := New(client, matcher.New(nil), testOptions()).Search(context.Background(), track)

	assert.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSearchSubmissionExhausted(t *testing.T) {
	unreachable := errors.New("connection refused")
	var calls int32
	client := &MockClient{
		SubmitSearchFunc: func(ctx context.Context, text string) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "", unreachable
		},
	}
	track := &domain.TrackRequest{ID: "1", MainArtist: "Bicep", Title: "Glue"}

	_, err := New(client, matcher.New(nil), testOptions()).Search(context.Background(), track)

	assert.ErrorIs(t, err, unreachable)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestSearchPollsUntilComplete(t *testing.T) {
	var polls int32
	client := &MockClient{
		IsSearchCompleteFunc: func(ctx context.Context, id string) (bool, error) {
			n := atomic.AddInt32(&polls, 1)
			if n == 2 {
				return false, errors.New("temporary failure")
			}
			return n >= 4, nil
		},
	}
	track := &domain.TrackRequest{ID: "1", MainArtist: "Bicep", Title: "Glue"}

	_, err := New(client, matcher.New(nil), testOptions()).Search(context.Background(), track)

	require.NoError(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&polls))
}

func TestSearchTimeoutUsesPartialResults(t *testing.T) {
	var mu sync.Mutex
	var cancelled []string
	client := &MockClient{
		IsSearchCompleteFunc: func(ctx context.Context, id string) (bool, error) {
			return false, nil
		},
		CancelSearchFunc: func(ctx context.Context, id string) error {
			mu.Lock()
			defer mu.Unlock()
			cancelled = append(cancelled, id)
			return nil
		},
		FetchResultsFunc: func(ctx context.Context, id string) ([]slskd.SearchResponse, error) {
			return []slskd.SearchResponse{{Username: "peer", Files: []slskd.File{file("Bicep - Glue.mp3", 320)}}}, nil
		},
	}
	track := &domain.TrackRequest{ID: "1", MainArtist: "Bicep", Title: "Glue"}
	opts := testOptions()
	opts.Timeout = 20 * time.Millisecond

	start := time.Now()
	res, err := New(client, matcher.New(nil), opts).Search(context.Background(), track)

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []string{"Bicep Glue"}, cancelled)
	assert.Len(t, res.Matches, 1)
}

func TestSearchHonoursContext(t *testing.T) {
	client := &MockClient{
		IsSearchCompleteFunc: func(ctx context.Context, id string) (bool, error) {
			return false, nil
		},
	}
	opts := testOptions()
	opts.Timeout = 0
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := New(client, matcher.New(nil), opts).Search(ctx, &domain.TrackRequest{ID: "1", MainArtist: "A", Title: "B"})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFlattenMarksLockedFiles(t *testing.T) {
	got := flatten([]slskd.SearchResponse{{
		Username:    "peer",
		Files:       []slskd.File{file("a.mp3", 320)},
		LockedFiles: []slskd.File{file("b.mp3", 320)},
	}})

	require.Len(t, got, 2)
	assert.False(t, got[0].Locked)
	assert.True(t, got[1].Locked)
	assert.Equal(t, "peer", got[1].Peer)
}
