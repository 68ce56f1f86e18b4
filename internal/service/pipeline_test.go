package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/slsk-fetcher/config"
	"github.com/jaki95/slsk-fetcher/internal/domain"
	"github.com/jaki95/slsk-fetcher/internal/job"
	"github.com/jaki95/slsk-fetcher/internal/metrics"
	"github.com/jaki95/slsk-fetcher/internal/retry"
	"github.com/jaki95/slsk-fetcher/internal/slskd"
)

const remoteGlue = `Music\Bicep\Isles\01 - Bicep - Glue.flac`

// fakeSlskd answers searches for "Bicep" with one flac and everything else
// with nothing. Enqueued files are written to the staging dir and reported
// as succeeded.
type fakeSlskd struct {
	t       *testing.T
	staging string

	mu       sync.Mutex
	searches map[string]string
	enqueued map[string][]slskd.DownloadRequest
}

func newFakeSlskd(t *testing.T, staging string) *httptest.Server {
	f := &fakeSlskd{t: t, staging: staging, searches: map[string]string{}, enqueued: map[string][]slskd.DownloadRequest{}}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v0/application", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("POST /api/v0/searches", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ID         string `json:"id"`
			SearchText string `json:"searchText"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.searches[body.ID] = body.SearchText
		f.mu.Unlock()
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /api/v0/searches/{id}", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(slskd.Search{ID: r.PathValue("id"), IsComplete: true})
	})
	mux.HandleFunc("GET /api/v0/searches/{id}/responses", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		text := f.searches[r.PathValue("id")]
		f.mu.Unlock()

		responses := []slskd.SearchResponse{}
		if strings.Contains(text, "Bicep") {
			length, depth := 240, 16
			responses = append(responses, slskd.SearchResponse{
				Username: "peer1",
				Files: []slskd.File{{
					Filename: remoteGlue, Size: 4, Extension: "flac", Length: &length, BitDepth: &depth,
				}},
			})
		}
		json.NewEncoder(w).Encode(responses)
	})
	mux.HandleFunc("POST /api/v0/transfers/downloads/{user}", func(w http.ResponseWriter, r *http.Request) {
		var files []slskd.DownloadRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&files))

		dir := filepath.Join(f.staging, "Isles")
		require.NoError(t, os.MkdirAll(dir, 0755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "01 - Bicep - Glue.flac"), []byte("flac"), 0644))

		f.mu.Lock()
		f.enqueued[r.PathValue("user")] = append(f.enqueued[r.PathValue("user")], files...)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("GET /api/v0/transfers/downloads/{user}", func(w http.ResponseWriter, r *http.Request) {
		user := r.PathValue("user")
		f.mu.Lock()
		files := f.enqueued[user]
		f.mu.Unlock()

		ut := slskd.UserTransfers{Username: user}
		dir := slskd.TransferDirectory{Directory: `Music\Bicep\Isles`}
		for _, file := range files {
			dir.Files = append(dir.Files, slskd.Transfer{Username: user, Filename: file.Filename, Size: file.Size, State: slskd.TransferSucceeded})
		}
		ut.Directories = append(ut.Directories, dir)
		json.NewEncoder(w).Encode(ut)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(t *testing.T, host string) *config.Config {
	cfg := &config.Config{
		Slskd: config.SlskdConfig{Host: host, APIKey: "secret"},
		Download: config.DownloadConfig{
			Workers:            2,
			Timeout:            2 * time.Second,
			PollInterval:       10 * time.Millisecond,
			SearchPollInterval: 10 * time.Millisecond,
			SearchTimeout:      time.Second,
			SubmitAttempts:     1,
			SubmitDelay:        time.Millisecond,
			PopTimeout:         10 * time.Millisecond,
			StagingDir:         t.TempDir(),
		},
		Storage: config.StorageConfig{Type: "local", OutputDir: t.TempDir()},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestPipelineRun(t *testing.T) {
	staging := t.TempDir()
	srv := newFakeSlskd(t, staging)
	cfg := testConfig(t, srv.URL)
	cfg.Download.StagingDir = staging

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	p, err := New(context.Background(), cfg, WithMetrics(m))
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Check(context.Background()))

	tracks := []*domain.TrackRequest{
		{ID: "glue", Title: "Glue", MainArtist: "Bicep"},
		{ID: "nothing", Title: "Nothing", MainArtist: "Nobody"},
	}
	out, err := p.Run(context.Background(), tracks, RunOptions{})
	require.NoError(t, err)

	require.Len(t, out.Records, 2)
	byID := map[string]job.Record{}
	for _, r := range out.Records {
		byID[r.TrackID] = r
	}
	assert.Equal(t, job.StatusSuccess, byID["glue"].Status)
	assert.Equal(t, job.StatusNoResults, byID["nothing"].Status)

	want := filepath.Join(cfg.Storage.OutputDir, "Bicep - Glue.flac")
	abs, err := filepath.Abs(want)
	require.NoError(t, err)
	assert.Equal(t, abs, tracks[0].Path)
	assert.FileExists(t, abs)
	assert.Empty(t, tracks[1].Path)

	assert.Equal(t, 2, out.Summary.Total)
	assert.Equal(t, 0.5, out.Summary.SuccessRatio)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Items.WithLabelValues("success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestPipelineRunWithoutTracks(t *testing.T) {
	srv := newFakeSlskd(t, t.TempDir())
	p, err := New(context.Background(), testConfig(t, srv.URL))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), nil, RunOptions{})
	assert.ErrorIs(t, err, ErrNoTracks)
}

func TestPipelineRunRejectsInvalidTracks(t *testing.T) {
	srv := newFakeSlskd(t, t.TempDir())
	p, err := New(context.Background(), testConfig(t, srv.URL))
	require.NoError(t, err)

	_, err = p.Run(context.Background(), []*domain.TrackRequest{{ID: "x"}}, RunOptions{Workers: 1})
	assert.ErrorContains(t, err, "failed to enqueue")
}

func TestCheckUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, err := New(context.Background(), testConfig(t, srv.URL))
	require.NoError(t, err)

	assert.ErrorIs(t, p.Check(context.Background()), ErrSlskdUnreachable)
}

func TestNewStorage(t *testing.T) {
	s, err := NewStorage(context.Background(), config.StorageConfig{Type: "local", OutputDir: t.TempDir()})
	require.NoError(t, err)
	assert.NoError(t, s.Close())

	_, err = NewStorage(context.Background(), config.StorageConfig{Type: "s3"})
	assert.ErrorContains(t, err, "unsupported storage type")
}

func TestSearchOptions(t *testing.T) {
	policy := retry.Policy{Attempts: 3, Delay: time.Second}

	tests := []struct {
		name    string
		timeout time.Duration
		want    time.Duration
	}{
		{name: "configured timeout", timeout: 30 * time.Second, want: 30 * time.Second},
		{name: "negative disables", timeout: -time.Second, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := searchOptions(config.DownloadConfig{SearchPollInterval: time.Second, SearchTimeout: tt.timeout}, policy)
			assert.Equal(t, tt.want, opts.Timeout)
			assert.Equal(t, time.Second, opts.PollInterval)
			assert.Equal(t, policy, opts.Submit)
		})
	}
}
