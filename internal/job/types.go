package job

import (
	"context"
	"time"

	"github.com/jaki95/slsk-fetcher/internal/domain"
	"github.com/jaki95/slsk-fetcher/internal/progress"
)

// Status is the state of one track in the pipeline.
type Status string

// Constants for track status
const (
	StatusQueued      Status = "queued"
	StatusStarted     Status = "started"
	StatusSearching   Status = "searching"
	StatusDownloading Status = "downloading"

	StatusSuccess         Status = "success"
	StatusNoResults       Status = "no_results"
	StatusNoMatches       Status = "no_matches"
	StatusDownloadFailed  Status = "download_failed"
	StatusPlacementFailed Status = "placement_failed"
	StatusError           Status = "error"
)

// TerminalStatuses lists every final status in reporting order.
var TerminalStatuses = []Status{
	StatusSuccess,
	StatusNoResults,
	StatusNoMatches,
	StatusDownloadFailed,
	StatusPlacementFailed,
	StatusError,
}

// Terminal reports whether no further transition can follow s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusNoResults, StatusNoMatches, StatusDownloadFailed, StatusPlacementFailed, StatusError:
		return true
	}
	return false
}

// Record is the outcome of one track. Records are values: a worker stores a
// new copy on every transition.
type Record struct {
	TrackID      string               `json:"track_id"`
	Display      string               `json:"display"`
	Track        *domain.TrackRequest `json:"-"`
	Status       Status               `json:"status"`
	ResultsFound int                  `json:"results_found"`
	MatchesFound int                  `json:"matches_found"`
	Query        string               `json:"query,omitempty"`
	Peer         string               `json:"peer,omitempty"`
	Filename     string               `json:"filename,omitempty"`
	Path         string               `json:"path,omitempty"`
	Detail       string               `json:"detail,omitempty"`
	StartedAt    time.Time            `json:"started_at"`
	SearchedAt   *time.Time           `json:"searched_at,omitempty"`
	DownloadedAt *time.Time           `json:"downloaded_at,omitempty"`
	FinishedAt   *time.Time           `json:"finished_at,omitempty"`
}

// Duration is how long the track took, or has taken so far.
func (r Record) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	if r.FinishedAt != nil {
		return r.FinishedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// Summary aggregates the records of a run.
type Summary struct {
	Total        int            `json:"total"`
	Counts       map[Status]int `json:"counts"`
	SuccessRatio float64        `json:"success_ratio"`
	Unfinished   int            `json:"unfinished"`
}

// Run is one pipeline execution requested through the API.
type Run struct {
	ID        string           `json:"id"`
	Status    string           `json:"status"`
	Message   string           `json:"message"`
	Error     string           `json:"error,omitempty"`
	Workers   int              `json:"workers"`
	Breadth   int              `json:"breadth"`
	Records   []Record         `json:"records"`
	Summary   Summary          `json:"summary"`
	Events    []progress.Event `json:"events"`
	StartTime time.Time        `json:"start_time"`
	EndTime   *time.Time       `json:"end_time,omitempty"`

	cancelFunc context.CancelFunc
}

// Request represents the request body for starting a run
type Request struct {
	Tracks  []*domain.TrackRequest `json:"tracks" binding:"required"`
	Workers int                    `json:"workers"`
	Breadth int                    `json:"breadth"`
}

// Response represents a page of runs
type Response struct {
	Runs       []*Run `json:"runs"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalRuns  int    `json:"total_runs"`
	TotalPages int    `json:"total_pages"`
}

// Constants for run status
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCancelled = "cancelled"
)

// Constants for pagination
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Constants for configuration
const (
	DefaultWorkers    = 4
	MaxAllowedWorkers = 100 // Safety limit to prevent excessive goroutine allocation
)

// ValidateWorkers validates and sanitizes a requested worker count
func ValidateWorkers(workers int) int {
	if workers <= 0 {
		return DefaultWorkers
	}
	if workers > MaxAllowedWorkers {
		return MaxAllowedWorkers
	}
	return workers
}
