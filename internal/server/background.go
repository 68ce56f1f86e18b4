package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jaki95/slsk-fetcher/internal/job"
	"github.com/jaki95/slsk-fetcher/internal/progress"
	"github.com/jaki95/slsk-fetcher/internal/service"
)

// runInBackground executes the run and records its outcome
func (s *Server) runInBackground(ctx context.Context, runID string, req job.Request) {
	slog.Info("Starting background run", "runId", runID, "tracks", len(req.Tracks), "workers", req.Workers)

	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	_ = s.runManager.UpdateRun(runID, func(r *job.Run) {
		if r.Status == job.RunPending {
			r.Status = job.RunRunning
			r.Message = "Fetching tracks"
		}
	})

	tracker := progress.NewProgressTracker()
	tracker.AddListener(func(e progress.Event) {
		s.runManager.AddEvent(runID, e)
	})

	outcome, err := s.runner.Run(ctx, req.Tracks, service.RunOptions{
		Workers: req.Workers,
		Breadth: req.Breadth,
		Tracker: tracker,
	})

	_ = s.runManager.UpdateRun(runID, func(r *job.Run) {
		endTime := time.Now()
		if r.EndTime == nil {
			r.EndTime = &endTime
		}
		r.Records = outcome.Records
		r.Summary = outcome.Summary

		switch {
		case r.Status == job.RunCancelled:
			slog.Warn("Run cancelled", "runId", runID)
		case err != nil:
			r.Status = job.RunFailed
			r.Error = err.Error()
			r.Message = "Run failed"
			slog.Error("Run failed", "runId", runID, "error", err)
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			r.Status = job.RunFailed
			r.Error = ctx.Err().Error()
			r.Message = "Run timed out"
			slog.Error("Run timed out", "runId", runID)
		default:
			r.Status = job.RunCompleted
			r.Message = "Run completed"
			slog.Info("Run completed", "runId", runID,
				"success", outcome.Summary.Counts[job.StatusSuccess],
				"total", outcome.Summary.Total)
		}
	})
}
