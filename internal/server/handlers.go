package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jaki95/slsk-fetcher/internal/job"
)

// startRun godoc
// @Summary Start a run
// @Description Queues the given tracks for search and download and returns the run id.
// @Tags Runs
// @Accept json
// @Produce json
// @Param request body job.Request true "Tracks and pool parameters"
// @Success 202 {object} RunAcceptedResponse
// @Failure 400 {object} ErrorResponse
// @Router /api/v1/runs [post]
func (s *Server) startRun(c *gin.Context) {
	var req job.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid request: %v", err)})
		return
	}

	if len(req.Tracks) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": job.ErrNoTracks.Error()})
		return
	}

	seen := make(map[string]bool, len(req.Tracks))
	for i, t := range req.Tracks {
		if t == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%v: track %d is null", ErrInvalidTrack, i)})
			return
		}
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if err := t.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%v: %v", ErrInvalidTrack, err)})
			return
		}
		if seen[t.ID] {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%v: duplicate id %s", ErrInvalidTrack, t.ID)})
			return
		}
		seen[t.ID] = true
		t.Path = ""
	}

	if req.Workers <= 0 {
		req.Workers = s.cfg.Download.Workers
	}
	req.Workers = job.ValidateWorkers(req.Workers)
	if req.Breadth <= 0 {
		req.Breadth = s.cfg.Download.Breadth
	}

	run, ctx := s.runManager.CreateRun(req.Workers, req.Breadth)
	go s.runInBackground(ctx, run.ID, req)

	c.JSON(http.StatusAccepted, RunAcceptedResponse{
		Message: "Run started",
		RunID:   run.ID,
	})
}

// getRun godoc
// @Summary Get run status
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} job.Run
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/runs/{id} [get]
func (s *Server) getRun(c *gin.Context) {
	run, err := s.runManager.GetRun(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, run)
}

// cancelRun godoc
// @Summary Cancel a run
// @Description Tracks not yet picked up by a worker are recorded as errors.
// @Tags Runs
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/v1/runs/{id} [delete]
func (s *Server) cancelRun(c *gin.Context) {
	err := s.runManager.CancelRun(c.Param("id"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, MessageResponse{Message: "Run cancelled"})
	case errors.Is(err, job.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, job.ErrInvalidState):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// listRuns godoc
// @Summary List runs
// @Tags Runs
// @Produce json
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} job.Response
// @Router /api/v1/runs [get]
func (s *Server) listRuns(c *gin.Context) {
	page := 1
	pageSize := job.DefaultPageSize

	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if ps := c.Query("pageSize"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= job.MaxPageSize {
			pageSize = parsed
		}
	}

	c.JSON(http.StatusOK, s.runManager.ListRuns(page, pageSize))
}

// health godoc
// @Summary Health check
// @Tags Utility
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /health [get]
func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
