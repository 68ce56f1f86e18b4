package job

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaki95/slsk-fetcher/internal/progress"
)

// maxRunEvents bounds the event log kept per run.
const maxRunEvents = 500

// Manager handles run management
type Manager struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewManager creates a new run manager
func NewManager() *Manager {
	return &Manager{
		runs: make(map[string]*Run),
	}
}

// CreateRun registers a new pending run. The returned context is cancelled by
// CancelRun.
func (m *Manager) CreateRun(workers, breadth int) (Run, context.Context) {
	ctx, cancel := context.WithCancel(context.Background())

	run := &Run{
		ID:         uuid.NewString(),
		Status:     RunPending,
		Message:    "Run created",
		Workers:    workers,
		Breadth:    breadth,
		StartTime:  time.Now(),
		cancelFunc: cancel,
	}

	m.mu.Lock()
	m.runs[run.ID] = run
	m.mu.Unlock()

	return run.snapshot(), ctx
}

// GetRun returns a copy of the run.
func (m *Manager) GetRun(runID string) (Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, exists := m.runs[runID]
	if !exists {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return run.snapshot(), nil
}

// UpdateRun applies fn to the stored run under the manager lock.
func (m *Manager) UpdateRun(runID string, fn func(*Run)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, exists := m.runs[runID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	fn(run)
	return nil
}

// AddEvent appends a progress event to the run's log, dropping the oldest
// entries past the limit.
func (m *Manager) AddEvent(runID string, event progress.Event) {
	_ = m.UpdateRun(runID, func(r *Run) {
		r.Events = append(r.Events, event)
		if len(r.Events) > maxRunEvents {
			r.Events = r.Events[len(r.Events)-maxRunEvents:]
		}
	})
}

// CancelRun cancels a pending or running run
func (m *Manager) CancelRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, exists := m.runs[runID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if run.Status != RunRunning && run.Status != RunPending {
		return fmt.Errorf("%w: %s", ErrInvalidState, run.Status)
	}

	run.cancelFunc()
	run.Status = RunCancelled
	run.Message = "Run cancelled by user"
	endTime := time.Now()
	run.EndTime = &endTime

	return nil
}

// ListRuns lists runs, newest first, with pagination
func (m *Manager) ListRuns(page, pageSize int) *Response {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = DefaultPageSize
	}

	m.mu.RLock()
	runs := make([]*Run, 0, len(m.runs))
	for _, run := range m.runs {
		snap := run.snapshot()
		runs = append(runs, &snap)
	}
	m.mu.RUnlock()

	sort.Slice(runs, func(i, j int) bool { return runs[i].StartTime.After(runs[j].StartTime) })

	resp := &Response{
		Runs:       []*Run{},
		Page:       page,
		PageSize:   pageSize,
		TotalRuns:  len(runs),
		TotalPages: (len(runs) + pageSize - 1) / pageSize,
	}

	start := (page - 1) * pageSize
	if start >= len(runs) {
		return resp
	}
	end := min(start+pageSize, len(runs))
	resp.Runs = runs[start:end]
	return resp
}

func (r *Run) snapshot() Run {
	cp := *r
	cp.Records = append([]Record(nil), r.Records...)
	cp.Events = append([]progress.Event(nil), r.Events...)
	counts := make(map[Status]int, len(r.Summary.Counts))
	for k, v := range r.Summary.Counts {
		counts[k] = v
	}
	cp.Summary.Counts = counts
	if r.EndTime != nil {
		end := *r.EndTime
		cp.EndTime = &end
	}
	return cp
}
