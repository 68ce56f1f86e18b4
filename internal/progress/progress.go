package progress

import (
	"encoding/json"
	"reflect"
	"sync"
	"time"
)

// Stage is the state a track has reached, e.g. "searching" or "success".
type Stage string

// Event represents a progress event for one track
type Event struct {
	Stage     Stage         `json:"stage"`
	TrackID   string        `json:"trackId"`
	Track     string        `json:"track"`
	Message   string        `json:"message"`
	Detail    string        `json:"detail,omitempty"`
	Terminal  bool          `json:"terminal"`
	Progress  float64       `json:"progress"`
	Duration  time.Duration `json:"duration,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// State is a point-in-time view of a run.
type State struct {
	Total    int           `json:"total"`
	Finished int           `json:"finished"`
	Progress float64       `json:"progress"`
	Stages   map[Stage]int `json:"stages"`
}

// ProgressTracker manages progress tracking
type ProgressTracker struct {
	mu        sync.RWMutex
	total     int
	finished  int
	stages    map[string]Stage
	done      map[string]bool
	listeners []func(Event)
}

// NewProgressTracker creates a new ProgressTracker instance
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{
		stages:    make(map[string]Stage),
		done:      make(map[string]bool),
		listeners: make([]func(Event), 0),
	}
}

// AddListener adds a new progress event listener
func (pt *ProgressTracker) AddListener(listener func(Event)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	pt.listeners = append(pt.listeners, listener)
}

// RemoveListener removes a progress event listener
func (pt *ProgressTracker) RemoveListener(listener func(Event)) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	listenerPtr := reflect.ValueOf(listener).Pointer()
	for i := range pt.listeners {
		if reflect.ValueOf(pt.listeners[i]).Pointer() == listenerPtr {
			pt.listeners = append(pt.listeners[:i], pt.listeners[i+1:]...)
			break
		}
	}
}

// AddTotal grows the number of tracks the run expects to finish.
func (pt *ProgressTracker) AddTotal(n int) {
	pt.mu.Lock()
	pt.total += n
	pt.mu.Unlock()
}

// Publish records the event's stage for its track and notifies all listeners.
// A track counts as finished the first time a terminal event is seen for it.
func (pt *ProgressTracker) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	pt.mu.Lock()
	pt.stages[event.TrackID] = event.Stage
	if event.Terminal && !pt.done[event.TrackID] {
		pt.done[event.TrackID] = true
		pt.finished++
	}
	event.Progress = pt.percent()
	pt.mu.Unlock()

	pt.notifyListeners(event)
}

func (pt *ProgressTracker) percent() float64 {
	if pt.total == 0 {
		return 0
	}
	return float64(pt.finished) / float64(pt.total) * 100
}

// notifyListeners sends an event to all registered listeners. Listeners run
// without the tracker lock held and may publish themselves.
func (pt *ProgressTracker) notifyListeners(event Event) {
	pt.mu.RLock()
	listeners := make([]func(Event), len(pt.listeners))
	copy(listeners, pt.listeners)
	pt.mu.RUnlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Snapshot returns the current progress state
func (pt *ProgressTracker) Snapshot() State {
	pt.mu.RLock()
	defer pt.mu.RUnlock()

	stages := make(map[Stage]int)
	for _, s := range pt.stages {
		stages[s]++
	}
	return State{
		Total:    pt.total,
		Finished: pt.finished,
		Progress: pt.percent(),
		Stages:   stages,
	}
}

// MarshalJSON implements json.Marshaler for Event
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Alias:     (*Alias)(&e),
	})
}

// UnmarshalJSON implements json.Unmarshaler for Event
func (e *Event) UnmarshalJSON(data []byte) error {
	type Alias Event
	aux := &struct {
		Timestamp string `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(e),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := time.Parse(time.RFC3339, aux.Timestamp)
	if err != nil {
		return err
	}
	e.Timestamp = t
	return nil
}
