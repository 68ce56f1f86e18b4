// Package metrics exposes pipeline progress as Prometheus metrics.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jaki95/slsk-fetcher/internal/progress"
)

const namespace = "slsk_fetcher"

var durationBuckets = []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200}

// Metrics turns progress events into counters. Each run registers its own
// Listener so track ids only need to be unique within a run.
type Metrics struct {
	Items    *prometheus.CounterVec
	InFlight prometheus.Gauge
	Duration prometheus.Histogram

	mu       sync.Mutex
	inFlight map[flightKey]bool
	runs     atomic.Uint64
}

type flightKey struct {
	run   uint64
	track string
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Tracks that reached a terminal status, by status.",
		}, []string{"status"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items_in_flight",
			Help:      "Tracks currently held by a worker.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time from a worker picking a track up to its terminal status.",
			Buckets:   durationBuckets,
		}),
		inFlight: make(map[flightKey]bool),
	}

	for _, c := range []prometheus.Collector{m.Items, m.InFlight, m.Duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Listener returns a progress listener for one run.
func (m *Metrics) Listener() func(progress.Event) {
	run := m.runs.Add(1)
	return func(e progress.Event) {
		m.observe(run, e)
	}
}

// Observe updates the metrics from one progress event of a single, unnamed run.
func (m *Metrics) Observe(e progress.Event) {
	m.observe(0, e)
}

func (m *Metrics) observe(run uint64, e progress.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := flightKey{run: run, track: e.TrackID}
	if e.Terminal {
		m.Items.WithLabelValues(string(e.Stage)).Inc()
		if m.inFlight[key] {
			delete(m.inFlight, key)
			m.InFlight.Dec()
			m.Duration.Observe(e.Duration.Seconds())
		}
		return
	}

	if e.Stage == "started" && !m.inFlight[key] {
		m.inFlight[key] = true
		m.InFlight.Inc()
	}
}
