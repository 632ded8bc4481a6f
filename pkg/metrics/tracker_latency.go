// Package metrics keeps in-process latency percentiles per operation.
package metrics

import (
	"sort"
	"sync"
	"time"
)

const defaultWindow = 512

// Tracker holds a sliding window of latency samples for one operation.
type Tracker struct {
	mu      sync.Mutex
	samples []time.Duration
	window  int
	count   int64
}

func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = defaultWindow
	}
	return &Tracker{samples: make([]time.Duration, 0, window), window: window}
}

// Record adds a sample, dropping the oldest once the window is full.
func (t *Tracker) Record(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) == t.window {
		copy(t.samples, t.samples[1:])
		t.samples = t.samples[:t.window-1]
	}
	t.samples = append(t.samples, d)
	t.count++
}

// Stats summarises the current window. Count is the lifetime sample count.
type Stats struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min_ms"`
	Avg   float64 `json:"avg_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
	Max   float64 `json:"max_ms"`
}

func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	sorted := make([]time.Duration, len(t.samples))
	copy(sorted, t.samples)
	count := t.count
	t.mu.Unlock()

	if len(sorted) == 0 {
		return Stats{Count: count}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	return Stats{
		Count: count,
		Min:   ms(sorted[0]),
		Avg:   ms(sum / time.Duration(len(sorted))),
		P50:   ms(percentile(sorted, 0.50)),
		P95:   ms(percentile(sorted, 0.95)),
		P99:   ms(percentile(sorted, 0.99)),
		Max:   ms(sorted[len(sorted)-1]),
	}
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted))*p+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// =============================================================================
// Registry
// =============================================================================

// Registry keys trackers by operation name.
type Registry struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
	window   int
}

func NewRegistry(window int) *Registry {
	return &Registry{trackers: make(map[string]*Tracker), window: window}
}

func (r *Registry) Record(op string, d time.Duration) {
	r.mu.RLock()
	t, ok := r.trackers[op]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if t, ok = r.trackers[op]; !ok {
			t = NewTracker(r.window)
			r.trackers[op] = t
		}
		r.mu.Unlock()
	}
	t.Record(d)
}

// Snapshot returns the stats of every known operation.
func (r *Registry) Snapshot() map[string]Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Stats, len(r.trackers))
	for op, t := range r.trackers {
		out[op] = t.Stats()
	}
	return out
}

var global = NewRegistry(defaultWindow)

// Record adds a sample to the process-wide registry.
func Record(op string, d time.Duration) { global.Record(op, d) }

// Since records the time elapsed since start.
func Since(op string, start time.Time) { global.Record(op, time.Since(start)) }

// Snapshot reports the process-wide registry.
func Snapshot() map[string]Stats { return global.Snapshot() }
