package input

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/padstorm/internal/input/event"
)

const maxLatencySamples = 1000

// numSources covers every event.Source value including the zero value.
const numSources = int(event.SourceMachine) + 1

// Metrics tracks pipeline throughput and latency.
type Metrics struct {
	ticksTotal     atomic.Uint64
	eventsTotal    atomic.Uint64
	eventsBySource [numSources]atomic.Uint64
	droppedSamples atomic.Uint64
	droppedTouches atomic.Uint64
	clampedTimes   atomic.Uint64
	comboTimeouts  atomic.Uint64
	stateChanges   atomic.Uint64

	// Latency tracking
	mu         sync.RWMutex
	latencies  []time.Duration
	latencyIdx int

	// Peak latency (all time)
	peakLatency atomic.Int64

	startTime time.Time

	enabled atomic.Bool
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{
		latencies: make([]time.Duration, maxLatencySamples),
		startTime: time.Now(),
	}
	m.enabled.Store(true)
	return m
}

// SetEnabled enables or disables metrics collection.
func (m *Metrics) SetEnabled(enabled bool) {
	m.enabled.Store(enabled)
}

// IsEnabled returns whether metrics collection is enabled.
func (m *Metrics) IsEnabled() bool {
	return m.enabled.Load()
}

// RecordTick records a processed tick, its events and its latency.
func (m *Metrics) RecordTick(latency time.Duration, events []event.Event) {
	if !m.enabled.Load() {
		return
	}

	m.ticksTotal.Add(1)
	m.eventsTotal.Add(uint64(len(events)))
	for _, ev := range events {
		if int(ev.Source) < numSources {
			m.eventsBySource[ev.Source].Add(1)
		}
		if ev.Kind == event.StateChanged {
			m.stateChanges.Add(1)
		}
	}

	latencyNs := latency.Nanoseconds()
	for {
		current := m.peakLatency.Load()
		if latencyNs <= current {
			break
		}
		if m.peakLatency.CompareAndSwap(current, latencyNs) {
			break
		}
	}

	m.mu.Lock()
	m.latencies[m.latencyIdx] = latency
	m.latencyIdx = (m.latencyIdx + 1) % maxLatencySamples
	m.mu.Unlock()
}

// RecordDroppedSample records a sample dropped by a hook.
func (m *Metrics) RecordDroppedSample() {
	if !m.enabled.Load() {
		return
	}
	m.droppedSamples.Add(1)
}

// detectorCounts are the cumulative counters owned by one handler's
// detectors.
type detectorCounts struct {
	droppedTouches uint64
	clampedTimes   uint64
	comboTimeouts  uint64
}

// recordCounts adds the growth from prev to cur. Several handlers may share
// one Metrics, so each reports only its own increments. A counter below its
// previous value belongs to a rebuilt detector and counts from zero.
func (m *Metrics) recordCounts(prev, cur detectorCounts) {
	if !m.enabled.Load() {
		return
	}
	m.droppedTouches.Add(growth(prev.droppedTouches, cur.droppedTouches))
	m.clampedTimes.Add(growth(prev.clampedTimes, cur.clampedTimes))
	m.comboTimeouts.Add(growth(prev.comboTimeouts, cur.comboTimeouts))
}

func growth(prev, cur uint64) uint64 {
	if cur < prev {
		return cur
	}
	return cur - prev
}

// MetricsSnapshot holds a point-in-time view of metrics.
type MetricsSnapshot struct {
	// Counters
	TicksTotal     uint64
	EventsTotal    uint64
	EventsBySource map[event.Source]uint64
	DroppedSamples uint64
	DroppedTouches uint64
	ClampedTimes   uint64
	ComboTimeouts  uint64
	StateChanges   uint64

	// Latency stats
	AvgLatency  time.Duration
	MaxLatency  time.Duration
	P99Latency  time.Duration
	PeakLatency time.Duration

	// Rates
	TicksPerSecond  float64
	EventsPerSecond float64

	Uptime time.Duration
}

// Snapshot returns a point-in-time view of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	uptime := time.Since(m.startTime)
	m.mu.RUnlock()

	ticks := m.ticksTotal.Load()
	events := m.eventsTotal.Load()

	snap := MetricsSnapshot{
		TicksTotal:     ticks,
		EventsTotal:    events,
		EventsBySource: make(map[event.Source]uint64),
		DroppedSamples: m.droppedSamples.Load(),
		DroppedTouches: m.droppedTouches.Load(),
		ClampedTimes:   m.clampedTimes.Load(),
		ComboTimeouts:  m.comboTimeouts.Load(),
		StateChanges:   m.stateChanges.Load(),
		PeakLatency:    time.Duration(m.peakLatency.Load()),
		Uptime:         uptime,
	}
	for i := range m.eventsBySource {
		if n := m.eventsBySource[i].Load(); n > 0 {
			snap.EventsBySource[event.Source(i)] = n
		}
	}

	if uptime > 0 {
		snap.TicksPerSecond = float64(ticks) / uptime.Seconds()
		snap.EventsPerSecond = float64(events) / uptime.Seconds()
	}

	snap.AvgLatency, snap.MaxLatency, snap.P99Latency = calculateLatencyStats(latencies)
	return snap
}

// calculateLatencyStats computes average, max, and p99 from a slice of latencies.
func calculateLatencyStats(latencies []time.Duration) (avg, maxLat, p99 time.Duration) {
	valid := make([]time.Duration, 0, len(latencies))
	for _, l := range latencies {
		if l > 0 {
			valid = append(valid, l)
		}
	}
	if len(valid) == 0 {
		return 0, 0, 0
	}

	var sum time.Duration
	for _, l := range valid {
		sum += l
	}
	avg = sum / time.Duration(len(valid))

	slices.Sort(valid)
	maxLat = valid[len(valid)-1]

	idx := int(float64(len(valid)) * 0.99)
	if idx >= len(valid) {
		idx = len(valid) - 1
	}
	p99 = valid[idx]

	return avg, maxLat, p99
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.ticksTotal.Store(0)
	m.eventsTotal.Store(0)
	for i := range m.eventsBySource {
		m.eventsBySource[i].Store(0)
	}
	m.droppedSamples.Store(0)
	m.droppedTouches.Store(0)
	m.clampedTimes.Store(0)
	m.comboTimeouts.Store(0)
	m.stateChanges.Store(0)
	m.peakLatency.Store(0)

	m.mu.Lock()
	m.latencies = make([]time.Duration, maxLatencySamples)
	m.latencyIdx = 0
	m.startTime = time.Now()
	m.mu.Unlock()
}

// TicksTotal returns the number of ticks processed.
func (m *Metrics) TicksTotal() uint64 {
	return m.ticksTotal.Load()
}

// EventsTotal returns the number of events emitted.
func (m *Metrics) EventsTotal() uint64 {
	return m.eventsTotal.Load()
}

// DroppedSamples returns the number of samples dropped by hooks.
func (m *Metrics) DroppedSamples() uint64 {
	return m.droppedSamples.Load()
}

// HealthStatus represents the current health of the pipeline.
type HealthStatus struct {
	Healthy          bool
	DroppedTouches   uint64
	PeakLatency      time.Duration
	LatencyThreshold time.Duration
	Message          string
}

// HealthCheck reports whether ticks stay under latencyThreshold and whether
// upstream data has been malformed.
func (m *Metrics) HealthCheck(latencyThreshold time.Duration) HealthStatus {
	status := HealthStatus{
		Healthy:          true,
		DroppedTouches:   m.droppedTouches.Load(),
		PeakLatency:      time.Duration(m.peakLatency.Load()),
		LatencyThreshold: latencyThreshold,
	}

	switch {
	case status.PeakLatency > latencyThreshold:
		status.Healthy = false
		status.Message = "latency threshold exceeded"
	case status.DroppedTouches > 0:
		status.Message = "out-of-range touch slots dropped"
	default:
		status.Message = "healthy"
	}
	return status
}

// Timer helps measure tick duration.
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// StartTickTimer starts a timer for one tick.
func (m *Metrics) StartTickTimer() *Timer {
	return &Timer{start: time.Now(), metrics: m}
}

// Stop records the tick with its events and returns the elapsed time.
func (t *Timer) Stop(events []event.Event) time.Duration {
	elapsed := time.Since(t.start)
	t.metrics.RecordTick(elapsed, events)
	return elapsed
}
