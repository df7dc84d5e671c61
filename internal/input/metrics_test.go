package input

import (
	"testing"
	"time"

	"github.com/dshills/padstorm/internal/input/event"
)

func TestMetricsRecordTick(t *testing.T) {
	m := NewMetrics()
	m.RecordTick(2*time.Millisecond, []event.Event{
		{Kind: event.Tap, Source: event.SourceModifier},
		{Kind: event.Shake, Source: event.SourceMotion},
	})
	m.RecordTick(4*time.Millisecond, nil)

	snap := m.Snapshot()
	if snap.TicksTotal != 2 {
		t.Errorf("TicksTotal = %d, want 2", snap.TicksTotal)
	}
	if snap.EventsTotal != 2 {
		t.Errorf("EventsTotal = %d, want 2", snap.EventsTotal)
	}
	if snap.EventsBySource[event.SourceMotion] != 1 {
		t.Errorf("EventsBySource[motion] = %d, want 1", snap.EventsBySource[event.SourceMotion])
	}
	if snap.PeakLatency != 4*time.Millisecond {
		t.Errorf("PeakLatency = %v, want 4ms", snap.PeakLatency)
	}
	if snap.AvgLatency != 3*time.Millisecond {
		t.Errorf("AvgLatency = %v, want 3ms", snap.AvgLatency)
	}
	if snap.MaxLatency != 4*time.Millisecond {
		t.Errorf("MaxLatency = %v, want 4ms", snap.MaxLatency)
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics()
	m.SetEnabled(false)
	m.RecordTick(time.Millisecond, []event.Event{{Kind: event.Tap}})
	m.RecordDroppedSample()
	if m.TicksTotal() != 0 || m.DroppedSamples() != 0 {
		t.Errorf("counters moved while disabled: ticks=%d dropped=%d", m.TicksTotal(), m.DroppedSamples())
	}
}

func TestMetricsReset(t *testing.T) {
	m := NewMetrics()
	m.RecordTick(time.Millisecond, []event.Event{{Kind: event.Tap, Source: event.SourceModifier}})
	m.Reset()
	snap := m.Snapshot()
	if snap.TicksTotal != 0 || snap.EventsTotal != 0 || snap.PeakLatency != 0 || len(snap.EventsBySource) != 0 {
		t.Errorf("Snapshot() after Reset = %+v, want zero counters", snap)
	}
}

func TestMetricsHealthCheck(t *testing.T) {
	m := NewMetrics()
	m.RecordTick(time.Millisecond, nil)
	if s := m.HealthCheck(5 * time.Millisecond); !s.Healthy {
		t.Errorf("HealthCheck() = %+v, want healthy", s)
	}
	m.RecordTick(10*time.Millisecond, nil)
	if s := m.HealthCheck(5 * time.Millisecond); s.Healthy {
		t.Errorf("HealthCheck() = %+v, want unhealthy", s)
	}
}

func TestCalculateLatencyStats(t *testing.T) {
	lat := make([]time.Duration, 100)
	for i := range lat {
		lat[i] = time.Duration(i+1) * time.Millisecond
	}
	avg, maxLat, p99 := calculateLatencyStats(lat)
	if maxLat != 100*time.Millisecond {
		t.Errorf("max = %v, want 100ms", maxLat)
	}
	if p99 != 100*time.Millisecond {
		t.Errorf("p99 = %v, want 100ms", p99)
	}
	if avg != 50500*time.Microsecond {
		t.Errorf("avg = %v, want 50.5ms", avg)
	}
	if a, mx, p := calculateLatencyStats(nil); a != 0 || mx != 0 || p != 0 {
		t.Errorf("stats(nil) = %v %v %v, want zeros", a, mx, p)
	}
}
