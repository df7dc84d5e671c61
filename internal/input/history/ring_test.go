package history

import (
	"errors"
	"testing"
	"time"

	"github.com/dshills/padstorm/internal/input/sample"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return t0.Add(time.Duration(ms) * time.Millisecond)
}

func snap(tick uint64, ms int, actions map[sample.ActionID]sample.ActionState) sample.Snapshot {
	return sample.NewSnapshot(tick, at(ms), actions, nil, sample.Motion{})
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Capacity: 0}); !errors.Is(err, ErrInvalidCapacity) {
		t.Errorf("New(capacity 0) error = %v, want ErrInvalidCapacity", err)
	}
	if _, err := New(Config{Capacity: 4, MaxAge: -time.Second}); err == nil {
		t.Error("New(negative max age) error = nil, want error")
	}
}

func TestRingCountEviction(t *testing.T) {
	r, err := New(Config{Capacity: 3})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	for i := 1; i <= 5; i++ {
		if err := r.Append(snap(uint64(i), i*10, nil)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}

	var ticks []uint64
	r.Range(func(s sample.Snapshot) bool {
		ticks = append(ticks, s.Tick())
		return true
	})
	want := []uint64{3, 4, 5}
	for i := range want {
		if ticks[i] != want[i] {
			t.Errorf("Range() ticks = %v, want %v", ticks, want)
			break
		}
	}

	latest, _ := r.Latest()
	prev, _ := r.Previous()
	if latest.Tick() != 5 || prev.Tick() != 4 {
		t.Errorf("Latest/Previous = %d/%d, want 5/4", latest.Tick(), prev.Tick())
	}
}

func TestRingAgeEviction(t *testing.T) {
	r, _ := New(Config{Capacity: 10, MaxAge: 100 * time.Millisecond})

	_ = r.Append(snap(1, 0, nil))
	_ = r.Append(snap(2, 50, nil))
	_ = r.Append(snap(3, 160, nil))

	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if s, _ := r.At(0); s.Tick() != 3 {
		t.Errorf("At(0).Tick() = %d, want 3", s.Tick())
	}
}

func TestRingOutOfOrder(t *testing.T) {
	r, _ := New(DefaultConfig())
	_ = r.Append(snap(1, 100, nil))

	if err := r.Append(snap(2, 50, nil)); !errors.Is(err, ErrOutOfOrder) {
		t.Errorf("Append(older) error = %v, want ErrOutOfOrder", err)
	}
	if err := r.Append(snap(2, 100, nil)); err != nil {
		t.Errorf("Append(equal time) error = %v, want nil", err)
	}
}

func TestRingPressStart(t *testing.T) {
	r, _ := New(DefaultConfig())
	pressed := sample.ActionState{Pressed: true}
	edge := sample.ActionState{Pressed: true, JustPressed: true}

	_ = r.Append(snap(1, 0, map[sample.ActionID]sample.ActionState{"a": {}}))
	_ = r.Append(snap(2, 16, map[sample.ActionID]sample.ActionState{"a": edge}))
	_ = r.Append(snap(3, 32, map[sample.ActionID]sample.ActionState{"a": pressed}))
	_ = r.Append(snap(4, 48, map[sample.ActionID]sample.ActionState{"a": pressed}))

	start, ok := r.PressStart("a")
	if !ok || !start.Equal(at(16)) {
		t.Errorf("PressStart(a) = %v, %v, want %v, true", start, ok, at(16))
	}

	if _, ok := r.PressStart("b"); ok {
		t.Error("PressStart(b) found a press for an unpressed action")
	}
}

func TestRingPressStartEvicted(t *testing.T) {
	r, _ := New(Config{Capacity: 2})
	pressed := sample.ActionState{Pressed: true}

	_ = r.Append(snap(1, 0, map[sample.ActionID]sample.ActionState{"a": {Pressed: true, JustPressed: true}}))
	_ = r.Append(snap(2, 16, map[sample.ActionID]sample.ActionState{"a": pressed}))
	_ = r.Append(snap(3, 32, map[sample.ActionID]sample.ActionState{"a": pressed}))

	if _, ok := r.PressStart("a"); ok {
		t.Error("PressStart(a) succeeded after the press edge was evicted")
	}
}

func TestRingLastPress(t *testing.T) {
	r, _ := New(DefaultConfig())
	edge := sample.ActionState{Pressed: true, JustPressed: true}

	_ = r.Append(snap(1, 0, map[sample.ActionID]sample.ActionState{"a": edge}))
	_ = r.Append(snap(2, 100, map[sample.ActionID]sample.ActionState{"a": {JustReleased: true}}))
	_ = r.Append(snap(3, 200, map[sample.ActionID]sample.ActionState{"a": edge}))

	if got, ok := r.LastPress("a", at(0)); !ok || !got.Equal(at(200)) {
		t.Errorf("LastPress(a, 0) = %v, %v, want %v", got, ok, at(200))
	}
	if !r.PressedWithin("a", 50*time.Millisecond, at(220)) {
		t.Error("PressedWithin(a, 50ms) = false, want true")
	}
	if r.PressedWithin("a", 10*time.Millisecond, at(220)) {
		t.Error("PressedWithin(a, 10ms) = true, want false")
	}
}

func TestRingClear(t *testing.T) {
	r, _ := New(DefaultConfig())
	_ = r.Append(snap(1, 0, nil))
	r.Clear()

	if r.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", r.Len())
	}
	if _, ok := r.Latest(); ok {
		t.Error("Latest() after Clear reported a snapshot")
	}
}
