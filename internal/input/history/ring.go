// Package history keeps a bounded, time-ordered record of recent input
// snapshots.
//
// The Ring is written once per tick by the input handler and read by the
// detectors during the same tick. It is bounded both by count and,
// optionally, by age. Eviction happens on append and never scans the whole
// buffer.
package history

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/padstorm/internal/input/sample"
)

var (
	// ErrOutOfOrder is returned when a snapshot is older than the newest
	// snapshot already recorded.
	ErrOutOfOrder = errors.New("snapshot out of order")

	// ErrInvalidCapacity is returned for a non-positive capacity.
	ErrInvalidCapacity = errors.New("history capacity must be positive")
)

// Config configures a Ring.
type Config struct {
	// Capacity is the maximum number of snapshots kept.
	Capacity int

	// MaxAge evicts snapshots older than this relative to the newest one.
	// Zero disables age eviction.
	MaxAge time.Duration
}

// DefaultConfig returns the default history configuration.
func DefaultConfig() Config {
	return Config{
		Capacity: 32,
		MaxAge:   2 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidCapacity, c.Capacity)
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("history max age must not be negative: %v", c.MaxAge)
	}
	return nil
}

// Reader is the read-only view of the history handed to detectors.
type Reader interface {
	// Len returns the number of snapshots recorded.
	Len() int

	// At returns the snapshot at index i, where 0 is the oldest.
	At(i int) (sample.Snapshot, bool)

	// Latest returns the newest snapshot.
	Latest() (sample.Snapshot, bool)

	// Previous returns the snapshot before the newest one.
	Previous() (sample.Snapshot, bool)

	// PressStart returns when the current continuous press of an action began.
	PressStart(action sample.ActionID) (time.Time, bool)

	// LastPress returns the newest press edge of an action at or after since.
	LastPress(action sample.ActionID, since time.Time) (time.Time, bool)
}

// Ring is a fixed-capacity circular buffer of snapshots.
//
// Ring is not safe for concurrent use; the input handler serializes access.
type Ring struct {
	buf    []sample.Snapshot
	head   int // index of the oldest snapshot
	n      int
	maxAge time.Duration
}

// New creates a Ring.
func New(cfg Config) (*Ring, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Ring{
		buf:    make([]sample.Snapshot, cfg.Capacity),
		maxAge: cfg.MaxAge,
	}, nil
}

// Append records a snapshot, evicting the oldest entries as needed.
// Snapshots must arrive with non-decreasing timestamps.
func (r *Ring) Append(s sample.Snapshot) error {
	if latest, ok := r.Latest(); ok && s.Time().Before(latest.Time()) {
		return fmt.Errorf("%w: %v before %v", ErrOutOfOrder, s.Time(), latest.Time())
	}

	if r.n == len(r.buf) {
		r.buf[r.head] = s
		r.head = (r.head + 1) % len(r.buf)
	} else {
		r.buf[(r.head+r.n)%len(r.buf)] = s
		r.n++
	}

	if r.maxAge > 0 {
		now := s.Time()
		for r.n > 1 && now.Sub(r.buf[r.head].Time()) > r.maxAge {
			r.buf[r.head] = sample.Snapshot{}
			r.head = (r.head + 1) % len(r.buf)
			r.n--
		}
	}
	return nil
}

// Len returns the number of snapshots recorded.
func (r *Ring) Len() int { return r.n }

// Cap returns the capacity of the ring.
func (r *Ring) Cap() int { return len(r.buf) }

// At returns the snapshot at index i, where 0 is the oldest.
func (r *Ring) At(i int) (sample.Snapshot, bool) {
	if i < 0 || i >= r.n {
		return sample.Snapshot{}, false
	}
	return r.buf[(r.head+i)%len(r.buf)], true
}

// Latest returns the newest snapshot.
func (r *Ring) Latest() (sample.Snapshot, bool) { return r.At(r.n - 1) }

// Previous returns the snapshot before the newest one.
func (r *Ring) Previous() (sample.Snapshot, bool) { return r.At(r.n - 2) }

// Range calls fn for each snapshot from oldest to newest until fn returns false.
func (r *Ring) Range(fn func(sample.Snapshot) bool) {
	for i := 0; i < r.n; i++ {
		if !fn(r.buf[(r.head+i)%len(r.buf)]) {
			return
		}
	}
}

// Reverse calls fn for each snapshot from newest to oldest until fn returns false.
func (r *Ring) Reverse(fn func(sample.Snapshot) bool) {
	for i := r.n - 1; i >= 0; i-- {
		if !fn(r.buf[(r.head+i)%len(r.buf)]) {
			return
		}
	}
}

// Clear removes all snapshots.
func (r *Ring) Clear() {
	for i := range r.buf {
		r.buf[i] = sample.Snapshot{}
	}
	r.head = 0
	r.n = 0
}

// PressStart walks back from the newest snapshot to the press edge that
// began the current continuous press of action. It reports false when the
// action is not pressed in the newest snapshot or the edge has already been
// evicted.
func (r *Ring) PressStart(action sample.ActionID) (time.Time, bool) {
	latest, ok := r.Latest()
	if !ok {
		return time.Time{}, false
	}
	st := latest.Action(action)
	if !st.Pressed {
		if st.JustPressed {
			return latest.Time(), true
		}
		return time.Time{}, false
	}

	var start time.Time
	found := false
	r.Reverse(func(s sample.Snapshot) bool {
		st := s.Action(action)
		if st.JustPressed {
			start, found = s.Time(), true
			return false
		}
		return st.Pressed
	})
	return start, found
}

// LastPress returns the time of the newest press edge of action at or after
// since.
func (r *Ring) LastPress(action sample.ActionID, since time.Time) (time.Time, bool) {
	var at time.Time
	found := false
	r.Reverse(func(s sample.Snapshot) bool {
		if s.Time().Before(since) {
			return false
		}
		if s.Action(action).JustPressed {
			at, found = s.Time(), true
			return false
		}
		return true
	})
	return at, found
}

// PressedWithin reports whether action had a press edge within window of now.
func (r *Ring) PressedWithin(action sample.ActionID, window time.Duration, now time.Time) bool {
	_, ok := r.LastPress(action, now.Add(-window))
	return ok
}
