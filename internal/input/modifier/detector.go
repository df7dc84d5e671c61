package modifier

import (
	"errors"
	"fmt"
	"time"

	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/history"
	"github.com/dshills/padstorm/internal/input/sample"
)

// ErrInvalidConfig is returned when a modifier configuration is rejected.
var ErrInvalidConfig = errors.New("invalid modifier config")

// Config holds the modifier timing thresholds.
type Config struct {
	// HoldDuration is the minimum press duration of a Hold.
	HoldDuration time.Duration

	// LongPressDuration is the minimum press duration of a LongPress.
	LongPressDuration time.Duration

	// DoubleTapWindow is the maximum gap between two tap releases for the
	// second one to count as a DoubleTap.
	DoubleTapWindow time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		HoldDuration:      200 * time.Millisecond,
		LongPressDuration: 800 * time.Millisecond,
		DoubleTapWindow:   300 * time.Millisecond,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if c.HoldDuration <= 0 {
		return fmt.Errorf("%w: hold duration must be positive", ErrInvalidConfig)
	}
	if c.LongPressDuration <= c.HoldDuration {
		return fmt.Errorf("%w: long press duration %v must exceed hold duration %v",
			ErrInvalidConfig, c.LongPressDuration, c.HoldDuration)
	}
	if c.DoubleTapWindow <= 0 {
		return fmt.Errorf("%w: double tap window must be positive", ErrInvalidConfig)
	}
	return nil
}

// idleAfter returns how long an idle timer is kept.
func (c Config) idleAfter() time.Duration {
	d := c.LongPressDuration
	if c.DoubleTapWindow > d {
		d = c.DoubleTapWindow
	}
	return d
}

// timer follows one action from press to release.
type timer struct {
	// pressed is true between the press and release edges.
	pressed bool

	// tracked is false when the press edge was not observed.
	tracked bool
	pressAt time.Time

	holdFired bool
	longFired bool

	// lastTap is the release time of a tap that may start a double tap.
	lastTap time.Time
	hasTap  bool

	lastActive time.Time
}

// Detector emits modifier events for every action.
//
// Detector is not safe for concurrent use.
type Detector struct {
	cfg    Config
	timers map[sample.ActionID]*timer

	// epoch is the time of the first observation after Reset. Press edges
	// recorded in history before it are ignored.
	epoch        time.Time
	hasEpoch     bool
	epochPending bool
}

// NewDetector creates a detector.
func NewDetector(cfg Config) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		cfg:    cfg,
		timers: make(map[sample.ActionID]*timer),
	}, nil
}

// Config returns the current thresholds.
func (d *Detector) Config() Config { return d.cfg }

// SetConfig replaces the thresholds. Running timers keep their state and are
// judged against the new thresholds from the next observation.
func (d *Detector) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	d.cfg = cfg
	return nil
}

// Reset drops all timers. Presses that are held across the reset produce
// only Released.
func (d *Detector) Reset() {
	d.timers = make(map[sample.ActionID]*timer)
	d.epochPending = true
}

// Tracked returns the number of live timers.
func (d *Detector) Tracked() int { return len(d.timers) }

// ObserveAll runs Observe for every action in the snapshot in sorted order
// and prunes idle timers.
func (d *Detector) ObserveAll(snap sample.Snapshot, hist history.Reader) []event.Event {
	var out []event.Event
	for _, id := range snap.Actions() {
		out = append(out, d.Observe(id, snap, hist)...)
	}
	d.prune(snap.Time())
	return out
}

// Observe updates the timer of one action and returns its events for this
// tick.
func (d *Detector) Observe(action sample.ActionID, snap sample.Snapshot, hist history.Reader) []event.Event {
	now := snap.Time()
	if d.epochPending {
		d.epoch, d.hasEpoch, d.epochPending = now, true, false
	}

	st := snap.Action(action)
	if !st.Pressed && !st.JustPressed && !st.JustReleased {
		return nil
	}
	t := d.timers[action]
	if t == nil {
		t = &timer{}
		d.timers[action] = t
	}

	var out []event.Event
	emit := func(kind event.Kind, dur time.Duration) {
		out = append(out, event.Event{
			Kind:   kind,
			Source: event.SourceModifier,
			Tick:   snap.Tick(),
			Time:   now,
			Action: action,
			Params: event.Params{Duration: dur},
		})
	}

	switch {
	case st.JustPressed && st.JustReleased && !st.Pressed:
		// Pressed and released inside one tick.
		t.begin(now)
		d.release(t, now, emit)

	case st.JustPressed:
		t.begin(now)

	case st.Pressed:
		if !t.pressed {
			d.adopt(t, action, hist)
		}
		if t.tracked {
			d.thresholds(t, now, emit)
		}

	case st.JustReleased:
		if !t.pressed {
			d.adoptReleased(t, action, now, hist)
		}
		d.release(t, now, emit)
	}

	t.lastActive = now
	return out
}

// begin starts a tracked press.
func (t *timer) begin(now time.Time) {
	t.pressed = true
	t.tracked = true
	t.pressAt = now
	t.holdFired = false
	t.longFired = false
}

// adopt recovers the press start of a held action whose press edge this
// detector did not see.
func (d *Detector) adopt(t *timer, action sample.ActionID, hist history.Reader) {
	t.pressed = true
	t.tracked = false
	t.holdFired, t.longFired = false, false
	if hist == nil {
		return
	}
	if start, ok := hist.PressStart(action); ok && d.afterEpoch(start) {
		t.pressAt = start
		t.tracked = true
	}
}

// adoptReleased recovers the press start of an action released on a tick
// where this detector had no running timer.
func (d *Detector) adoptReleased(t *timer, action sample.ActionID, now time.Time, hist history.Reader) {
	t.pressed = true
	t.tracked = false
	if hist == nil || !d.hasEpoch {
		return
	}
	if start, ok := hist.LastPress(action, d.epoch); ok && !start.After(now) {
		t.pressAt = start
		t.tracked = true
	}
}

func (d *Detector) afterEpoch(at time.Time) bool {
	return !d.hasEpoch || !at.Before(d.epoch)
}

// thresholds emits Hold or LongPress while the action is held.
func (d *Detector) thresholds(t *timer, now time.Time, emit func(event.Kind, time.Duration)) {
	dur := now.Sub(t.pressAt)
	switch {
	case dur >= d.cfg.LongPressDuration && !t.longFired:
		t.longFired = true
		emit(event.LongPress, dur)
	case dur >= d.cfg.HoldDuration && !t.holdFired && !t.longFired:
		t.holdFired = true
		emit(event.Hold, dur)
	}
}

// release classifies a finished press and always emits Released last.
func (d *Detector) release(t *timer, now time.Time, emit func(event.Kind, time.Duration)) {
	dur := now.Sub(t.pressAt)

	if t.tracked {
		switch {
		case dur >= d.cfg.LongPressDuration:
			if !t.longFired {
				emit(event.LongPress, dur)
			}
			t.hasTap = false
		case dur >= d.cfg.HoldDuration:
			if !t.holdFired && !t.longFired {
				emit(event.Hold, dur)
			}
			t.hasTap = false
		default:
			if t.hasTap && now.Sub(t.lastTap) <= d.cfg.DoubleTapWindow {
				emit(event.DoubleTap, dur)
				t.hasTap = false
			} else {
				emit(event.Tap, dur)
				t.hasTap = true
				t.lastTap = now
			}
		}
	} else {
		dur = 0
		t.hasTap = false
	}

	emit(event.Released, dur)

	t.pressed = false
	t.tracked = false
	t.holdFired = false
	t.longFired = false
}

// prune drops timers that have been idle longer than any window.
func (d *Detector) prune(now time.Time) {
	idle := d.cfg.idleAfter()
	for id, t := range d.timers {
		if !t.pressed && now.Sub(t.lastActive) > idle {
			delete(d.timers, id)
		}
	}
}
