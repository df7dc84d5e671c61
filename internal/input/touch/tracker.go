// Package touch recognizes touchpad gestures from per-slot finger contacts.
//
// The Tracker follows each slot from touch-down to lift-off, keeping its
// delta and velocity per frame. Gestures are classified when a finger lifts:
//
//   - tap: short and nearly stationary
//   - swipe: fast movement along a dominant axis (ties go horizontal,
//     y grows downward)
//   - two-finger tap: two concurrent touches that both tap, released close
//     together
//
// Pinches are recognized while exactly two fingers are down. Per-frame
// distance changes below the jitter threshold are ignored; one PinchIn or
// PinchOut is emitted per trend once the cumulative change passes the
// pinch threshold.
//
// A touch that overlapped another finger never yields a single-finger tap
// or swipe.
package touch

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/sample"
)

// ErrInvalidConfig is returned when a touch configuration is rejected.
var ErrInvalidConfig = errors.New("invalid touch config")

// Config holds the gesture thresholds. Distances are in normalized touchpad
// units.
type Config struct {
	// Slots is the number of finger slots tracked.
	Slots int

	// TapMaxTravel is the maximum path length of a tap.
	TapMaxTravel float64

	// TapMaxDuration is the exclusive upper bound on tap duration.
	TapMaxDuration time.Duration

	// SwipeMinDistance is the minimum net displacement along the dominant axis.
	SwipeMinDistance float64

	// SwipeMaxDuration is the maximum duration of a swipe.
	SwipeMaxDuration time.Duration

	// PinchJitter is the per-frame relative distance change ignored as noise.
	PinchJitter float64

	// PinchThreshold is the cumulative relative distance change of a pinch.
	PinchThreshold float64

	// TwoFingerTapWindow is the maximum gap between the two releases of a
	// two-finger tap.
	TwoFingerTapWindow time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		Slots:              2,
		TapMaxTravel:       0.03,
		TapMaxDuration:     200 * time.Millisecond,
		SwipeMinDistance:   0.15,
		SwipeMaxDuration:   500 * time.Millisecond,
		PinchJitter:        0.01,
		PinchThreshold:     0.25,
		TwoFingerTapWindow: 150 * time.Millisecond,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	switch {
	case c.Slots < 1 || c.Slots > sample.MaxTouchSlots:
		return fmt.Errorf("%w: slots %d outside [1, %d]", ErrInvalidConfig, c.Slots, sample.MaxTouchSlots)
	case c.TapMaxTravel <= 0 || c.TapMaxDuration <= 0:
		return fmt.Errorf("%w: tap thresholds must be positive", ErrInvalidConfig)
	case c.SwipeMinDistance <= 0 || c.SwipeMaxDuration <= 0:
		return fmt.Errorf("%w: swipe thresholds must be positive", ErrInvalidConfig)
	case c.PinchJitter < 0 || c.PinchThreshold <= c.PinchJitter:
		return fmt.Errorf("%w: pinch threshold must exceed jitter", ErrInvalidConfig)
	case c.TwoFingerTapWindow <= 0:
		return fmt.Errorf("%w: two finger tap window must be positive", ErrInvalidConfig)
	}
	return nil
}

// FingerState is the tracked state of one slot.
type FingerState struct {
	Slot     int
	ID       uint32
	Active   bool
	Start    sample.Vec2
	Position sample.Vec2

	// Delta is the movement since the previous frame.
	Delta sample.Vec2

	// Velocity is Delta divided by the frame interval, in units per second.
	Velocity sample.Vec2

	// Travel is the accumulated path length.
	Travel float64

	Since time.Time
}

// slot is the per-slot tracking record.
type slot struct {
	FingerState

	last       sample.Vec2
	updatedAt  time.Time
	overlapped bool
}

// pinch is the state of a two-finger distance trend.
type pinch struct {
	active bool
	base   float64
	prev   float64
	trend  int
	fired  bool
}

// tapRelease is a finished overlapped tap waiting for its partner.
type tapRelease struct {
	slot int
	at   time.Time
	pos  sample.Vec2
	dur  time.Duration
}

// Tracker recognizes touch gestures.
//
// Tracker is not safe for concurrent use.
type Tracker struct {
	cfg     Config
	slots   []slot
	pinch   pinch
	pending *tapRelease
	dropped uint64
	tick    uint64
}

// NewTracker creates a tracker.
func NewTracker(cfg Config) (*Tracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Tracker{cfg: cfg}
	t.initSlots()
	return t, nil
}

func (t *Tracker) initSlots() {
	t.slots = make([]slot, t.cfg.Slots)
	for i := range t.slots {
		t.slots[i].Slot = i
	}
}

// Config returns the current thresholds.
func (t *Tracker) Config() Config { return t.cfg }

// SetConfig replaces the thresholds. Changing the slot count drops all
// contacts.
func (t *Tracker) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	resize := cfg.Slots != t.cfg.Slots
	t.cfg = cfg
	if resize {
		t.Reset()
	}
	return nil
}

// Reset drops all contacts and gesture state.
func (t *Tracker) Reset() {
	t.initSlots()
	t.pinch = pinch{}
	t.pending = nil
}

// Dropped returns the number of contacts ignored for out-of-range slots.
func (t *Tracker) Dropped() uint64 { return t.dropped }

// Finger returns the tracked state of a slot.
func (t *Tracker) Finger(i int) (FingerState, bool) {
	if i < 0 || i >= len(t.slots) {
		return FingerState{}, false
	}
	return t.slots[i].FingerState, true
}

// Observe runs UpdateFrame with the fingers of a snapshot.
func (t *Tracker) Observe(snap sample.Snapshot) []event.Event {
	t.tick = snap.Tick()
	return t.UpdateFrame(snap.Time(), snap.Fingers())
}

// UpdateFrame advances the tracker by one frame and returns the gestures
// recognized in it.
func (t *Tracker) UpdateFrame(now time.Time, fingers []sample.Finger) []event.Event {
	present := make([]*sample.Finger, len(t.slots))
	for i := range fingers {
		f := &fingers[i]
		if f.Slot < 0 || f.Slot >= len(t.slots) {
			t.dropped++
			continue
		}
		if f.Active {
			present[f.Slot] = f
		}
	}

	var released []int
	for i := range t.slots {
		s := &t.slots[i]
		f := present[i]
		switch {
		case f != nil && s.Active && f.ID != s.ID:
			// A new contact reused the slot without a lift-off frame.
			released = append(released, i)
		case f == nil && s.Active:
			released = append(released, i)
		}
	}

	var out []event.Event
	for _, i := range released {
		out = append(out, t.release(i, now)...)
	}

	active := 0
	for i := range t.slots {
		s := &t.slots[i]
		f := present[i]
		if f == nil {
			continue
		}
		pos := f.Position.Clamp01()
		if !s.Active {
			s.FingerState = FingerState{
				Slot:     i,
				ID:       f.ID,
				Active:   true,
				Start:    pos,
				Position: pos,
				Since:    now,
			}
			s.last = pos
			s.updatedAt = now
			s.overlapped = false
		} else {
			s.Delta = pos.Sub(s.last)
			if dt := now.Sub(s.updatedAt).Seconds(); dt > 0 {
				s.Velocity = s.Delta.Scale(1 / dt)
			}
			s.Travel += s.Delta.Len()
			s.Position = pos
			s.last = pos
			s.updatedAt = now
		}
		active++
	}

	if active >= 2 {
		for i := range t.slots {
			if t.slots[i].Active {
				t.slots[i].overlapped = true
			}
		}
	}

	if ev, ok := t.updatePinch(now, active); ok {
		out = append(out, ev)
	}
	return out
}

// release classifies a lifted finger and clears its slot.
func (t *Tracker) release(i int, now time.Time) []event.Event {
	s := t.slots[i]
	t.slots[i] = slot{FingerState: FingerState{Slot: i}}

	dur := now.Sub(s.Since)
	net := s.Position.Sub(s.Start)
	isTap := s.Travel < t.cfg.TapMaxTravel && dur < t.cfg.TapMaxDuration

	if s.overlapped {
		if !isTap {
			t.pending = nil
			return nil
		}
		if p := t.pending; p != nil && p.slot != i && now.Sub(p.at) <= t.cfg.TwoFingerTapWindow {
			t.pending = nil
			mid := p.pos.Add(s.Position).Scale(0.5)
			slots := []int{p.slot, i}
			if slots[0] > slots[1] {
				slots[0], slots[1] = slots[1], slots[0]
			}
			return []event.Event{t.event(event.TwoFingerTap, now, slots, event.Params{
				Duration: maxDuration(dur, p.dur),
				Position: mid,
			})}
		}
		t.pending = &tapRelease{slot: i, at: now, pos: s.Position, dur: dur}
		return nil
	}

	if isTap {
		return []event.Event{t.event(event.TouchTap, now, []int{i}, event.Params{
			Duration: dur,
			Position: s.Position,
		})}
	}

	if dur > t.cfg.SwipeMaxDuration {
		return nil
	}

	var kind event.Kind
	if math.Abs(net.X) >= math.Abs(net.Y) {
		if math.Abs(net.X) < t.cfg.SwipeMinDistance {
			return nil
		}
		kind = event.SwipeRight
		if net.X < 0 {
			kind = event.SwipeLeft
		}
	} else {
		if math.Abs(net.Y) < t.cfg.SwipeMinDistance {
			return nil
		}
		kind = event.SwipeDown
		if net.Y < 0 {
			kind = event.SwipeUp
		}
	}

	var vel sample.Vec2
	if secs := dur.Seconds(); secs > 0 {
		vel = net.Scale(1 / secs)
	}
	return []event.Event{t.event(kind, now, []int{i}, event.Params{
		Duration: dur,
		Position: s.Position,
		Delta:    net,
		Velocity: vel,
	})}
}

// updatePinch follows the two-finger distance trend.
func (t *Tracker) updatePinch(now time.Time, active int) (event.Event, bool) {
	if active != 2 {
		t.pinch = pinch{}
		return event.Event{}, false
	}

	var a, b *slot
	for i := range t.slots {
		if !t.slots[i].Active {
			continue
		}
		if a == nil {
			a = &t.slots[i]
		} else {
			b = &t.slots[i]
		}
	}
	d := a.Position.Dist(b.Position)

	p := &t.pinch
	if !p.active {
		*p = pinch{active: true, base: d, prev: d}
		return event.Event{}, false
	}
	if p.prev <= 0 {
		p.base, p.prev = d, d
		return event.Event{}, false
	}

	rel := (d - p.prev) / p.prev
	if math.Abs(rel) < t.cfg.PinchJitter {
		return event.Event{}, false
	}

	dir := 1
	if d < p.prev {
		dir = -1
	}
	if p.trend != 0 && dir != p.trend {
		p.base = p.prev
		p.fired = false
	}
	p.trend = dir
	p.prev = d

	if p.fired || p.base <= 0 {
		return event.Event{}, false
	}
	cum := (d - p.base) / p.base
	if math.Abs(cum) < t.cfg.PinchThreshold {
		return event.Event{}, false
	}
	p.fired = true

	kind := event.PinchOut
	if cum < 0 {
		kind = event.PinchIn
	}
	return t.event(kind, now, []int{a.Slot, b.Slot}, event.Params{
		Duration: now.Sub(laterOf(a.Since, b.Since)),
		Position: a.Position.Add(b.Position).Scale(0.5),
		Scale:    d / p.base,
	}), true
}

func (t *Tracker) event(kind event.Kind, now time.Time, slots []int, params event.Params) event.Event {
	return event.Event{
		Kind:   kind,
		Source: event.SourceTouch,
		Tick:   t.tick,
		Time:   now,
		Slots:  slots,
		Params: params,
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
