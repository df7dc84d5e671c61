package sample

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MaxTouchSlots is the largest number of touch slots any supported
// touchpad reports.
const MaxTouchSlots = 10

// ErrInvalidConfig is returned when an ingestor configuration is rejected.
var ErrInvalidConfig = errors.New("invalid ingestor config")

// Config configures the Ingestor.
type Config struct {
	// AxisDeadzone is the magnitude below which analog axes read as zero.
	// Values above it are rescaled so the output still spans [0, 1].
	AxisDeadzone float64

	// AxisPressThreshold is the post-deadzone magnitude at which an axis
	// counts as pressed.
	AxisPressThreshold float64

	// TouchSlots is the number of touch slots tracked.
	TouchSlots int

	// Actions are registered up front so they appear in every snapshot even
	// before the device layer reports them.
	Actions []ActionID
}

// DefaultConfig returns the default ingestor configuration.
func DefaultConfig() Config {
	return Config{
		AxisDeadzone:       0.1,
		AxisPressThreshold: 0.5,
		TouchSlots:         2,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.AxisDeadzone < 0 || c.AxisDeadzone >= 1 {
		return fmt.Errorf("%w: axis deadzone %v outside [0, 1)", ErrInvalidConfig, c.AxisDeadzone)
	}
	if c.AxisPressThreshold <= 0 || c.AxisPressThreshold > 1 {
		return fmt.Errorf("%w: axis press threshold %v outside (0, 1]", ErrInvalidConfig, c.AxisPressThreshold)
	}
	if c.TouchSlots < 0 || c.TouchSlots > MaxTouchSlots {
		return fmt.Errorf("%w: touch slots %d outside [0, %d]", ErrInvalidConfig, c.TouchSlots, MaxTouchSlots)
	}
	return nil
}

// Ingestor converts Raw samples into Snapshots.
//
// The ingestor remembers the pressed set of the previous tick to compute
// edge flags. Actions are registered on first sight and are never removed,
// so an action that disappears from the raw sample reads as released.
//
// Ingestor is not safe for concurrent use.
type Ingestor struct {
	cfg Config

	tick    uint64
	last    time.Time
	started bool

	// known holds every action ever seen.
	known map[ActionID]struct{}

	// prev holds the actions pressed on the previous tick.
	prev map[ActionID]bool

	// touch holds the fingers of the previous tick.
	touch []Finger

	dropped uint64
	clamped uint64
}

// NewIngestor creates an ingestor. Invalid configurations fall back to the
// defaults for the offending fields.
func NewIngestor(cfg Config) *Ingestor {
	def := DefaultConfig()
	if cfg.AxisDeadzone < 0 || cfg.AxisDeadzone >= 1 {
		cfg.AxisDeadzone = def.AxisDeadzone
	}
	if cfg.AxisPressThreshold <= 0 || cfg.AxisPressThreshold > 1 {
		cfg.AxisPressThreshold = def.AxisPressThreshold
	}
	if cfg.TouchSlots < 0 || cfg.TouchSlots > MaxTouchSlots {
		cfg.TouchSlots = def.TouchSlots
	}

	in := &Ingestor{
		cfg:   cfg,
		known: make(map[ActionID]struct{}, len(cfg.Actions)),
		prev:  make(map[ActionID]bool),
	}
	for _, id := range cfg.Actions {
		in.known[id] = struct{}{}
	}
	return in
}

// Config returns the active configuration.
func (in *Ingestor) Config() Config { return in.cfg }

// SetConfig replaces the configuration between ticks. Edge state is kept.
func (in *Ingestor) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	in.cfg = cfg
	in.Register(cfg.Actions...)
	return nil
}

// Register adds actions to the known set.
func (in *Ingestor) Register(ids ...ActionID) {
	for _, id := range ids {
		in.known[id] = struct{}{}
	}
}

// Ingest converts one raw sample into a snapshot.
//
// Timestamps earlier than the previous tick are clamped to the previous
// tick. Touch contacts in slots outside the configured range or with
// non-finite coordinates are dropped and counted.
func (in *Ingestor) Ingest(raw Raw) Snapshot {
	t := raw.Time
	if in.started && t.Before(in.last) {
		t = in.last
		in.clamped++
	}
	in.started = true
	in.last = t
	in.tick++

	pressed := make(map[ActionID]bool, len(raw.Buttons)+len(raw.Axes))
	values := make(map[ActionID]float64, len(raw.Buttons)+len(raw.Axes))

	for id, down := range raw.Buttons {
		in.known[id] = struct{}{}
		if down {
			pressed[id] = true
			values[id] = 1
		}
	}

	for id, v := range raw.Axes {
		in.known[id] = struct{}{}
		v = in.applyDeadzone(v)
		if math.Abs(v) > math.Abs(values[id]) {
			values[id] = v
		}
		if math.Abs(v) >= in.cfg.AxisPressThreshold {
			pressed[id] = true
		}
	}

	pulses := make(map[ActionID]bool, len(raw.Pulses))
	for _, id := range raw.Pulses {
		in.known[id] = struct{}{}
		pulses[id] = true
	}

	actions := make(map[ActionID]ActionState, len(in.known))
	for id := range in.known {
		now, was := pressed[id], in.prev[id]
		st := ActionState{
			Pressed:      now,
			JustPressed:  now && !was,
			JustReleased: !now && was,
			Value:        values[id],
		}
		if pulses[id] && !now && !was {
			st.JustPressed = true
			st.JustReleased = true
		}
		actions[id] = st
	}
	in.prev = pressed

	return Snapshot{
		tick:    in.tick,
		time:    t,
		actions: actions,
		fingers: in.fingers(raw.Touch),
		motion:  motionOf(raw.Motion),
	}
}

// fingers maps raw contacts onto the fixed slot array. A contact with a
// non-finite coordinate is dropped; if it continues a contact of the
// previous tick, that contact keeps its last position instead of lifting.
func (in *Ingestor) fingers(raw []RawFinger) []Finger {
	out := make([]Finger, in.cfg.TouchSlots)
	for i := range out {
		out[i].Slot = i
	}
	for _, rf := range raw {
		if rf.Slot < 0 || rf.Slot >= in.cfg.TouchSlots {
			in.dropped++
			continue
		}
		if !finite(rf.X) || !finite(rf.Y) {
			in.dropped++
			if prev, ok := in.lastFinger(rf.Slot); ok && prev.Active && prev.ID == rf.ID {
				prev.Active = rf.Active
				out[rf.Slot] = prev
			}
			continue
		}
		out[rf.Slot] = Finger{
			Slot:     rf.Slot,
			ID:       rf.ID,
			Position: Vec2{rf.X, rf.Y}.Clamp01(),
			Active:   rf.Active,
		}
	}
	in.touch = out
	return out
}

func (in *Ingestor) lastFinger(slot int) (Finger, bool) {
	if slot < 0 || slot >= len(in.touch) {
		return Finger{}, false
	}
	return in.touch[slot], true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// applyDeadzone zeroes small axis values and rescales the remainder.
func (in *Ingestor) applyDeadzone(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	v = clamp(v, -1, 1)
	dz := in.cfg.AxisDeadzone
	mag := math.Abs(v)
	if mag <= dz {
		return 0
	}
	return math.Copysign((mag-dz)/(1-dz), v)
}

func motionOf(m *Motion) Motion {
	if m == nil {
		return Motion{}
	}
	out := *m
	out.Valid = true
	return out
}

// Dropped returns the number of touch contacts dropped for out-of-range
// slots or non-finite coordinates.
func (in *Ingestor) Dropped() uint64 { return in.dropped }

// Clamped returns the number of timestamps clamped to keep time monotonic.
func (in *Ingestor) Clamped() uint64 { return in.clamped }

// Tick returns the number of samples ingested.
func (in *Ingestor) Tick() uint64 { return in.tick }

// Reset forgets the previous pressed set, so every held action reports a
// fresh press edge on the next tick. The tick counter and known actions
// are kept.
func (in *Ingestor) Reset() {
	in.prev = make(map[ActionID]bool)
}
