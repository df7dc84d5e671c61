package sample

import (
	"sort"
	"time"
)

// ActionID names a logical input such as "jump" or "fire".
// Actions are bound to buttons or axes by the device layer.
type ActionID string

// ActionState is the state of one action for one tick.
type ActionState struct {
	// Pressed is true while the action is held.
	Pressed bool `json:"pressed"`

	// JustPressed is true only on the tick the press began.
	JustPressed bool `json:"just_pressed"`

	// JustReleased is true only on the tick the press ended.
	// A press and release inside one tick sets both edge flags
	// with Pressed false.
	JustReleased bool `json:"just_released"`

	// Value is the analog magnitude in [-1, 1]. Digital buttons use 0 or 1.
	Value float64 `json:"value"`
}

// Finger is one touch contact in a fixed slot.
type Finger struct {
	Slot     int    `json:"slot"`
	ID       uint32 `json:"id"`
	Position Vec2   `json:"position"`
	Active   bool   `json:"active"`
}

// Motion is a calibrated motion reading. Gyro is angular velocity in rad/s,
// Accel is acceleration in m/s² including gravity.
type Motion struct {
	Gyro  Vec3 `json:"gyro"`
	Accel Vec3 `json:"accel"`
	Valid bool `json:"valid"`
}

// MotionCounts is an uncalibrated motion reading in sensor counts.
// It is converted to Motion by a calibration preset before ingestion.
type MotionCounts struct {
	Gyro  [3]int16 `json:"gyro"`
	Accel [3]int16 `json:"accel"`
}

// RawFinger is a touch contact as reported by the device layer.
type RawFinger struct {
	Slot   int     `json:"slot"`
	ID     uint32  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Active bool    `json:"active"`
}

// Raw is everything the device layer read during one tick.
type Raw struct {
	// Time is the sample timestamp.
	Time time.Time `json:"time"`

	// Buttons holds digital states. Actions missing from the map are released.
	Buttons map[ActionID]bool `json:"buttons,omitempty"`

	// Axes holds analog values in [-1, 1] before the deadzone is applied.
	Axes map[ActionID]float64 `json:"axes,omitempty"`

	// Pulses lists actions that were pressed and released within this tick.
	Pulses []ActionID `json:"pulses,omitempty"`

	// Touch lists the touch contacts by slot.
	Touch []RawFinger `json:"touch,omitempty"`

	// Motion is the calibrated motion reading, if any.
	Motion *Motion `json:"motion,omitempty"`

	// Counts is an uncalibrated motion reading, used when Motion is nil.
	Counts *MotionCounts `json:"counts,omitempty"`
}

// Snapshot is the immutable result of ingesting one Raw sample.
type Snapshot struct {
	tick    uint64
	time    time.Time
	actions map[ActionID]ActionState
	fingers []Finger
	motion  Motion
}

// NewSnapshot builds a snapshot from the given parts. The maps and slices are
// copied. Ingestor.Ingest is the normal way to obtain snapshots; NewSnapshot
// exists for replay and for tests.
func NewSnapshot(tick uint64, t time.Time, actions map[ActionID]ActionState, fingers []Finger, motion Motion) Snapshot {
	a := make(map[ActionID]ActionState, len(actions))
	for id, st := range actions {
		a[id] = st
	}
	f := make([]Finger, len(fingers))
	copy(f, fingers)
	return Snapshot{tick: tick, time: t, actions: a, fingers: f, motion: motion}
}

// Tick returns the tick number, starting at 1 for the first ingested sample.
func (s Snapshot) Tick() uint64 { return s.tick }

// Time returns the snapshot timestamp.
func (s Snapshot) Time() time.Time { return s.time }

// Action returns the state of an action. Unknown actions report the zero state.
func (s Snapshot) Action(id ActionID) ActionState { return s.actions[id] }

// Actions returns the IDs of all actions in the snapshot, sorted.
func (s Snapshot) Actions() []ActionID {
	ids := make([]ActionID, 0, len(s.actions))
	for id := range s.actions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// JustPressed returns the actions whose press edge falls on this tick, sorted.
func (s Snapshot) JustPressed() []ActionID {
	var ids []ActionID
	for id, st := range s.actions {
		if st.JustPressed {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Fingers returns a copy of the finger slots.
func (s Snapshot) Fingers() []Finger {
	f := make([]Finger, len(s.fingers))
	copy(f, s.fingers)
	return f
}

// Finger returns the finger in the given slot.
func (s Snapshot) Finger(slot int) (Finger, bool) {
	if slot < 0 || slot >= len(s.fingers) {
		return Finger{}, false
	}
	return s.fingers[slot], true
}

// ActiveFingers returns the number of active touch contacts.
func (s Snapshot) ActiveFingers() int {
	n := 0
	for _, f := range s.fingers {
		if f.Active {
			n++
		}
	}
	return n
}

// Motion returns the motion reading. Motion.Valid is false when the
// sample carried no motion data.
func (s Snapshot) Motion() Motion { return s.motion }
