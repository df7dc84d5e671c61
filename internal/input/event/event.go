// Package event defines the discrete events produced by the input engine.
//
// Every detector emits the same Event value type. The Kind says what was
// recognized, the Source says which detector recognized it, and Params
// carries the kind-specific measurements (durations, positions, scales,
// intensities). Events are plain values delivered in tick order; nothing
// holds on to them after a tick completes.
package event

import (
	"fmt"
	"strings"
	"time"

	"github.com/dshills/padstorm/internal/input/sample"
)

// Kind identifies what an event represents.
type Kind uint8

const (
	// KindNone is the zero kind and never emitted.
	KindNone Kind = iota

	// Tap is a short press and release.
	Tap
	// Hold is a press held past the hold threshold.
	Hold
	// DoubleTap is a second tap shortly after a first one.
	DoubleTap
	// LongPress is a press held past the long-press threshold.
	LongPress
	// Released follows every release edge.
	Released

	// Chord is a set of actions pressed together.
	Chord
	// Combo is an ordered sequence of presses.
	Combo

	// TouchTap is a short stationary touch.
	TouchTap
	// TwoFingerTap is two concurrent touches that both tap.
	TwoFingerTap
	// SwipeLeft is a fast leftward touch movement.
	SwipeLeft
	// SwipeRight is a fast rightward touch movement.
	SwipeRight
	// SwipeUp is a fast upward touch movement.
	SwipeUp
	// SwipeDown is a fast downward touch movement.
	SwipeDown
	// PinchIn is two fingers moving together.
	PinchIn
	// PinchOut is two fingers moving apart.
	PinchOut

	// Shake is a burst of alternating acceleration.
	Shake
	// Flick is a short angular velocity spike.
	Flick
	// Roll is sustained rotation around the forward axis.
	Roll
	// Tilt is a sustained orientation change away from neutral.
	Tilt

	// StateChanged reports an input state machine transition.
	StateChanged
)

var kindNames = [...]string{
	KindNone:     "none",
	Tap:          "tap",
	Hold:         "hold",
	DoubleTap:    "double_tap",
	LongPress:    "long_press",
	Released:     "released",
	Chord:        "chord",
	Combo:        "combo",
	TouchTap:     "touch_tap",
	TwoFingerTap: "two_finger_tap",
	SwipeLeft:    "swipe_left",
	SwipeRight:   "swipe_right",
	SwipeUp:      "swipe_up",
	SwipeDown:    "swipe_down",
	PinchIn:      "pinch_in",
	PinchOut:     "pinch_out",
	Shake:        "shake",
	Flick:        "flick",
	Roll:         "roll",
	Tilt:         "tilt",
	StateChanged: "state_changed",
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind parses a kind name as produced by String.
// Hyphens are accepted in place of underscores.
func ParseKind(s string) (Kind, error) {
	name := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for k, n := range kindNames {
		if k != int(KindNone) && n == name {
			return Kind(k), nil
		}
	}
	return KindNone, fmt.Errorf("unknown event kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Source identifies the detector that produced an event.
type Source uint8

const (
	// SourceModifier is the tap/hold/long-press detector.
	SourceModifier Source = iota + 1
	// SourceCombo is the chord and combo detector.
	SourceCombo
	// SourceTouch is the touch gesture tracker.
	SourceTouch
	// SourceMotion is the motion gesture classifier.
	SourceMotion
	// SourceMachine is the input state machine.
	SourceMachine
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceModifier:
		return "modifier"
	case SourceCombo:
		return "combo"
	case SourceTouch:
		return "touch"
	case SourceMotion:
		return "motion"
	case SourceMachine:
		return "machine"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Source) UnmarshalText(b []byte) error {
	for c := SourceModifier; c <= SourceMachine; c++ {
		if c.String() == string(b) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown event source %q", b)
}

// Params holds kind-specific measurements. Fields that do not apply to a
// kind are left zero.
type Params struct {
	// Duration is the press, gesture or pattern duration.
	Duration time.Duration `json:"duration,omitempty"`

	// Position is the touch position, or the pinch midpoint.
	Position sample.Vec2 `json:"position"`

	// Delta is the net touch displacement.
	Delta sample.Vec2 `json:"delta"`

	// Velocity is the average touch velocity in units per second.
	Velocity sample.Vec2 `json:"velocity"`

	// Scale is the pinch distance ratio relative to the trend start.
	Scale float64 `json:"scale,omitempty"`

	// Intensity is the motion peak magnitude, or the tilt angle in radians.
	Intensity float64 `json:"intensity,omitempty"`

	// Vector is the motion direction.
	Vector sample.Vec3 `json:"vector"`

	// From and To are the states of a StateChanged event.
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Event is one recognized input event.
//
// The slices of an emitted event are owned by the event and must not be
// modified by receivers.
type Event struct {
	Kind   Kind      `json:"kind"`
	Source Source    `json:"source"`
	Tick   uint64    `json:"tick"`
	Time   time.Time `json:"time"`

	// Action is the action of a modifier event.
	Action sample.ActionID `json:"action,omitempty"`

	// Pattern is the ID of the chord or combo that matched.
	Pattern string `json:"pattern,omitempty"`

	// Actions lists the actions involved in a chord or combo.
	Actions []sample.ActionID `json:"actions,omitempty"`

	// Slots lists the touch slots involved in a touch gesture.
	Slots []int `json:"slots,omitempty"`

	Params Params `json:"params"`
}

// String returns a compact description for logs.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	switch {
	case e.Action != "":
		fmt.Fprintf(&b, "(%s)", e.Action)
	case e.Pattern != "":
		fmt.Fprintf(&b, "(%s)", e.Pattern)
	case e.Kind == StateChanged:
		fmt.Fprintf(&b, "(%s->%s)", e.Params.From, e.Params.To)
	}
	fmt.Fprintf(&b, "@%d", e.Tick)
	return b.String()
}

// IsModifier reports whether the kind is produced by the modifier detector.
func (k Kind) IsModifier() bool { return k >= Tap && k <= Released }

// IsTouch reports whether the kind is a touch gesture.
func (k Kind) IsTouch() bool { return k >= TouchTap && k <= PinchOut }

// IsMotion reports whether the kind is a motion gesture.
func (k Kind) IsMotion() bool { return k >= Shake && k <= Tilt }
