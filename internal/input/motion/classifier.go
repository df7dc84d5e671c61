// Package motion classifies calibrated gyroscope and accelerometer readings
// into discrete gestures: shake, flick, roll and tilt.
//
// The classifier keeps a low-pass estimate of gravity and works on the
// dynamic acceleration that remains after removing it. While the controller
// is at rest, shake, flick and roll accumulation is discarded. Tilt is
// judged from the gravity estimate alone and survives rest.
//
// At most one gesture is emitted per tick. When several are recognized on
// the same tick the priority is Shake, then Flick, then Roll, then Tilt; the
// others are dropped.
package motion

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/history"
	"github.com/dshills/padstorm/internal/input/sample"
)

// StandardGravity is the standard acceleration of gravity in m/s².
const StandardGravity = 9.81

// ErrInvalidConfig is returned when a motion configuration is rejected.
var ErrInvalidConfig = errors.New("invalid motion config")

// Config holds the motion thresholds. Angular rates are in rad/s,
// accelerations in m/s² and angles in radians.
type Config struct {
	// GyroDeadzone is the angular rate below which the controller may be at rest.
	GyroDeadzone float64

	// AccelDeadzone is the dynamic acceleration below which the controller
	// may be at rest.
	AccelDeadzone float64

	// GravityFilter is the low-pass coefficient of the gravity estimate, in (0, 1].
	GravityFilter float64

	ShakeThreshold float64
	ShakeWindow    time.Duration
	// ShakeReversals is the number of direction reversals within the window.
	ShakeReversals int

	FlickThreshold float64
	// FlickDecay is the fraction of FlickThreshold the rate must fall below.
	FlickDecay  float64
	FlickWindow time.Duration

	RollThreshold   float64
	RollMinDuration time.Duration

	TiltThreshold   float64
	TiltMinDuration time.Duration
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{
		GyroDeadzone:    0.01,
		AccelDeadzone:   0.3,
		GravityFilter:   0.1,
		ShakeThreshold:  3.0,
		ShakeWindow:     300 * time.Millisecond,
		ShakeReversals:  1,
		FlickThreshold:  5.0,
		FlickDecay:      0.5,
		FlickWindow:     150 * time.Millisecond,
		RollThreshold:   2.0,
		RollMinDuration: 200 * time.Millisecond,
		TiltThreshold:   0.35,
		TiltMinDuration: 250 * time.Millisecond,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	switch {
	case c.GyroDeadzone < 0 || c.AccelDeadzone < 0:
		return fmt.Errorf("%w: deadzones must not be negative", ErrInvalidConfig)
	case c.GravityFilter <= 0 || c.GravityFilter > 1:
		return fmt.Errorf("%w: gravity filter %v outside (0, 1]", ErrInvalidConfig, c.GravityFilter)
	case c.ShakeThreshold <= 0 || c.ShakeWindow <= 0 || c.ShakeReversals < 1:
		return fmt.Errorf("%w: shake thresholds must be positive", ErrInvalidConfig)
	case c.FlickThreshold <= 0 || c.FlickWindow <= 0:
		return fmt.Errorf("%w: flick thresholds must be positive", ErrInvalidConfig)
	case c.FlickDecay <= 0 || c.FlickDecay >= 1:
		return fmt.Errorf("%w: flick decay %v outside (0, 1)", ErrInvalidConfig, c.FlickDecay)
	case c.RollThreshold <= 0 || c.RollMinDuration <= 0:
		return fmt.Errorf("%w: roll thresholds must be positive", ErrInvalidConfig)
	case c.TiltThreshold <= 0 || c.TiltThreshold >= math.Pi || c.TiltMinDuration <= 0:
		return fmt.Errorf("%w: tilt thresholds out of range", ErrInvalidConfig)
	}
	return nil
}

// Classifier recognizes motion gestures.
//
// Classifier is not safe for concurrent use.
type Classifier struct {
	cfg Config

	gravity    sample.Vec3
	hasGravity bool
	neutral    sample.Vec3
	hasNeutral bool

	// shake
	lastPeak   time.Time
	peakDir    sample.Vec3
	reversals  []time.Time
	shakeFired bool

	// flick
	flicking   bool
	flickStart time.Time
	flickDir   sample.Vec3
	flickPeak  float64
	flickArmed bool

	// roll
	rollStart time.Time
	rollSign  float64
	rollFired bool

	// tilt
	tiltStart time.Time
	tiltFired bool
}

// NewClassifier creates a classifier.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{cfg: cfg, flickArmed: true}, nil
}

// Config returns the current thresholds.
func (c *Classifier) Config() Config { return c.cfg }

// SetConfig replaces the thresholds.
func (c *Classifier) SetConfig(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// SetNeutral sets the reference gravity direction for tilt. Without it the
// first gravity estimate taken at rest is used.
func (c *Classifier) SetNeutral(gravity sample.Vec3) {
	c.neutral = gravity
	c.hasNeutral = gravity.Len() > 0
	c.tiltStart = time.Time{}
	c.tiltFired = false
}

// Gravity returns the current gravity estimate.
func (c *Classifier) Gravity() (sample.Vec3, bool) { return c.gravity, c.hasGravity }

// Reset discards all accumulated state including the gravity estimate.
// The neutral orientation is kept.
func (c *Classifier) Reset() {
	c.gravity, c.hasGravity = sample.Vec3{}, false
	c.resetDynamic()
	c.tiltStart = time.Time{}
	c.tiltFired = false
}

func (c *Classifier) resetDynamic() {
	c.lastPeak = time.Time{}
	c.reversals = c.reversals[:0]
	c.shakeFired = false
	c.flicking = false
	c.flickArmed = true
	c.rollStart = time.Time{}
	c.rollFired = false
}

// Observe classifies the motion reading of a snapshot. Snapshots without
// motion data are ignored. The history reader is accepted for symmetry with
// the other detectors and may be nil.
func (c *Classifier) Observe(snap sample.Snapshot, _ history.Reader) []event.Event {
	m := snap.Motion()
	if !m.Valid {
		return nil
	}
	now := snap.Time()

	if !c.hasGravity {
		c.gravity, c.hasGravity = m.Accel, true
	} else {
		c.gravity = c.gravity.Add(m.Accel.Sub(c.gravity).Scale(c.cfg.GravityFilter))
	}
	dynamic := m.Accel.Sub(c.gravity)
	gyroMag := m.Gyro.Len()
	dynMag := dynamic.Len()

	shake, shakeOK := c.shake(now, dynamic, dynMag)
	flick, flickOK := c.flick(now, m.Gyro, gyroMag)
	roll, rollOK := c.roll(now, m.Gyro.Z)
	spiking := dynMag >= c.cfg.ShakeThreshold || gyroMag >= c.cfg.FlickThreshold
	tilt, tiltOK := c.tilt(now, spiking)

	if gyroMag < c.cfg.GyroDeadzone && dynMag < c.cfg.AccelDeadzone {
		// At rest: later ticks start from scratch.
		c.resetDynamic()
		if !c.hasNeutral && c.gravity.Len() > 0 {
			c.neutral, c.hasNeutral = c.gravity, true
		}
	}

	var ev event.Event
	switch {
	case shakeOK:
		ev = shake
	case flickOK:
		ev = flick
	case rollOK:
		ev = roll
	case tiltOK:
		ev = tilt
	default:
		return nil
	}
	ev.Source = event.SourceMotion
	ev.Tick = snap.Tick()
	ev.Time = now
	return []event.Event{ev}
}

// shake counts direction reversals of strong dynamic acceleration.
func (c *Classifier) shake(now time.Time, dynamic sample.Vec3, mag float64) (event.Event, bool) {
	window := c.cfg.ShakeWindow

	n := 0
	for _, r := range c.reversals {
		if now.Sub(r) <= window {
			c.reversals[n] = r
			n++
		}
	}
	c.reversals = c.reversals[:n]

	if !c.lastPeak.IsZero() && now.Sub(c.lastPeak) > window {
		// Burst ended.
		c.lastPeak = time.Time{}
		c.shakeFired = false
	}

	if mag < c.cfg.ShakeThreshold {
		return event.Event{}, false
	}

	dir := dynamic.Unit()
	if !c.lastPeak.IsZero() && c.peakDir.Dot(dir) < 0 {
		c.reversals = append(c.reversals, now)
	}
	c.lastPeak, c.peakDir = now, dir

	if c.shakeFired || len(c.reversals) < c.cfg.ShakeReversals {
		return event.Event{}, false
	}
	c.shakeFired = true
	c.flicking = false
	return event.Event{
		Kind:   event.Shake,
		Params: event.Params{Intensity: mag, Vector: dir},
	}, true
}

// flick looks for a short angular velocity spike that decays without
// reversing.
func (c *Classifier) flick(now time.Time, gyro sample.Vec3, mag float64) (event.Event, bool) {
	low := c.cfg.FlickThreshold * c.cfg.FlickDecay

	if !c.flicking {
		if !c.flickArmed {
			if mag < low {
				c.flickArmed = true
			}
			return event.Event{}, false
		}
		if mag >= c.cfg.FlickThreshold && !c.shakeFired {
			c.flicking = true
			c.flickArmed = false
			c.flickStart = now
			c.flickDir = gyro.Unit()
			c.flickPeak = mag
		}
		return event.Event{}, false
	}

	if now.Sub(c.flickStart) > c.cfg.FlickWindow || gyro.Dot(c.flickDir) < 0 {
		// Too slow to decay, or reversed: not a flick.
		c.flicking = false
		return event.Event{}, false
	}
	if mag > c.flickPeak {
		c.flickPeak = mag
	}
	if mag >= low {
		return event.Event{}, false
	}

	c.flicking = false
	c.flickArmed = true
	return event.Event{
		Kind: event.Flick,
		Params: event.Params{
			Duration:  now.Sub(c.flickStart),
			Intensity: c.flickPeak,
			Vector:    c.flickDir,
		},
	}, true
}

// roll looks for sustained rotation around the Z axis.
func (c *Classifier) roll(now time.Time, rate float64) (event.Event, bool) {
	if math.Abs(rate) < c.cfg.RollThreshold {
		c.rollStart = time.Time{}
		c.rollFired = false
		return event.Event{}, false
	}
	sign := math.Copysign(1, rate)
	if c.rollStart.IsZero() || sign != c.rollSign {
		c.rollStart = now
		c.rollSign = sign
		c.rollFired = false
		return event.Event{}, false
	}
	dur := now.Sub(c.rollStart)
	if c.rollFired || dur < c.cfg.RollMinDuration {
		return event.Event{}, false
	}
	c.rollFired = true
	return event.Event{
		Kind: event.Roll,
		Params: event.Params{
			Duration:  dur,
			Intensity: math.Abs(rate),
			Vector:    sample.Vec3{Z: sign},
		},
	}, true
}

// tilt looks for a sustained orientation away from neutral.
func (c *Classifier) tilt(now time.Time, spiking bool) (event.Event, bool) {
	if !c.hasNeutral {
		return event.Event{}, false
	}
	angle := c.gravity.AngleTo(c.neutral)
	if angle < c.cfg.TiltThreshold {
		c.tiltStart = time.Time{}
		c.tiltFired = false
		return event.Event{}, false
	}
	if spiking {
		c.tiltStart = time.Time{}
		return event.Event{}, false
	}
	if c.tiltStart.IsZero() {
		c.tiltStart = now
		return event.Event{}, false
	}
	dur := now.Sub(c.tiltStart)
	if c.tiltFired || dur < c.cfg.TiltMinDuration {
		return event.Event{}, false
	}
	c.tiltFired = true
	return event.Event{
		Kind: event.Tilt,
		Params: event.Params{
			Duration:  dur,
			Intensity: angle,
			Vector:    c.gravity.Sub(c.neutral).Unit(),
		},
	}, true
}
