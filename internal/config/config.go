package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/padstorm/internal/input"
	"github.com/dshills/padstorm/internal/input/combo"
	"github.com/dshills/padstorm/internal/input/mode"
	"github.com/dshills/padstorm/internal/input/motion"
	"github.com/dshills/padstorm/internal/input/sample"
)

// Config is the content of a padstorm configuration file.
type Config struct {
	LogLevel string `toml:"log_level"`

	Server  ServerConfig  `toml:"server"`
	Input   InputConfig   `toml:"input"`
	Chords  []ChordConfig `toml:"chords,omitempty"`
	Combos  []ComboConfig `toml:"combos,omitempty"`
	Machine MachineConfig `toml:"machine"`
}

// ServerConfig configures the WebSocket transport.
type ServerConfig struct {
	Listen       string   `toml:"listen"`
	Path         string   `toml:"path"`
	ReadLimit    int64    `toml:"read_limit"`
	WriteTimeout Duration `toml:"write_timeout"`
	PingInterval Duration `toml:"ping_interval"`
}

// InputConfig holds the detector thresholds.
type InputConfig struct {
	// Clash is the chord and combo clash strategy name.
	Clash string `toml:"clash"`
	// Calibration is a controller model name. Empty disables raw counts.
	Calibration string `toml:"calibration,omitempty"`

	Ingest   IngestConfig   `toml:"ingest"`
	History  HistoryConfig  `toml:"history"`
	Modifier ModifierConfig `toml:"modifier"`
	Touch    TouchConfig    `toml:"touch"`
	Motion   MotionConfig   `toml:"motion"`
}

// IngestConfig mirrors sample.Config.
type IngestConfig struct {
	AxisDeadzone       float64  `toml:"axis_deadzone"`
	AxisPressThreshold float64  `toml:"axis_press_threshold"`
	TouchSlots         int      `toml:"touch_slots"`
	Actions            []string `toml:"actions,omitempty"`
}

// HistoryConfig mirrors history.Config.
type HistoryConfig struct {
	Capacity int      `toml:"capacity"`
	MaxAge   Duration `toml:"max_age"`
}

// ModifierConfig mirrors modifier.Config.
type ModifierConfig struct {
	Hold            Duration `toml:"hold"`
	LongPress       Duration `toml:"long_press"`
	DoubleTapWindow Duration `toml:"double_tap_window"`
}

// TouchConfig mirrors touch.Config.
type TouchConfig struct {
	Slots              int      `toml:"slots"`
	TapMaxTravel       float64  `toml:"tap_max_travel"`
	TapMaxDuration     Duration `toml:"tap_max_duration"`
	SwipeMinDistance   float64  `toml:"swipe_min_distance"`
	SwipeMaxDuration   Duration `toml:"swipe_max_duration"`
	PinchJitter        float64  `toml:"pinch_jitter"`
	PinchThreshold     float64  `toml:"pinch_threshold"`
	TwoFingerTapWindow Duration `toml:"two_finger_tap_window"`
}

// MotionConfig mirrors motion.Config.
type MotionConfig struct {
	GyroDeadzone    float64  `toml:"gyro_deadzone"`
	AccelDeadzone   float64  `toml:"accel_deadzone"`
	GravityFilter   float64  `toml:"gravity_filter"`
	ShakeThreshold  float64  `toml:"shake_threshold"`
	ShakeWindow     Duration `toml:"shake_window"`
	ShakeReversals  int      `toml:"shake_reversals"`
	FlickThreshold  float64  `toml:"flick_threshold"`
	FlickDecay      float64  `toml:"flick_decay"`
	FlickWindow     Duration `toml:"flick_window"`
	RollThreshold   float64  `toml:"roll_threshold"`
	RollMinDuration Duration `toml:"roll_min_duration"`
	TiltThreshold   float64  `toml:"tilt_threshold"`
	TiltMinDuration Duration `toml:"tilt_min_duration"`
}

// ChordConfig defines a chord.
type ChordConfig struct {
	ID        string   `toml:"id"`
	Actions   []string `toml:"actions,omitempty"`
	Tolerance Duration `toml:"tolerance"`
	Contexts  []string `toml:"contexts,omitempty"`
}

// ComboConfig defines a combo. Each step lists the actions pressed together.
type ComboConfig struct {
	ID         string     `toml:"id"`
	Steps      [][]string `toml:"steps"`
	Window     Duration   `toml:"window"`
	StepWindow Duration   `toml:"step_window"`
	Tolerance  Duration   `toml:"tolerance"`
	Strict     bool       `toml:"strict"`
	Contexts   []string   `toml:"contexts,omitempty"`
}

// MachineConfig defines the input state machine.
type MachineConfig struct {
	Initial     string             `toml:"initial"`
	Transitions []TransitionConfig `toml:"transitions,omitempty"`
}

// TransitionConfig is one row of the state machine table.
//
// On is a trigger such as "tap:start", "shake" or "*:dash". Context lists
// key/value pairs that must all be set. Unless lists pairs of which none may
// be set. Lua is a boolean expression or chunk evaluated last.
type TransitionConfig struct {
	From    string            `toml:"from,omitempty"`
	On      string            `toml:"on"`
	To      string            `toml:"to"`
	Context map[string]string `toml:"context,omitempty"`
	Unless  map[string]string `toml:"unless,omitempty"`
	Lua     string            `toml:"lua,omitempty"`
}

var logLevels = []string{"debug", "info", "warn", "warning", "error"}

// Default returns the default configuration.
func Default() Config {
	in := input.DefaultConfig()
	return Config{
		LogLevel: "info",
		Server: ServerConfig{
			Listen:       "127.0.0.1:8765",
			Path:         "/ws",
			ReadLimit:    64 * 1024,
			WriteTimeout: Duration(defaultWriteTimeout),
			PingInterval: Duration(defaultPingInterval),
		},
		Input: InputConfig{
			Clash: in.Clash.String(),
			Ingest: IngestConfig{
				AxisDeadzone:       in.Ingest.AxisDeadzone,
				AxisPressThreshold: in.Ingest.AxisPressThreshold,
				TouchSlots:         in.Ingest.TouchSlots,
			},
			History: HistoryConfig{
				Capacity: in.History.Capacity,
				MaxAge:   Duration(in.History.MaxAge),
			},
			Modifier: ModifierConfig{
				Hold:            Duration(in.Modifier.HoldDuration),
				LongPress:       Duration(in.Modifier.LongPressDuration),
				DoubleTapWindow: Duration(in.Modifier.DoubleTapWindow),
			},
			Touch: TouchConfig{
				Slots:              in.Touch.Slots,
				TapMaxTravel:       in.Touch.TapMaxTravel,
				TapMaxDuration:     Duration(in.Touch.TapMaxDuration),
				SwipeMinDistance:   in.Touch.SwipeMinDistance,
				SwipeMaxDuration:   Duration(in.Touch.SwipeMaxDuration),
				PinchJitter:        in.Touch.PinchJitter,
				PinchThreshold:     in.Touch.PinchThreshold,
				TwoFingerTapWindow: Duration(in.Touch.TwoFingerTapWindow),
			},
			Motion: MotionConfig{
				GyroDeadzone:    in.Motion.GyroDeadzone,
				AccelDeadzone:   in.Motion.AccelDeadzone,
				GravityFilter:   in.Motion.GravityFilter,
				ShakeThreshold:  in.Motion.ShakeThreshold,
				ShakeWindow:     Duration(in.Motion.ShakeWindow),
				ShakeReversals:  in.Motion.ShakeReversals,
				FlickThreshold:  in.Motion.FlickThreshold,
				FlickDecay:      in.Motion.FlickDecay,
				FlickWindow:     Duration(in.Motion.FlickWindow),
				RollThreshold:   in.Motion.RollThreshold,
				RollMinDuration: Duration(in.Motion.RollMinDuration),
				TiltThreshold:   in.Motion.TiltThreshold,
				TiltMinDuration: Duration(in.Motion.TiltMinDuration),
			},
		},
		Machine: MachineConfig{Initial: string(input.DefaultState)},
	}
}

// Validate checks the whole configuration and returns every problem found,
// joined.
func (c Config) Validate() error {
	_, err := c.build()
	return err
}

// InputConfig converts the file into a handler configuration.
func (c Config) InputConfig() (input.Config, error) {
	return c.build()
}

func (c Config) build() (input.Config, error) {
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if !containsFold(logLevels, c.LogLevel) {
		add(&ValidationError{Path: "log_level", Message: "unknown level", Value: c.LogLevel})
	}
	if strings.TrimSpace(c.Server.Listen) == "" {
		add(&ValidationError{Path: "server.listen", Message: "must not be empty"})
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		add(&ValidationError{Path: "server.path", Message: "must start with /", Value: c.Server.Path})
	}
	if c.Server.ReadLimit <= 0 {
		add(&ValidationError{Path: "server.read_limit", Message: "must be positive", Value: c.Server.ReadLimit})
	}
	if c.Server.WriteTimeout <= 0 {
		add(&ValidationError{Path: "server.write_timeout", Message: "must be positive", Value: c.Server.WriteTimeout})
	}
	if c.Server.PingInterval < 0 {
		add(&ValidationError{Path: "server.ping_interval", Message: "must not be negative", Value: c.Server.PingInterval})
	}

	cfg := c.Input.convert()

	clash, err := combo.ParseClashStrategy(c.Input.Clash)
	if err != nil {
		add(invalid("input.clash", c.Input.Clash, err))
	}
	cfg.Clash = clash

	if c.Input.Calibration != "" {
		cal, err := motion.Preset(c.Input.Calibration)
		if err != nil {
			add(invalid("input.calibration", c.Input.Calibration, err))
		} else {
			cfg.Calibration = &cal
		}
	}

	ids := make(map[string]string)
	claim := func(path, id string) {
		if prev, ok := ids[id]; ok && id != "" {
			add(&ValidationError{Path: path + ".id", Message: "duplicate of " + prev, Value: id})
			return
		}
		ids[id] = path
	}
	for i, ch := range c.Chords {
		path := fmt.Sprintf("chords[%d]", i)
		claim(path, ch.ID)
		p := combo.NewChord(ch.ID, ch.Tolerance.D(), actionIDs(ch.Actions)...)
		p.Contexts = ch.Contexts
		if err := p.Validate(); err != nil {
			add(invalid(path, ch.ID, err))
			continue
		}
		cfg.Patterns = append(cfg.Patterns, p)
	}
	for i, co := range c.Combos {
		path := fmt.Sprintf("combos[%d]", i)
		claim(path, co.ID)
		steps := make([]combo.Step, len(co.Steps))
		for j, s := range co.Steps {
			steps[j] = combo.Together(actionIDs(s)...)
		}
		p := combo.NewCombo(co.ID, co.Window.D(), steps...)
		p.StepWindow = co.StepWindow.D()
		p.Tolerance = co.Tolerance.D()
		p.Strict = co.Strict
		p.Contexts = co.Contexts
		if err := p.Validate(); err != nil {
			add(invalid(path, co.ID, err))
			continue
		}
		cfg.Patterns = append(cfg.Patterns, p)
	}

	machine, err := c.Machine.convert()
	add(err)
	cfg.Machine = machine

	if len(errs) == 0 {
		add(cfg.Validate())
	}
	if len(errs) > 0 {
		return input.Config{}, errors.Join(errs...)
	}
	return cfg, nil
}

func (ic InputConfig) convert() input.Config {
	cfg := input.DefaultConfig()
	cfg.Ingest = sample.Config{
		AxisDeadzone:       ic.Ingest.AxisDeadzone,
		AxisPressThreshold: ic.Ingest.AxisPressThreshold,
		TouchSlots:         ic.Ingest.TouchSlots,
		Actions:            actionIDs(ic.Ingest.Actions),
	}
	cfg.History.Capacity = ic.History.Capacity
	cfg.History.MaxAge = ic.History.MaxAge.D()

	cfg.Modifier.HoldDuration = ic.Modifier.Hold.D()
	cfg.Modifier.LongPressDuration = ic.Modifier.LongPress.D()
	cfg.Modifier.DoubleTapWindow = ic.Modifier.DoubleTapWindow.D()

	t := ic.Touch
	cfg.Touch.Slots = t.Slots
	cfg.Touch.TapMaxTravel = t.TapMaxTravel
	cfg.Touch.TapMaxDuration = t.TapMaxDuration.D()
	cfg.Touch.SwipeMinDistance = t.SwipeMinDistance
	cfg.Touch.SwipeMaxDuration = t.SwipeMaxDuration.D()
	cfg.Touch.PinchJitter = t.PinchJitter
	cfg.Touch.PinchThreshold = t.PinchThreshold
	cfg.Touch.TwoFingerTapWindow = t.TwoFingerTapWindow.D()

	m := ic.Motion
	cfg.Motion.GyroDeadzone = m.GyroDeadzone
	cfg.Motion.AccelDeadzone = m.AccelDeadzone
	cfg.Motion.GravityFilter = m.GravityFilter
	cfg.Motion.ShakeThreshold = m.ShakeThreshold
	cfg.Motion.ShakeWindow = m.ShakeWindow.D()
	cfg.Motion.ShakeReversals = m.ShakeReversals
	cfg.Motion.FlickThreshold = m.FlickThreshold
	cfg.Motion.FlickDecay = m.FlickDecay
	cfg.Motion.FlickWindow = m.FlickWindow.D()
	cfg.Motion.RollThreshold = m.RollThreshold
	cfg.Motion.RollMinDuration = m.RollMinDuration.D()
	cfg.Motion.TiltThreshold = m.TiltThreshold
	cfg.Motion.TiltMinDuration = m.TiltMinDuration.D()
	return cfg
}

func (mc MachineConfig) convert() (input.MachineConfig, error) {
	out := input.MachineConfig{Initial: mode.State(mc.Initial)}
	if mc.Initial == "" {
		return out, &ValidationError{Path: "machine.initial", Message: "must not be empty", Err: mode.ErrEmptyState}
	}

	var errs []error
	for i, tc := range mc.Transitions {
		path := fmt.Sprintf("machine.transitions[%d]", i)
		if tc.To == "" {
			errs = append(errs, &ValidationError{Path: path + ".to", Message: "must not be empty", Err: mode.ErrEmptyState})
			continue
		}
		trigger, err := mode.ParseTrigger(tc.On)
		if err != nil {
			errs = append(errs, invalid(path+".on", tc.On, err))
			continue
		}
		guard, err := tc.guard(path)
		if err != nil {
			errs = append(errs, invalid(path+".lua", tc.Lua, err))
			continue
		}
		out.Transitions = append(out.Transitions, input.Transition{
			From:    mode.State(tc.From),
			Trigger: trigger,
			Guard:   guard,
			To:      mode.State(tc.To),
		})
	}
	return out, errors.Join(errs...)
}

func (tc TransitionConfig) guard(name string) (mode.Guard, error) {
	var parts []mode.Guard
	for _, k := range sortedKeys(tc.Context) {
		parts = append(parts, mode.Equals(k, tc.Context[k]))
	}
	for _, k := range sortedKeys(tc.Unless) {
		parts = append(parts, mode.Not(mode.Equals(k, tc.Unless[k])))
	}
	if tc.Lua != "" {
		g, err := mode.Lua(name, tc.Lua)
		if err != nil {
			return mode.Guard{}, err
		}
		parts = append(parts, g)
	}

	switch len(parts) {
	case 0:
		return mode.Always(), nil
	case 1:
		return parts[0], nil
	default:
		return mode.And(parts...), nil
	}
}

func actionIDs(names []string) []sample.ActionID {
	if len(names) == 0 {
		return nil
	}
	ids := make([]sample.ActionID, len(names))
	for i, n := range names {
		ids[i] = sample.ActionID(n)
	}
	return ids
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
