package input

import (
	"errors"
	"fmt"

	"github.com/dshills/padstorm/internal/input/combo"
	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/history"
	"github.com/dshills/padstorm/internal/input/mode"
	"github.com/dshills/padstorm/internal/input/modifier"
	"github.com/dshills/padstorm/internal/input/motion"
	"github.com/dshills/padstorm/internal/input/sample"
	"github.com/dshills/padstorm/internal/input/touch"
)

// DefaultState is the initial state of a machine with no configuration.
const DefaultState mode.State = "default"

// Config configures a Handler.
type Config struct {
	Ingest   sample.Config
	History  history.Config
	Modifier modifier.Config
	Touch    touch.Config
	Motion   motion.Config

	// Clash resolves overlapping chord and combo matches.
	Clash combo.ClashStrategy

	// Patterns are registered in order. Registration order matters for
	// the FirstRegistered clash strategy.
	Patterns []combo.Pattern

	Machine MachineConfig

	// Calibration converts raw motion counts. Nil ignores counts.
	Calibration *motion.Calibration
}

// MachineConfig describes the input state machine.
type MachineConfig struct {
	Initial     mode.State
	Transitions []Transition
}

// Transition is one row of the state machine table.
type Transition struct {
	// From is the source state. Empty means any state.
	From    mode.State
	Trigger mode.Trigger
	Guard   mode.Guard
	To      mode.State
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Ingest:   sample.DefaultConfig(),
		History:  history.DefaultConfig(),
		Modifier: modifier.DefaultConfig(),
		Touch:    touch.DefaultConfig(),
		Motion:   motion.DefaultConfig(),
		Clash:    combo.Longest,
		Machine:  MachineConfig{Initial: DefaultState},
	}
}

// Validate checks every section and returns all problems joined.
func (c Config) Validate() error {
	var errs []error
	wrap := func(section string, err error) {
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", section, err))
		}
	}

	wrap("ingest", c.Ingest.Validate())
	wrap("history", c.History.Validate())
	wrap("modifier", c.Modifier.Validate())
	wrap("touch", c.Touch.Validate())
	wrap("motion", c.Motion.Validate())
	if c.Touch.Slots > c.Ingest.TouchSlots {
		wrap("touch", fmt.Errorf("%d tracked slots exceed %d ingested slots", c.Touch.Slots, c.Ingest.TouchSlots))
	}

	if _, err := c.newCombos(); err != nil {
		wrap("patterns", err)
	}
	wrap("machine", c.Machine.Validate())

	return errors.Join(errs...)
}

// Validate checks the state machine table.
func (mc MachineConfig) Validate() error {
	if mc.Initial == "" {
		return fmt.Errorf("initial state: %w", mode.ErrEmptyState)
	}
	for i, t := range mc.Transitions {
		if t.To == "" {
			return fmt.Errorf("transition %d: target: %w", i, mode.ErrEmptyState)
		}
		if t.Trigger.Kind == event.KindNone && t.Trigger.Name == "" {
			return fmt.Errorf("transition %d: empty trigger", i)
		}
	}
	return nil
}

// build creates a machine from the table.
func (mc MachineConfig) build() *mode.Machine {
	m := mode.NewMachine(mc.Initial)
	for _, t := range mc.Transitions {
		if t.From == "" {
			m.AddGlobal(t.Trigger, t.Guard, t.To)
		} else {
			m.Add(t.From, t.Trigger, t.Guard, t.To)
		}
	}
	return m
}

func (c Config) newCombos() (*combo.Detector, error) {
	d := combo.NewDetector(c.Clash)
	for _, p := range c.Patterns {
		if err := d.Register(p); err != nil {
			return nil, err
		}
	}
	return d, nil
}
