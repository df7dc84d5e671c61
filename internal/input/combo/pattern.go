package combo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/padstorm/internal/input/sample"
)

// Pattern validation errors.
var (
	ErrEmptyID          = errors.New("pattern id is empty")
	ErrDuplicateID      = errors.New("pattern id already registered")
	ErrTooFewActions    = errors.New("chord needs at least two distinct actions")
	ErrNoSteps          = errors.New("combo needs at least one step")
	ErrEmptyStep        = errors.New("combo step has no actions")
	ErrDuplicateAction  = errors.New("action repeated within a chord")
	ErrInvalidWindow    = errors.New("combo window must be positive")
	ErrInvalidTolerance = errors.New("chord tolerance must not be negative")
	ErrUnknownPattern   = errors.New("unknown pattern")
)

// PatternError reports why a pattern was rejected.
type PatternError struct {
	ID  string
	Err error
}

// Error implements the error interface.
func (e *PatternError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("pattern: %v", e.Err)
	}
	return fmt.Sprintf("pattern %q: %v", e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *PatternError) Unwrap() error { return e.Err }

// Kind distinguishes chords from combos.
type Kind uint8

const (
	// KindChord is a set of actions pressed together.
	KindChord Kind = iota + 1
	// KindCombo is an ordered sequence of steps.
	KindCombo
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindChord:
		return "chord"
	case KindCombo:
		return "combo"
	default:
		return "unknown"
	}
}

// Step is one element of a combo. A step with one action is a single press;
// a step with several actions is a chord step whose members must be pressed
// within the pattern tolerance.
type Step []sample.ActionID

// Press returns a single-action step.
func Press(a sample.ActionID) Step { return Step{a} }

// Together returns a chord step.
func Together(actions ...sample.ActionID) Step { return Step(actions) }

// String renders the step as "a" or "a+b".
func (s Step) String() string {
	parts := make([]string, len(s))
	for i, a := range s {
		parts[i] = string(a)
	}
	return strings.Join(parts, "+")
}

func (s Step) contains(a sample.ActionID) bool {
	for _, m := range s {
		if m == a {
			return true
		}
	}
	return false
}

// Pattern describes a chord or a combo.
type Pattern struct {
	// ID uniquely identifies the pattern.
	ID string

	// Kind is KindChord or KindCombo.
	Kind Kind

	// Actions are the chord members. Only used by chords.
	Actions []sample.ActionID

	// Steps are the combo steps in order. Only used by combos.
	Steps []Step

	// Tolerance is the maximum spread between the press edges of the members
	// of a chord, or of a chord step. Zero means same tick.
	Tolerance time.Duration

	// Window is the maximum time from the first step to the last step.
	Window time.Duration

	// StepWindow is the maximum time between consecutive steps.
	// Zero means Window.
	StepWindow time.Duration

	// Strict resets a combo whenever an action outside the expected step is
	// pressed.
	Strict bool

	// Contexts limits the pattern to the named input states. Empty means
	// active in every state.
	Contexts []string
}

// NewChord returns a chord pattern.
func NewChord(id string, tolerance time.Duration, actions ...sample.ActionID) Pattern {
	return Pattern{ID: id, Kind: KindChord, Actions: actions, Tolerance: tolerance}
}

// NewCombo returns a combo pattern.
func NewCombo(id string, window time.Duration, steps ...Step) Pattern {
	return Pattern{ID: id, Kind: KindCombo, Steps: steps, Window: window}
}

// Validate checks the pattern.
func (p Pattern) Validate() error {
	wrap := func(err error) error { return &PatternError{ID: p.ID, Err: err} }

	if strings.TrimSpace(p.ID) == "" {
		return wrap(ErrEmptyID)
	}
	if p.Tolerance < 0 {
		return wrap(ErrInvalidTolerance)
	}

	switch p.Kind {
	case KindChord:
		if err := validateMembers(p.Actions); err != nil {
			return wrap(err)
		}
	case KindCombo:
		if len(p.Steps) == 0 {
			return wrap(ErrNoSteps)
		}
		for i, s := range p.Steps {
			if len(s) == 0 {
				return wrap(fmt.Errorf("step %d: %w", i, ErrEmptyStep))
			}
			if len(s) > 1 {
				if err := validateMembers(s); err != nil {
					return wrap(fmt.Errorf("step %d: %w", i, err))
				}
			}
			for _, a := range s {
				if a == "" {
					return wrap(fmt.Errorf("step %d: %w", i, ErrEmptyStep))
				}
			}
		}
		if p.Window <= 0 {
			return wrap(ErrInvalidWindow)
		}
		if p.StepWindow < 0 {
			return wrap(ErrInvalidWindow)
		}
	default:
		return wrap(fmt.Errorf("unknown pattern kind %d", p.Kind))
	}
	return nil
}

func validateMembers(actions []sample.ActionID) error {
	if len(actions) < 2 {
		return ErrTooFewActions
	}
	seen := make(map[sample.ActionID]bool, len(actions))
	for _, a := range actions {
		if a == "" {
			return ErrTooFewActions
		}
		if seen[a] {
			return fmt.Errorf("%w: %s", ErrDuplicateAction, a)
		}
		seen[a] = true
	}
	return nil
}

// steps returns the pattern as steps; a chord is a single chord step.
func (p Pattern) steps() []Step {
	if p.Kind == KindChord {
		return []Step{Step(p.Actions)}
	}
	return p.Steps
}

// finalStep returns the actions whose presses complete the pattern.
func (p Pattern) finalStep() Step {
	s := p.steps()
	return s[len(s)-1]
}

// actionCount returns the total number of actions across all steps.
func (p Pattern) actionCount() int {
	n := 0
	for _, s := range p.steps() {
		n += len(s)
	}
	return n
}

// allActions flattens the steps.
func (p Pattern) allActions() []sample.ActionID {
	out := make([]sample.ActionID, 0, p.actionCount())
	for _, s := range p.steps() {
		out = append(out, s...)
	}
	return out
}

func (p Pattern) stepWindow() time.Duration {
	if p.StepWindow > 0 {
		return p.StepWindow
	}
	return p.Window
}

func (p Pattern) activeIn(context string) bool {
	if len(p.Contexts) == 0 {
		return true
	}
	for _, c := range p.Contexts {
		if c == context {
			return true
		}
	}
	return false
}

// clone deep-copies the slices so registered patterns cannot be mutated by
// the caller.
func (p Pattern) clone() Pattern {
	c := p
	c.Actions = append([]sample.ActionID(nil), p.Actions...)
	c.Steps = make([]Step, len(p.Steps))
	for i, s := range p.Steps {
		c.Steps[i] = append(Step(nil), s...)
	}
	c.Contexts = append([]string(nil), p.Contexts...)
	return c
}
