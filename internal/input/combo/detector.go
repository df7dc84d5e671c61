// Package combo recognizes chords and ordered combos.
//
// A chord is a set of actions pressed together, within a tolerance. A combo
// is an ordered list of steps that must be completed within a window; a step
// is either a single press or a chord. Each registered pattern owns a cursor
// that advances as matching presses arrive and resets lazily when its window
// runs out.
//
// Completions found on one tick are resolved in a single place. Patterns
// whose final presses overlap are grouped, and the configured ClashStrategy
// chooses which of them fire. Every pattern of a resolved group resets,
// winner or not.
//
// A completed pattern fires immediately. The detector never waits to see
// whether a longer pattern sharing the same prefix will also complete, and
// a pattern that already fired is never extended afterwards.
package combo

import (
	"fmt"
	"time"

	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/history"
	"github.com/dshills/padstorm/internal/input/sample"
)

// cursor is the progress of one pattern.
type cursor struct {
	// next is the index of the next expected step.
	next  int
	first time.Time
	last  time.Time

	// at holds the time each matched step completed.
	at []time.Time

	// latched is set after a chord fires and cleared when any member is
	// released.
	latched bool
}

func (c *cursor) reset() {
	c.next = 0
	c.first = time.Time{}
	c.last = time.Time{}
	c.at = c.at[:0]
}

// advance records a matched step.
func (c *cursor) advance(now time.Time) {
	if c.next == 0 {
		c.first = now
	}
	c.last = now
	c.at = append(c.at[:c.next], now)
	c.next++
}

type entry struct {
	p     Pattern
	order int
	cur   cursor
}

// Detector matches registered chords and combos against snapshots.
//
// Detector is not safe for concurrent use.
type Detector struct {
	entries   []*entry
	byID      map[string]*entry
	strategy  ClashStrategy
	context   string
	nextOrder int

	// pressed holds the press edge time of every held action.
	pressed map[sample.ActionID]time.Time

	timeouts uint64
}

// NewDetector creates a detector with the given clash strategy.
func NewDetector(strategy ClashStrategy) *Detector {
	return &Detector{
		byID:     make(map[string]*entry),
		pressed:  make(map[sample.ActionID]time.Time),
		strategy: strategy,
	}
}

// Register adds a pattern. Patterns are resolved in registration order.
func (d *Detector) Register(p Pattern) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if _, exists := d.byID[p.ID]; exists {
		return &PatternError{ID: p.ID, Err: ErrDuplicateID}
	}

	e := &entry{p: p.clone(), order: d.nextOrder}
	d.nextOrder++
	d.entries = append(d.entries, e)
	d.byID[p.ID] = e
	return nil
}

// Unregister removes a pattern by ID.
func (d *Detector) Unregister(id string) error {
	e, ok := d.byID[id]
	if !ok {
		return &PatternError{ID: id, Err: ErrUnknownPattern}
	}
	delete(d.byID, id)
	for i, x := range d.entries {
		if x == e {
			d.entries = append(d.entries[:i], d.entries[i+1:]...)
			break
		}
	}
	return nil
}

// Clear removes every pattern.
func (d *Detector) Clear() {
	d.entries = nil
	d.byID = make(map[string]*entry)
}

// Patterns returns copies of the registered patterns in registration order.
func (d *Detector) Patterns() []Pattern {
	out := make([]Pattern, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.p.clone()
	}
	return out
}

// Strategy returns the clash strategy.
func (d *Detector) Strategy() ClashStrategy { return d.strategy }

// SetStrategy changes the clash strategy.
func (d *Detector) SetStrategy(s ClashStrategy) { d.strategy = s }

// Context returns the active context name.
func (d *Detector) Context() string { return d.context }

// SetContext selects which context-gated patterns are active. Patterns that
// become inactive lose their progress.
func (d *Detector) SetContext(name string) {
	if name == d.context {
		return
	}
	d.context = name
	for _, e := range d.entries {
		if !e.p.activeIn(name) {
			e.cur = cursor{}
		}
	}
}

// Reset clears every cursor. Press times of held actions are kept.
func (d *Detector) Reset() {
	for _, e := range d.entries {
		e.cur = cursor{}
	}
}

// InheritPresses copies the press times of held actions from another
// detector, so a replacement detector can match chords whose members were
// pressed before it was built.
func (d *Detector) InheritPresses(from *Detector) {
	for a, t := range from.pressed {
		d.pressed[a] = t
	}
}

// Timeouts returns how many combo cursors were reset because a window ran out.
func (d *Detector) Timeouts() uint64 { return d.timeouts }

// Progress returns the index of the next expected step of a pattern.
func (d *Detector) Progress(id string) (int, bool) {
	e, ok := d.byID[id]
	if !ok {
		return 0, false
	}
	return e.cur.next, true
}

// Observe advances every active pattern with the snapshot and returns the
// chord and combo events of this tick.
func (d *Detector) Observe(snap sample.Snapshot, hist history.Reader) []event.Event {
	presses := snap.JustPressed()
	d.trackPresses(snap)

	var cands []*entry
	for _, e := range d.entries {
		if !e.p.activeIn(d.context) {
			continue
		}
		var done bool
		if e.p.Kind == KindChord {
			done = d.advanceChord(e, snap, hist)
		} else {
			done = d.advanceCombo(e, snap, hist, presses)
		}
		if done {
			cands = append(cands, e)
		}
	}

	if len(cands) == 0 {
		return nil
	}

	winners := resolve(d.strategy, cands)
	out := make([]event.Event, 0, len(winners))
	for _, e := range winners {
		out = append(out, d.fire(e, snap, hist))
	}

	for _, e := range cands {
		e.cur.reset()
		if e.p.Kind == KindChord {
			e.cur.latched = true
		}
	}
	return out
}

// advanceChord reports whether a chord completed on this tick.
func (d *Detector) advanceChord(e *entry, snap sample.Snapshot, hist history.Reader) bool {
	if e.cur.latched {
		for _, a := range e.p.Actions {
			if !snap.Action(a).Pressed {
				e.cur.latched = false
				break
			}
		}
		if e.cur.latched {
			return false
		}
	}
	_, ok := d.stepSpread(Step(e.p.Actions), e.p.Tolerance, snap, hist)
	return ok
}

// trackPresses records press edges and forgets released actions.
func (d *Detector) trackPresses(snap sample.Snapshot) {
	for _, a := range snap.Actions() {
		st := snap.Action(a)
		switch {
		case st.JustPressed:
			d.pressed[a] = snap.Time()
		case !st.Pressed:
			delete(d.pressed, a)
		}
	}
}

// pressStart returns when a held action was pressed. Presses that began
// before the detector existed are looked up in the history.
func (d *Detector) pressStart(a sample.ActionID, hist history.Reader) (time.Time, bool) {
	if t, ok := d.pressed[a]; ok {
		return t, true
	}
	if hist == nil {
		return time.Time{}, false
	}
	return hist.PressStart(a)
}

// advanceCombo moves the cursor of a combo and reports completion.
func (d *Detector) advanceCombo(e *entry, snap sample.Snapshot, hist history.Reader, presses []sample.ActionID) bool {
	c := &e.cur
	now := snap.Time()
	steps := e.p.Steps

	if c.next > 0 && (now.Sub(c.first) > e.p.Window || now.Sub(c.last) > e.p.stepWindow()) {
		c.reset()
		d.timeouts++
	}
	if len(presses) == 0 {
		return false
	}

	if d.stepMatches(e, steps[c.next], snap, hist, presses) {
		c.advance(now)
		return c.next == len(steps)
	}

	if c.next > 0 {
		if d.fallBack(e, snap, hist, presses) {
			return c.next == len(steps)
		}
		if e.p.Strict && unexpected(steps[c.next], presses) {
			c.reset()
		}
	}
	return false
}

// fallBack keeps the longest partial match that is still possible after an
// unexpected step. The steps matched so far are the pattern's own prefix, so
// the candidate is the longest suffix of that prefix which is also a prefix
// of the pattern and is followed by the press of this tick. For [A A B] fed
// A A A, the third A keeps two steps matched instead of restarting.
func (d *Detector) fallBack(e *entry, snap sample.Snapshot, hist history.Reader, presses []sample.ActionID) bool {
	c := &e.cur
	now := snap.Time()
	steps := e.p.Steps

	for j := c.next - 1; j >= 0; j-- {
		start := c.next - j
		if !samePrefix(steps, start, j) {
			continue
		}
		first := now
		if j > 0 {
			first = c.at[start]
		}
		if now.Sub(first) > e.p.Window {
			continue
		}
		if !d.stepMatches(e, steps[j], snap, hist, presses) {
			continue
		}
		kept := append([]time.Time(nil), c.at[start:c.next]...)
		c.reset()
		for _, t := range kept {
			c.advance(t)
		}
		c.advance(now)
		return true
	}
	return false
}

// samePrefix reports whether steps[start:start+n] equals steps[:n].
func samePrefix(steps []Step, start, n int) bool {
	for i := 0; i < n; i++ {
		if !sameStep(steps[start+i], steps[i]) {
			return false
		}
	}
	return true
}

func sameStep(a, b Step) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		if !b.contains(x) {
			return false
		}
	}
	return true
}

// stepMatches reports whether a step completes on this tick.
func (d *Detector) stepMatches(e *entry, s Step, snap sample.Snapshot, hist history.Reader, presses []sample.ActionID) bool {
	if len(s) == 1 {
		for _, a := range presses {
			if a == s[0] {
				return true
			}
		}
		return false
	}
	_, ok := d.stepSpread(s, e.p.Tolerance, snap, hist)
	return ok
}

// stepSpread checks that every member of a chord step is down, at least one
// was pressed on this tick, and the spread of their press edges is within
// tolerance. It returns the spread.
func (d *Detector) stepSpread(s Step, tolerance time.Duration, snap sample.Snapshot, hist history.Reader) (time.Duration, bool) {
	var earliest, latest time.Time
	edge := false
	for i, a := range s {
		st := snap.Action(a)
		var start time.Time
		switch {
		case st.JustPressed:
			start = snap.Time()
			edge = true
		case st.Pressed:
			var ok bool
			if start, ok = d.pressStart(a, hist); !ok {
				return 0, false
			}
		default:
			return 0, false
		}
		if i == 0 || start.Before(earliest) {
			earliest = start
		}
		if i == 0 || start.After(latest) {
			latest = start
		}
	}
	if !edge {
		return 0, false
	}
	spread := latest.Sub(earliest)
	return spread, spread <= tolerance
}

// unexpected reports whether any press falls outside the expected step.
func unexpected(expected Step, presses []sample.ActionID) bool {
	for _, a := range presses {
		if !expected.contains(a) {
			return true
		}
	}
	return false
}

func (d *Detector) fire(e *entry, snap sample.Snapshot, hist history.Reader) event.Event {
	ev := event.Event{
		Source:  event.SourceCombo,
		Tick:    snap.Tick(),
		Time:    snap.Time(),
		Pattern: e.p.ID,
		Actions: e.p.allActions(),
	}
	if e.p.Kind == KindChord {
		ev.Kind = event.Chord
		ev.Params.Duration, _ = d.stepSpread(Step(e.p.Actions), e.p.Tolerance, snap, hist)
	} else {
		ev.Kind = event.Combo
		ev.Params.Duration = snap.Time().Sub(e.cur.first)
	}
	return ev
}

// String describes a pattern for logs.
func (p Pattern) String() string {
	if p.Kind == KindChord {
		return fmt.Sprintf("chord %s [%s]", p.ID, Step(p.Actions))
	}
	return fmt.Sprintf("combo %s %v", p.ID, p.Steps)
}
