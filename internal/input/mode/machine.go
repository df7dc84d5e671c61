package mode

import (
	"fmt"
	"slices"
	"sync"

	"github.com/enetx/g"

	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/sample"
)

// State is a named state of the machine.
type State g.String

// DefaultHistoryLimit bounds the number of states kept by History.
const DefaultHistoryLimit = 64

// ChangeFunc is called after a transition. cause is the event that
// triggered it.
type ChangeFunc func(from, to State, cause event.Event)

type transition struct {
	trigger Trigger
	guard   Guard
	to      State
}

// Machine is the input state machine.
//
// Machine is safe for concurrent use. Change callbacks run outside the lock.
type Machine struct {
	mu sync.RWMutex

	initial State
	current State
	history g.Slice[State]
	limit   int

	transitions *g.MapSafe[State, g.Slice[transition]]
	global      g.Slice[transition]

	context  *g.MapSafe[g.String, g.String]
	snapshot sample.Snapshot

	callbacks []ChangeFunc
	closed    bool
}

// NewMachine creates a machine in the initial state.
func NewMachine(initial State) *Machine {
	return &Machine{
		initial:     initial,
		current:     initial,
		history:     g.Slice[State]{initial},
		limit:       DefaultHistoryLimit,
		transitions: g.NewMapSafe[State, g.Slice[transition]](),
		context:     g.NewMapSafe[g.String, g.String](),
	}
}

// Add registers a transition from one state. Transitions are tried in
// registration order.
func (m *Machine) Add(from State, trigger Trigger, guard Guard, to State) *Machine {
	t := transition{trigger: trigger, guard: guard, to: to}
	guard.walk(resource.retain)
	m.transitions.Entry(from).
		AndModify(func(s *g.Slice[transition]) { *s = s.Clone().Append(t) }).
		OrInsert(g.Slice[transition]{t})
	return m
}

// AddGlobal registers a transition that applies from every state. Global
// transitions are tried after the current state's own transitions.
func (m *Machine) AddGlobal(trigger Trigger, guard Guard, to State) *Machine {
	m.mu.Lock()
	defer m.mu.Unlock()

	guard.walk(resource.retain)
	m.global.Push(transition{trigger: trigger, guard: guard, to: to})
	return m
}

// Close releases the guards of every transition. Guards shared with another
// machine stay usable there. Close is idempotent.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true

	for _, ts := range m.transitions.Iter() {
		for t := range ts.Iter() {
			t.guard.walk(resource.release)
		}
	}
	for t := range m.global.Iter() {
		t.guard.walk(resource.release)
	}
}

// OnChange registers a callback for state changes.
func (m *Machine) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// Initial returns the initial state.
func (m *Machine) Initial() State { return m.initial }

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// History returns a copy of the visited states, oldest first.
func (m *Machine) History() g.Slice[State] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Clone()
}

// SetHistoryLimit bounds History. Values below 1 are ignored.
func (m *Machine) SetHistoryLimit(n int) {
	if n < 1 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.limit = n
	m.trimHistory()
}

// SetSnapshot sets the snapshot that guards see.
func (m *Machine) SetSnapshot(snap sample.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = snap
}

// SetContext sets an external context value for Equals guards.
func (m *Machine) SetContext(key, value string) {
	m.context.Set(g.String(key), g.String(value))
}

// ClearContext removes an external context value.
func (m *Machine) ClearContext(key string) {
	m.context.Delete(g.String(key))
}

// Context returns an external context value.
func (m *Machine) Context(key string) (string, bool) {
	v := m.context.Get(g.String(key))
	if v.IsNone() {
		return "", false
	}
	return string(v.Some()), true
}

// SetState moves to s without running any transition or callback.
func (m *Machine) SetState(s State) error {
	if s == "" {
		return ErrEmptyState
	}
	if !m.HasState(s) {
		return fmt.Errorf("%w: %q", ErrUnknownState, s)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s != m.current {
		m.current = s
		m.history.Push(s)
		m.trimHistory()
	}
	return nil
}

// Contexts returns a copy of the external context.
func (m *Machine) Contexts() g.Map[g.String, g.String] {
	return m.context.Iter().Collect()
}

// Reset returns to the initial state and clears the history. The context and
// the transition table are kept.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
	m.history = g.Slice[State]{m.initial}
	m.snapshot = sample.Snapshot{}
}

// States returns every state named by the machine, sorted.
func (m *Machine) States() g.Slice[State] {
	m.mu.RLock()
	defer m.mu.RUnlock()

	set := g.NewSet[State]()
	set.Insert(m.initial)
	for from, ts := range m.transitions.Iter() {
		set.Insert(from)
		for t := range ts.Iter() {
			set.Insert(t.to)
		}
	}
	for t := range m.global.Iter() {
		set.Insert(t.to)
	}

	states := set.ToSlice()
	slices.Sort(states)
	return states
}

// HasState reports whether s is named by the machine.
func (m *Machine) HasState(s State) bool {
	return slices.Contains(m.States(), s)
}

// Feed offers an event to the machine. It returns a StateChanged event when
// a transition to a different state is taken. A matching transition back to
// the current state is consumed without an event.
func (m *Machine) Feed(ev event.Event) g.Option[event.Event] {
	m.mu.Lock()

	env := Env{
		State:    m.current,
		Event:    ev,
		Snapshot: m.snapshot,
		Context:  m.context.Iter().Collect(),
	}
	t, ok := m.match(env)
	if !ok || t.to == m.current {
		m.mu.Unlock()
		return g.None[event.Event]()
	}

	from := m.current
	m.current = t.to
	m.history.Push(t.to)
	m.trimHistory()

	callbacks := make([]ChangeFunc, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(from, t.to, ev)
		}
	}

	return g.Some(event.Event{
		Kind:    event.StateChanged,
		Source:  event.SourceMachine,
		Tick:    ev.Tick,
		Time:    ev.Time,
		Action:  ev.Action,
		Pattern: ev.Pattern,
		Params:  event.Params{From: string(from), To: string(t.to)},
	})
}

// match must be called with the lock held.
func (m *Machine) match(env Env) (transition, bool) {
	if ts := m.transitions.Get(m.current); ts.IsSome() {
		for t := range ts.Some().Iter() {
			if t.trigger.Matches(env.Event) && t.guard.Eval(env) {
				return t, true
			}
		}
	}
	for t := range m.global.Iter() {
		if t.trigger.Matches(env.Event) && t.guard.Eval(env) {
			return t, true
		}
	}
	return transition{}, false
}

func (m *Machine) trimHistory() {
	if over := len(m.history) - m.limit; over > 0 {
		m.history = m.history[over:].Clone()
	}
}
