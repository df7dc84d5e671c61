package mode

import (
	"strings"

	"github.com/enetx/g"

	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/sample"
)

// Env is what a guard sees when it is evaluated.
type Env struct {
	// State is the current state.
	State State

	// Event is the event being fed.
	Event event.Event

	// Snapshot is the latest snapshot given to the machine.
	Snapshot sample.Snapshot

	// Context is the machine's external context.
	Context g.Map[g.String, g.String]
}

// Predicate is the body of a custom guard.
type Predicate func(Env) bool

// GuardKind tags the variant of a Guard.
type GuardKind uint8

const (
	GuardAlways GuardKind = iota
	GuardNever
	GuardEquals
	GuardAnd
	GuardOr
	GuardNot
	GuardCustom
)

// Guard is a condition on a transition. The zero Guard always holds.
type Guard struct {
	kind     GuardKind
	name     string
	key      g.String
	value    g.String
	children []Guard
	pred     Predicate
	res      resource
}

// resource is state held by a custom guard that must be freed.
type resource interface {
	retain()
	release()
	closeNow()
}

// Always returns a guard that always holds.
func Always() Guard { return Guard{kind: GuardAlways} }

// Never returns a guard that never holds.
func Never() Guard { return Guard{kind: GuardNever} }

// Equals holds when the external context value for key equals value.
// A missing key never equals anything.
func Equals(key, value string) Guard {
	return Guard{kind: GuardEquals, key: g.String(key), value: g.String(value)}
}

// And holds when every guard holds. An empty And holds.
func And(guards ...Guard) Guard { return Guard{kind: GuardAnd, children: guards} }

// Or holds when any guard holds. An empty Or does not hold.
func Or(guards ...Guard) Guard { return Guard{kind: GuardOr, children: guards} }

// Not inverts a guard.
func Not(guard Guard) Guard { return Guard{kind: GuardNot, children: []Guard{guard}} }

// Custom wraps a predicate. A nil predicate never holds.
func Custom(name string, pred Predicate) Guard {
	return Guard{kind: GuardCustom, name: name, pred: pred}
}

// Close frees resources held by the guard and its children, such as Lua
// states. A closed guard still evaluates; it reacquires what it needs.
func (gd Guard) Close() {
	gd.walk(resource.closeNow)
}

func (gd Guard) walk(fn func(resource)) {
	if gd.res != nil {
		fn(gd.res)
	}
	for _, c := range gd.children {
		c.walk(fn)
	}
}

// Kind returns the variant tag.
func (gd Guard) Kind() GuardKind { return gd.kind }

// Eval evaluates the guard.
func (gd Guard) Eval(env Env) bool {
	switch gd.kind {
	case GuardAlways:
		return true
	case GuardNever:
		return false
	case GuardEquals:
		v := env.Context.Get(gd.key)
		return v.IsSome() && v.Some() == gd.value
	case GuardAnd:
		for _, c := range gd.children {
			if !c.Eval(env) {
				return false
			}
		}
		return true
	case GuardOr:
		for _, c := range gd.children {
			if c.Eval(env) {
				return true
			}
		}
		return false
	case GuardNot:
		return !gd.children[0].Eval(env)
	case GuardCustom:
		return gd.pred != nil && gd.pred(env)
	}
	return false
}

// String renders the guard for logs, e.g. "and(equals(menu=open), not(custom(aiming)))".
func (gd Guard) String() string {
	switch gd.kind {
	case GuardAlways:
		return "always"
	case GuardNever:
		return "never"
	case GuardEquals:
		return "equals(" + string(gd.key) + "=" + string(gd.value) + ")"
	case GuardAnd, GuardOr, GuardNot:
		parts := make([]string, len(gd.children))
		for i, c := range gd.children {
			parts[i] = c.String()
		}
		op := map[GuardKind]string{GuardAnd: "and", GuardOr: "or", GuardNot: "not"}[gd.kind]
		return op + "(" + strings.Join(parts, ", ") + ")"
	case GuardCustom:
		return "custom(" + gd.name + ")"
	}
	return "invalid"
}
