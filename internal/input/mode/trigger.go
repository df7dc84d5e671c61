package mode

import (
	"fmt"
	"strings"

	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/sample"
)

// Trigger selects the events a transition responds to.
//
// A zero Kind matches any kind. A non-empty Name narrows the match: for
// chord and combo events it is compared with the pattern ID, for every other
// kind with the action.
type Trigger struct {
	Kind event.Kind
	Name string
}

// On returns a trigger for every event of the given kind.
func On(kind event.Kind) Trigger { return Trigger{Kind: kind} }

// OnAction returns a trigger for events of kind on one action.
func OnAction(kind event.Kind, action sample.ActionID) Trigger {
	return Trigger{Kind: kind, Name: string(action)}
}

// OnPattern returns a trigger for a chord or combo by pattern ID.
func OnPattern(kind event.Kind, id string) Trigger {
	return Trigger{Kind: kind, Name: id}
}

// ParseTrigger parses "kind", "kind:name" or "*:name".
func ParseTrigger(s string) (Trigger, error) {
	kindPart, name, _ := strings.Cut(strings.TrimSpace(s), ":")
	var t Trigger
	if kindPart != "*" {
		k, err := event.ParseKind(kindPart)
		if err != nil {
			return Trigger{}, fmt.Errorf("trigger %q: %w", s, err)
		}
		t.Kind = k
	}
	t.Name = strings.TrimSpace(name)
	if t.Kind == event.KindNone && t.Name == "" {
		return Trigger{}, fmt.Errorf("trigger %q: wildcard trigger needs a name", s)
	}
	return t, nil
}

// Matches reports whether ev fires the trigger.
func (t Trigger) Matches(ev event.Event) bool {
	if t.Kind != event.KindNone && t.Kind != ev.Kind {
		return false
	}
	if t.Name == "" {
		return true
	}
	if ev.Kind == event.Chord || ev.Kind == event.Combo {
		return ev.Pattern == t.Name
	}
	return string(ev.Action) == t.Name
}

// String returns the form accepted by ParseTrigger.
func (t Trigger) String() string {
	kind := "*"
	if t.Kind != event.KindNone {
		kind = t.Kind.String()
	}
	if t.Name == "" {
		return kind
	}
	return kind + ":" + t.Name
}
