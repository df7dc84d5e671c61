package mode

import (
	"errors"
	"testing"
	"time"

	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/sample"
)

func tap(action sample.ActionID) event.Event {
	return event.Event{Kind: event.Tap, Source: event.SourceModifier, Tick: 7, Action: action}
}

func newMenuMachine() *Machine {
	return NewMachine("menu").
		Add("menu", OnAction(event.Tap, "confirm"), Always(), "play").
		Add("play", OnAction(event.Tap, "pause"), Always(), "paused").
		Add("paused", OnAction(event.Tap, "pause"), Always(), "play").
		Add("paused", OnAction(event.Tap, "back"), Always(), "menu")
}

func TestMachineInitialState(t *testing.T) {
	m := newMenuMachine()
	if got := m.Current(); got != "menu" {
		t.Errorf("Current() = %q, want menu", got)
	}
	if h := m.History(); len(h) != 1 || h[0] != "menu" {
		t.Errorf("History() = %v, want [menu]", h)
	}
}

func TestMachineFeed(t *testing.T) {
	m := newMenuMachine()

	out := m.Feed(tap("confirm"))
	if out.IsNone() {
		t.Fatal("Feed(tap confirm) = None, want StateChanged")
	}
	ev := out.Some()
	if ev.Kind != event.StateChanged || ev.Source != event.SourceMachine {
		t.Errorf("event = %v/%v, want state_changed/machine", ev.Kind, ev.Source)
	}
	if ev.Params.From != "menu" || ev.Params.To != "play" {
		t.Errorf("From/To = %q/%q, want menu/play", ev.Params.From, ev.Params.To)
	}
	if ev.Tick != 7 || ev.Action != "confirm" {
		t.Errorf("Tick/Action = %d/%q, want 7/confirm", ev.Tick, ev.Action)
	}
	if got := m.Current(); got != "play" {
		t.Errorf("Current() = %q, want play", got)
	}
}

func TestMachineCycle(t *testing.T) {
	m := newMenuMachine()
	for _, a := range []sample.ActionID{"confirm", "pause", "pause", "pause", "back"} {
		if m.Feed(tap(a)).IsNone() {
			t.Fatalf("Feed(tap %s) = None in state %q", a, m.Current())
		}
	}
	want := []State{"menu", "play", "paused", "play", "paused", "menu"}
	h := m.History()
	if len(h) != len(want) {
		t.Fatalf("History() = %v, want %v", h, want)
	}
	for i := range want {
		if h[i] != want[i] {
			t.Errorf("History()[%d] = %q, want %q", i, h[i], want[i])
		}
	}
}

func TestMachineUnmatchedEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   event.Event
	}{
		{"wrong action", tap("pause")},
		{"wrong kind", event.Event{Kind: event.Hold, Action: "confirm"}},
		{"motion event", event.Event{Kind: event.Shake}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMenuMachine()
			if out := m.Feed(tt.ev); out.IsSome() {
				t.Errorf("Feed() = %v, want None", out.Some())
			}
			if got := m.Current(); got != "menu" {
				t.Errorf("Current() = %q, want menu", got)
			}
			if h := m.History(); len(h) != 1 {
				t.Errorf("History() = %v, want unchanged", h)
			}
		})
	}
}

func TestMachineFirstMatchingGuardWins(t *testing.T) {
	m := NewMachine("idle").
		Add("idle", On(event.Tap), Never(), "never").
		Add("idle", On(event.Tap), Equals("mode", "arcade"), "arcade").
		Add("idle", On(event.Tap), Always(), "normal").
		Add("idle", On(event.Tap), Always(), "shadowed")

	m.SetContext("mode", "arcade")
	m.Feed(tap("x"))
	if got := m.Current(); got != "arcade" {
		t.Errorf("Current() = %q, want arcade", got)
	}

	m.Reset()
	m.SetContext("mode", "story")
	m.Feed(tap("x"))
	if got := m.Current(); got != "normal" {
		t.Errorf("Current() = %q, want normal", got)
	}
}

func TestMachineGlobalTransitions(t *testing.T) {
	m := NewMachine("menu").
		Add("menu", OnAction(event.Tap, "home"), Always(), "settings").
		AddGlobal(OnAction(event.Tap, "home"), Always(), "menu")

	m.Feed(tap("home"))
	if got := m.Current(); got != "settings" {
		t.Fatalf("Current() = %q, want settings (state transition before global)", got)
	}
	m.Feed(tap("home"))
	if got := m.Current(); got != "menu" {
		t.Errorf("Current() = %q, want menu", got)
	}
}

func TestMachineSelfTransitionIsSilent(t *testing.T) {
	m := NewMachine("play").
		Add("play", On(event.Tap), Always(), "play").
		Add("play", On(event.Tap), Always(), "menu")

	if out := m.Feed(tap("x")); out.IsSome() {
		t.Errorf("Feed() = %v, want None for a self transition", out.Some())
	}
	if got := m.Current(); got != "play" {
		t.Errorf("Current() = %q, want play", got)
	}
}

func TestMachineOnChange(t *testing.T) {
	m := newMenuMachine()
	var from, to State
	var cause event.Event
	calls := 0
	m.OnChange(func(f, tt State, ev event.Event) {
		from, to, cause = f, tt, ev
		calls++
		// Reading state from a callback must not deadlock.
		_ = m.Current()
	})

	m.Feed(tap("pause"))
	m.Feed(tap("confirm"))

	if calls != 1 {
		t.Fatalf("callbacks = %d, want 1", calls)
	}
	if from != "menu" || to != "play" || cause.Action != "confirm" {
		t.Errorf("callback = %q->%q by %q, want menu->play by confirm", from, to, cause.Action)
	}
}

func TestMachineCustomGuardSeesSnapshot(t *testing.T) {
	aiming := Custom("aiming", func(env Env) bool {
		return env.Snapshot.Action("aim").Pressed
	})
	m := NewMachine("play").
		Add("play", OnAction(event.Tap, "fire"), aiming, "scoped")

	m.Feed(tap("fire"))
	if got := m.Current(); got != "play" {
		t.Fatalf("Current() = %q, want play without aim held", got)
	}

	m.SetSnapshot(sample.NewSnapshot(3, time.Time{}, map[sample.ActionID]sample.ActionState{
		"aim": {Pressed: true, Value: 1},
	}, nil, sample.Motion{}))
	m.Feed(tap("fire"))
	if got := m.Current(); got != "scoped" {
		t.Errorf("Current() = %q, want scoped with aim held", got)
	}
}

func TestMachineContext(t *testing.T) {
	m := NewMachine("a")
	if _, ok := m.Context("k"); ok {
		t.Error("Context(k) ok = true, want false")
	}
	m.SetContext("k", "v")
	if v, ok := m.Context("k"); !ok || v != "v" {
		t.Errorf("Context(k) = %q, %v, want v, true", v, ok)
	}
	m.ClearContext("k")
	if _, ok := m.Context("k"); ok {
		t.Error("Context(k) ok = true after ClearContext, want false")
	}
}

func TestMachineReset(t *testing.T) {
	m := newMenuMachine()
	m.SetContext("k", "v")
	m.Feed(tap("confirm"))
	m.Reset()

	if got := m.Current(); got != "menu" {
		t.Errorf("Current() = %q, want menu", got)
	}
	if h := m.History(); len(h) != 1 {
		t.Errorf("History() = %v, want [menu]", h)
	}
	if _, ok := m.Context("k"); !ok {
		t.Error("Reset cleared the context, want it kept")
	}
}

func TestMachineStates(t *testing.T) {
	m := newMenuMachine().AddGlobal(On(event.Shake), Always(), "shaken")
	want := []State{"menu", "paused", "play", "shaken"}
	got := m.States()
	if len(got) != len(want) {
		t.Fatalf("States() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("States()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if !m.HasState("paused") || m.HasState("missing") {
		t.Error("HasState() disagrees with States()")
	}
}

func TestMachineHistoryLimit(t *testing.T) {
	m := newMenuMachine()
	m.SetHistoryLimit(2)
	m.Feed(tap("confirm"))
	m.Feed(tap("pause"))
	h := m.History()
	if len(h) != 2 || h[0] != "play" || h[1] != "paused" {
		t.Errorf("History() = %v, want [play paused]", h)
	}
}

func TestMachineSetState(t *testing.T) {
	m := newMenuMachine()
	if err := m.SetState("paused"); err != nil {
		t.Fatalf("SetState(paused) error = %v", err)
	}
	if got := m.Current(); got != "paused" {
		t.Errorf("Current() = %q, want paused", got)
	}
	if err := m.SetState("missing"); !errors.Is(err, ErrUnknownState) {
		t.Errorf("SetState(missing) error = %v, want ErrUnknownState", err)
	}
	if err := m.SetState(""); !errors.Is(err, ErrEmptyState) {
		t.Errorf("SetState(\"\") error = %v, want ErrEmptyState", err)
	}
}

func TestMachineContexts(t *testing.T) {
	m := NewMachine("a")
	m.SetContext("x", "1")
	c := m.Contexts()
	c["x"] = "changed"
	if v, _ := m.Context("x"); v != "1" {
		t.Errorf("Context(x) = %q, want 1 (Contexts must return a copy)", v)
	}
}
