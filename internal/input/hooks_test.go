package input

import (
	"testing"

	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/sample"
)

func TestHookManagerPriorityOrder(t *testing.T) {
	m := NewHookManager()
	var order []string
	record := func(name string) Hook {
		return FuncHook{PostTickFunc: func(sample.Snapshot, []event.Event) {
			order = append(order, name)
		}}
	}

	m.RegisterWithOptions(record("low"), "low", HookPriorityLow)
	m.RegisterWithOptions(record("highest"), "highest", HookPriorityHighest)
	m.Register(record("normal"))

	m.RunPostTick(sample.Snapshot{}, nil)

	want := []string{"highest", "normal", "low"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestHookManagerPreTickStopsAtFirstDrop(t *testing.T) {
	m := NewHookManager()
	calls := 0
	m.RegisterWithOptions(FilterHook{Drop: func(*sample.Raw) bool { calls++; return true }}, "", HookPriorityHigh)
	m.Register(FuncHook{PreTickFunc: func(*sample.Raw) bool { calls++; return false }})

	if !m.RunPreTick(&sample.Raw{}) {
		t.Error("RunPreTick() = false, want true")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestHookManagerPreTickMayModify(t *testing.T) {
	m := NewHookManager()
	m.Register(FuncHook{PreTickFunc: func(raw *sample.Raw) bool {
		raw.Pulses = append(raw.Pulses, "injected")
		return false
	}})
	raw := sample.Raw{}
	m.RunPreTick(&raw)
	if len(raw.Pulses) != 1 || raw.Pulses[0] != "injected" {
		t.Errorf("Pulses = %v, want [injected]", raw.Pulses)
	}
}

func TestHookManagerUnregister(t *testing.T) {
	m := NewHookManager()
	id := m.Register(BaseHook{})
	m.RegisterNamed(BaseHook{}, "named")

	if m.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", m.Count())
	}
	if !m.Unregister(id) {
		t.Error("Unregister() = false, want true")
	}
	if m.Unregister(id) {
		t.Error("second Unregister() = true, want false")
	}
	if _, ok := m.GetByName("named"); !ok {
		t.Error("GetByName(named) not found")
	}
	if !m.UnregisterByName("named") {
		t.Error("UnregisterByName() = false, want true")
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestHookManagerNamedReplaces(t *testing.T) {
	m := NewHookManager()
	m.RegisterNamed(BaseHook{}, "rec")
	id := m.RegisterNamed(BaseHook{}, "rec")
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
	if r, _ := m.GetByName("rec"); r.ID != id {
		t.Errorf("GetByName(rec).ID = %d, want %d", r.ID, id)
	}
}

func TestHookManagerDisabled(t *testing.T) {
	m := NewHookManager()
	m.Register(FilterHook{Drop: func(*sample.Raw) bool { return true }})
	m.SetEnabled(false)
	if m.IsEnabled() {
		t.Error("IsEnabled() = true, want false")
	}
	if m.RunPreTick(&sample.Raw{}) {
		t.Error("RunPreTick() = true with hooks disabled")
	}
	m.SetEnabled(true)
	m.Clear()
	if m.RunPreTick(&sample.Raw{}) {
		t.Error("RunPreTick() = true after Clear")
	}
}

type captureLogger struct{ lines []string }

func (c *captureLogger) Debug(msg string, _ ...any) { c.lines = append(c.lines, msg) }
func (c *captureLogger) Info(string, ...any)        {}
func (c *captureLogger) Warn(string, ...any)        {}

func TestLoggingHook(t *testing.T) {
	log := &captureLogger{}
	h := LoggingHook{Logger: log}
	h.PostTick(sample.Snapshot{}, []event.Event{{Kind: event.Tap}, {Kind: event.Shake}})
	if len(log.lines) != 2 {
		t.Errorf("logged %d lines, want 2", len(log.lines))
	}
}
