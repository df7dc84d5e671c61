package input

import (
	"sort"
	"sync"

	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/sample"
)

// HookPriority defines the execution order for hooks.
// Lower values execute first.
type HookPriority int

const (
	// HookPriorityHighest runs before all other hooks.
	HookPriorityHighest HookPriority = -1000
	// HookPriorityHigh runs early in the hook chain.
	HookPriorityHigh HookPriority = -100
	// HookPriorityNormal is the default priority.
	HookPriorityNormal HookPriority = 0
	// HookPriorityLow runs late in the hook chain.
	HookPriorityLow HookPriority = 100
	// HookPriorityLowest runs after all other hooks.
	HookPriorityLowest HookPriority = 1000
)

// Hook observes and filters ticks.
type Hook interface {
	// PreTick is called with the raw sample before ingestion. The hook may
	// modify the sample. Return true to drop it; the tick is then skipped
	// entirely and no later hook sees it.
	PreTick(raw *sample.Raw) bool

	// PostTick is called after a tick with its snapshot and events.
	PostTick(snap sample.Snapshot, events []event.Event)
}

// HookID uniquely identifies a registered hook.
type HookID uint64

// HookRegistration holds metadata about a registered hook.
type HookRegistration struct {
	ID       HookID
	Name     string
	Priority HookPriority
	Hook     Hook
}

// HookManager manages hooks with support for priorities and named registration.
type HookManager struct {
	mu      sync.RWMutex
	hooks   []HookRegistration
	nextID  HookID
	sorted  bool
	enabled bool
}

// NewHookManager creates a new hook manager.
func NewHookManager() *HookManager {
	return &HookManager{
		hooks:   make([]HookRegistration, 0),
		sorted:  true,
		enabled: true,
	}
}

// Register adds a hook with default priority and no name.
func (m *HookManager) Register(hook Hook) HookID {
	return m.RegisterWithOptions(hook, "", HookPriorityNormal)
}

// RegisterNamed adds a hook with a name for later reference.
func (m *HookManager) RegisterNamed(hook Hook, name string) HookID {
	return m.RegisterWithOptions(hook, name, HookPriorityNormal)
}

// RegisterWithOptions adds a hook with all options specified. A hook
// registered under an existing name replaces it.
func (m *HookManager) RegisterWithOptions(hook Hook, name string, priority HookPriority) HookID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name != "" {
		m.removeLocked(func(r HookRegistration) bool { return r.Name == name })
	}

	m.nextID++
	m.hooks = append(m.hooks, HookRegistration{
		ID:       m.nextID,
		Name:     name,
		Priority: priority,
		Hook:     hook,
	})
	m.sorted = false
	return m.nextID
}

// Unregister removes a hook by ID.
func (m *HookManager) Unregister(id HookID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(func(r HookRegistration) bool { return r.ID == id })
}

// UnregisterByName removes a hook by name.
func (m *HookManager) UnregisterByName(name string) bool {
	if name == "" {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.removeLocked(func(r HookRegistration) bool { return r.Name == name })
}

func (m *HookManager) removeLocked(match func(HookRegistration) bool) bool {
	for i := range m.hooks {
		if match(m.hooks[i]) {
			m.hooks = append(m.hooks[:i], m.hooks[i+1:]...)
			return true
		}
	}
	return false
}

// GetByName returns a hook registration by name.
func (m *HookManager) GetByName(name string) (HookRegistration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.hooks {
		if name != "" && r.Name == name {
			return r, true
		}
	}
	return HookRegistration{}, false
}

// SetEnabled enables or disables all hooks.
func (m *HookManager) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

// IsEnabled returns whether hooks are enabled.
func (m *HookManager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// Count returns the number of registered hooks.
func (m *HookManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hooks)
}

// List returns all hook registrations in execution order.
func (m *HookManager) List() []HookRegistration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureSorted()

	result := make([]HookRegistration, len(m.hooks))
	copy(result, m.hooks)
	return result
}

// ensureSorted sorts hooks by priority if needed.
func (m *HookManager) ensureSorted() {
	if m.sorted {
		return
	}
	sort.SliceStable(m.hooks, func(i, j int) bool {
		return m.hooks[i].Priority < m.hooks[j].Priority
	})
	m.sorted = true
}

// snapshot returns the hooks to run, outside of the lock.
func (m *HookManager) snapshot() []Hook {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.enabled || len(m.hooks) == 0 {
		return nil
	}
	m.ensureSorted()
	hooks := make([]Hook, len(m.hooks))
	for i := range m.hooks {
		hooks[i] = m.hooks[i].Hook
	}
	return hooks
}

// RunPreTick runs all PreTick hooks in priority order.
// Returns true if any hook dropped the sample.
func (m *HookManager) RunPreTick(raw *sample.Raw) bool {
	for _, hook := range m.snapshot() {
		if hook.PreTick(raw) {
			return true
		}
	}
	return false
}

// RunPostTick runs all PostTick hooks in priority order.
func (m *HookManager) RunPostTick(snap sample.Snapshot, events []event.Event) {
	for _, hook := range m.snapshot() {
		hook.PostTick(snap, events)
	}
}

// Clear removes all hooks.
func (m *HookManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = make([]HookRegistration, 0)
	m.sorted = true
}

// BaseHook provides a default implementation of the Hook interface.
// Embed this in custom hooks to only implement the methods you need.
type BaseHook struct{}

// PreTick is a no-op that does not drop samples.
func (BaseHook) PreTick(*sample.Raw) bool { return false }

// PostTick is a no-op.
func (BaseHook) PostTick(sample.Snapshot, []event.Event) {}

// FuncHook wraps functions into a Hook.
type FuncHook struct {
	PreTickFunc  func(*sample.Raw) bool
	PostTickFunc func(sample.Snapshot, []event.Event)
}

// PreTick calls PreTickFunc if set.
func (h FuncHook) PreTick(raw *sample.Raw) bool {
	if h.PreTickFunc != nil {
		return h.PreTickFunc(raw)
	}
	return false
}

// PostTick calls PostTickFunc if set.
func (h FuncHook) PostTick(snap sample.Snapshot, events []event.Event) {
	if h.PostTickFunc != nil {
		h.PostTickFunc(snap, events)
	}
}

// LoggingHook logs every event at debug level.
type LoggingHook struct {
	BaseHook
	Logger Logger
}

// PostTick logs the events of the tick.
func (h LoggingHook) PostTick(snap sample.Snapshot, events []event.Event) {
	if h.Logger == nil {
		return
	}
	for _, ev := range events {
		h.Logger.Debug("[input] tick %d: %s", snap.Tick(), ev)
	}
}

// FilterHook drops samples that match a predicate.
type FilterHook struct {
	BaseHook

	// Drop returns true to discard a sample.
	Drop func(*sample.Raw) bool
}

// PreTick applies the filter.
func (h FilterHook) PreTick(raw *sample.Raw) bool {
	return h.Drop != nil && h.Drop(raw)
}
