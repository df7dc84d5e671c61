package input

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/padstorm/internal/input/combo"
	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/history"
	"github.com/dshills/padstorm/internal/input/mode"
	"github.com/dshills/padstorm/internal/input/modifier"
	"github.com/dshills/padstorm/internal/input/motion"
	"github.com/dshills/padstorm/internal/input/sample"
	"github.com/dshills/padstorm/internal/input/touch"
)

// ErrClosed is returned by operations on a closed Handler.
var ErrClosed = errors.New("input handler is closed")

// Logger is the logging surface the handler needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger.
func WithLogger(l Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMetrics shares a metrics tracker between handlers.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithID sets the handler ID instead of a random one.
func WithID(id uuid.UUID) Option {
	return func(h *Handler) { h.id = id }
}

// Handler runs the detection pipeline for one player.
type Handler struct {
	mu sync.Mutex

	id  uuid.UUID
	cfg Config
	log Logger

	ingestor  *sample.Ingestor
	ring      *history.Ring
	modifiers *modifier.Detector
	combos    *combo.Detector
	touch     *touch.Tracker
	motion    *motion.Classifier
	machine   *mode.Machine

	hooks   *HookManager
	metrics *Metrics

	// reported is what this handler has already added to metrics.
	reported detectorCounts

	closed bool
}

// NewHandler validates cfg and creates a handler.
func NewHandler(cfg Config, opts ...Option) (*Handler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := &Handler{
		id:      uuid.New(),
		cfg:     cfg,
		log:     nopLogger{},
		hooks:   NewHookManager(),
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(h)
	}

	var err error
	h.ingestor = sample.NewIngestor(cfg.Ingest)
	if h.ring, err = history.New(cfg.History); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	if h.modifiers, err = modifier.NewDetector(cfg.Modifier); err != nil {
		return nil, fmt.Errorf("modifier: %w", err)
	}
	if h.combos, err = cfg.newCombos(); err != nil {
		return nil, fmt.Errorf("patterns: %w", err)
	}
	if h.touch, err = touch.NewTracker(cfg.Touch); err != nil {
		return nil, fmt.Errorf("touch: %w", err)
	}
	if h.motion, err = motion.NewClassifier(cfg.Motion); err != nil {
		return nil, fmt.Errorf("motion: %w", err)
	}
	h.machine = h.newMachine(cfg.Machine)
	h.combos.SetContext(string(h.machine.Current()))

	h.log.Debug("handler %s ready: %d patterns, %d transitions, initial state %q",
		h.id, len(cfg.Patterns), len(cfg.Machine.Transitions), cfg.Machine.Initial)
	return h, nil
}

func (h *Handler) newMachine(mc MachineConfig) *mode.Machine {
	m := mc.build()
	m.OnChange(func(from, to mode.State, cause event.Event) {
		h.log.Debug("state %s -> %s on %s", from, to, cause)
	})
	return m
}

// ID returns the handler ID.
func (h *Handler) ID() uuid.UUID { return h.id }

// Tick processes one raw sample and returns the tick's events in detector
// order. A sample dropped by a hook, or any sample after Close, yields nil.
func (h *Handler) Tick(raw sample.Raw) []event.Event {
	if h.hooks.RunPreTick(&raw) {
		h.metrics.RecordDroppedSample()
		return nil
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	timer := h.metrics.StartTickTimer()
	snap, events := h.tickLocked(raw)
	timer.Stop(events)
	h.mu.Unlock()

	h.hooks.RunPostTick(snap, events)
	return events
}

func (h *Handler) tickLocked(raw sample.Raw) (sample.Snapshot, []event.Event) {
	if raw.Motion == nil && raw.Counts != nil && h.cfg.Calibration != nil {
		m := h.cfg.Calibration.Apply(*raw.Counts)
		raw.Motion = &m
	}

	snap := h.ingestor.Ingest(raw)
	if err := h.ring.Append(snap); err != nil {
		// The ingestor keeps time monotonic, so this is a programming error.
		h.log.Warn("history append: %v", err)
	}

	var events []event.Event
	events = append(events, h.modifiers.ObserveAll(snap, h.ring)...)
	events = append(events, h.combos.Observe(snap, h.ring)...)
	events = append(events, h.touch.Observe(snap)...)
	events = append(events, h.motion.Observe(snap, h.ring)...)

	h.machine.SetSnapshot(snap)
	for i, n := 0, len(events); i < n; i++ {
		if changed := h.machine.Feed(events[i]); changed.IsSome() {
			events = append(events, changed.Some())
		}
	}
	h.combos.SetContext(string(h.machine.Current()))

	h.reportCounts()
	return snap, events
}

func (h *Handler) reportCounts() {
	cur := detectorCounts{
		droppedTouches: h.ingestor.Dropped() + h.touch.Dropped(),
		clampedTimes:   h.ingestor.Clamped(),
		comboTimeouts:  h.combos.Timeouts(),
	}
	h.metrics.recordCounts(h.reported, cur)
	h.reported = cur
}

// Reload applies a new configuration between ticks. Detector timers and the
// history survive where the new configuration allows; combo progress is
// lost. The machine keeps its state and context when the new table still
// names the state.
func (h *Handler) Reload(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}

	combos, err := cfg.newCombos()
	if err != nil {
		return fmt.Errorf("patterns: %w", err)
	}
	if err := h.ingestor.SetConfig(cfg.Ingest); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}
	if err := h.modifiers.SetConfig(cfg.Modifier); err != nil {
		return fmt.Errorf("modifier: %w", err)
	}
	if err := h.touch.SetConfig(cfg.Touch); err != nil {
		return fmt.Errorf("touch: %w", err)
	}
	if err := h.motion.SetConfig(cfg.Motion); err != nil {
		return fmt.Errorf("motion: %w", err)
	}

	if cfg.History != h.cfg.History {
		ring, err := history.New(cfg.History)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		h.ring.Range(func(s sample.Snapshot) bool {
			_ = ring.Append(s)
			return true
		})
		h.ring = ring
	}

	machine := h.newMachine(cfg.Machine)
	if cur := h.machine.Current(); machine.HasState(cur) {
		_ = machine.SetState(cur)
	}
	for k, v := range h.machine.Contexts() {
		machine.SetContext(string(k), string(v))
	}
	h.machine.Close()
	h.machine = machine

	combos.SetContext(string(machine.Current()))
	combos.InheritPresses(h.combos)
	h.combos = combos
	h.reported.comboTimeouts = 0
	h.cfg = cfg

	h.log.Info("handler %s reloaded: %d patterns, state %q", h.id, len(cfg.Patterns), machine.Current())
	return nil
}

// Reset clears detector state after a pause, such as a resumed session.
// Actions held across the reset report only Released when let go. The
// machine state and the history are kept.
func (h *Handler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.modifiers.Reset()
	h.combos.Reset()
	h.touch.Reset()
	h.motion.Reset()
}

// Config returns the active configuration.
func (h *Handler) Config() Config {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cfg
}

// State returns the current state of the input state machine.
func (h *Handler) State() mode.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.machine.Current()
}

// SetContext sets an external context value seen by Equals guards.
func (h *Handler) SetContext(key, value string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.machine.SetContext(key, value)
}

// SetNeutral sets the neutral orientation for tilt from a gravity vector.
func (h *Handler) SetNeutral(gravity sample.Vec3) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.motion.SetNeutral(gravity)
}

// ComboProgress returns how many steps of a pattern are matched.
func (h *Handler) ComboProgress(id string) (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.combos.Progress(id)
}

// Hooks returns the hook manager.
func (h *Handler) Hooks() *HookManager { return h.hooks }

// Metrics returns the metrics tracker.
func (h *Handler) Metrics() *Metrics { return h.metrics }

// Close stops the handler and frees the machine's guards. Later ticks are
// ignored.
func (h *Handler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	h.machine.Close()
}

// IsClosed reports whether Close was called.
func (h *Handler) IsClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}
