package record

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dshills/padstorm/internal/input"
	"github.com/dshills/padstorm/internal/input/sample"
)

// HookName is the name a Recorder registers under.
const HookName = "record"

// Recorder is a Handler hook that copies samples into a Trace while
// recording. It never drops samples.
type Recorder struct {
	input.BaseHook

	mu        sync.Mutex
	recording bool
	trace     *Trace
	started   time.Time
	limit     int
}

// NewRecorder creates a stopped recorder. A positive limit caps the number
// of samples kept; recording stops when it is reached.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit, trace: NewTrace()}
}

// Attach registers the recorder on a hook manager. It runs last so that it
// sees only samples that other hooks let through.
func (r *Recorder) Attach(hooks *input.HookManager) input.HookID {
	return hooks.RegisterWithOptions(r, HookName, input.HookPriorityLowest)
}

// Start discards any previous recording and begins a new trace.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = NewTrace()
	r.started = time.Now()
	r.recording = true
}

// Stop ends recording and returns the trace.
func (r *Recorder) Stop() *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recording = false
	return r.trace
}

// IsRecording reports whether samples are being captured.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Len returns the number of samples captured so far.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trace.Samples)
}

// Elapsed returns the wall time since Start.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started.IsZero() {
		return 0
	}
	return time.Since(r.started)
}

// PreTick records a copy of the sample.
func (r *Recorder) PreTick(raw *sample.Raw) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return false
	}
	r.trace.Samples = append(r.trace.Samples, cloneRaw(*raw))
	if r.limit > 0 && len(r.trace.Samples) >= r.limit {
		r.recording = false
	}
	return false
}

func cloneRaw(raw sample.Raw) sample.Raw {
	raw.Buttons = maps.Clone(raw.Buttons)
	raw.Axes = maps.Clone(raw.Axes)
	raw.Pulses = slices.Clone(raw.Pulses)
	raw.Touch = slices.Clone(raw.Touch)
	if raw.Motion != nil {
		m := *raw.Motion
		raw.Motion = &m
	}
	if raw.Counts != nil {
		c := *raw.Counts
		raw.Counts = &c
	}
	return raw
}
