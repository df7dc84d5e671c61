package record

import (
	"time"

	"github.com/dshills/padstorm/internal/input"
	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/sample"
)

// Player replays a trace.
type Player struct {
	trace *Trace
	next  int
	shift time.Duration
}

// NewPlayer creates a player positioned at the first sample.
func NewPlayer(t *Trace) *Player {
	return &Player{trace: t}
}

// Rebase shifts replayed sample times so the first sample lands at start.
// A zero start keeps the recorded times.
func (p *Player) Rebase(start time.Time) {
	if start.IsZero() || len(p.trace.Samples) == 0 {
		p.shift = 0
		return
	}
	p.shift = start.Sub(p.trace.Samples[0].Time)
}

// Rewind moves back to the first sample.
func (p *Player) Rewind() { p.next = 0 }

// Done reports whether every sample has been returned.
func (p *Player) Done() bool { return p.next >= len(p.trace.Samples) }

// Remaining returns the number of samples not yet returned.
func (p *Player) Remaining() int { return len(p.trace.Samples) - p.next }

// Step returns the next sample, or false when the trace is exhausted.
func (p *Player) Step() (sample.Raw, bool) {
	if p.Done() {
		return sample.Raw{}, false
	}
	raw := p.at(p.trace.Samples[p.next])
	p.next++
	return raw, true
}

// Next returns the samples due within elapsed of the first sample.
func (p *Player) Next(elapsed time.Duration) []sample.Raw {
	if p.Done() {
		return nil
	}
	origin := p.trace.Samples[0].Time
	var due []sample.Raw
	for ; p.next < len(p.trace.Samples); p.next++ {
		raw := p.trace.Samples[p.next]
		if raw.Time.Sub(origin) > elapsed {
			break
		}
		due = append(due, p.at(raw))
	}
	return due
}

// Run feeds every remaining sample through h and returns the events of each
// tick, one entry per sample.
func (p *Player) Run(h *input.Handler) [][]event.Event {
	out := make([][]event.Event, 0, p.Remaining())
	for ; p.next < len(p.trace.Samples); p.next++ {
		out = append(out, h.Tick(p.at(p.trace.Samples[p.next])))
	}
	return out
}

func (p *Player) at(raw sample.Raw) sample.Raw {
	raw = cloneRaw(raw)
	raw.Time = raw.Time.Add(p.shift)
	return raw
}
