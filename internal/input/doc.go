// Package input runs the per-tick detection pipeline of padstorm.
//
// A Handler owns one instance of every detector and processes one raw
// sample per call to Tick:
//
//	ingest -> history -> modifier -> combo -> touch -> motion -> state machine
//
// Each detector reads the new snapshot and the shared history and returns
// zero or more events. The state machine is then fed every event of the tick
// in order, and a StateChanged event is appended for each transition. The
// combo detector follows the machine's current state from the next tick on,
// so context-gated patterns switch cleanly between ticks.
//
// Events come back in detector order, not sub-tick chronological order. All
// events of a tick share its timestamp.
//
// # Usage
//
//	h, err := input.NewHandler(input.DefaultConfig(), input.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	for raw := range samples {
//	    for _, ev := range h.Tick(raw) {
//	        dispatch(ev)
//	    }
//	}
//
// Use one Handler per player or input context. Handler methods are safe for
// concurrent use so a transport and a config watcher may share one, but
// ticks are processed one at a time.
package input
