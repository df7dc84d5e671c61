// Package sample defines the per-tick data model of the input engine and the
// ingestor that turns raw hardware samples into immutable snapshots.
//
// A Raw sample is whatever the device layer read during one tick: digital
// button states, analog axes, touch contacts and an optional motion reading.
// The Ingestor compares each Raw sample against the previous tick to compute
// edge flags (JustPressed, JustReleased), applies the analog deadzone, clamps
// touch coordinates and produces a Snapshot.
//
// Snapshots are immutable. Accessors return copies so that detectors reading
// a snapshot cannot influence each other.
//
// # Usage
//
//	in := sample.NewIngestor(sample.DefaultConfig())
//	snap := in.Ingest(sample.Raw{
//	    Time:    now,
//	    Buttons: map[sample.ActionID]bool{"jump": true},
//	})
//	if snap.Action("jump").JustPressed {
//	    // ...
//	}
package sample
