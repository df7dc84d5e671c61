// Package modifier classifies presses of a single action by their timing.
//
// For every action the Detector keeps a small timer that follows the press
// from its press edge to its release edge and emits:
//
//   - Tap: released before the hold threshold
//   - DoubleTap: a tap released within the double-tap window of a previous tap
//   - Hold: held past the hold threshold (once per press)
//   - LongPress: held past the long-press threshold (once per press, no Hold after it)
//   - Released: every release, after any of the above
//
// Boundaries resolve toward the longer category: a press lasting exactly the
// hold threshold is a Hold, not a Tap.
//
// A press whose press edge was not observed (for example after Reset while
// the button was held) only produces Released.
package modifier
