// Package mode provides the input state machine that gates which bindings
// are active.
//
// A Machine holds a fixed initial state and an explicit transition table
// keyed by source state. Each transition names a Trigger (an event kind,
// optionally narrowed to an action or pattern), a Guard and a target state.
// Feeding an event takes the first transition, in registration order, whose
// trigger matches and whose guard holds. State-specific transitions are
// consulted before global ones. When nothing matches the state is unchanged
// and Feed returns None.
//
// # Guards
//
// Guards are composable values rather than interfaces:
//
//	guard := mode.And(
//	    mode.Equals("menu", "closed"),
//	    mode.Not(mode.Custom("aiming", func(env mode.Env) bool {
//	        return env.Snapshot.Action("aim").Pressed
//	    })),
//	)
//
// Lua compiles a sandboxed Lua chunk into a guard, for guards that are
// defined in configuration files.
//
// There are no implicit timeouts. Every transition is driven by an event.
package mode
