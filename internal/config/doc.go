// Package config loads padstorm configuration from TOML.
//
// A configuration file holds the detector thresholds, the chord and combo
// patterns, and the input state machine table:
//
//	log_level = "debug"
//
//	[input]
//	clash = "longest"
//	calibration = "dualsense"
//
//	[input.modifier]
//	hold = "300ms"
//
//	[[chords]]
//	id = "super"
//	actions = ["l1", "r1"]
//	tolerance = "50ms"
//	contexts = ["play"]
//
//	[[combos]]
//	id = "hadouken"
//	steps = [["down"], ["down", "right"], ["right"], ["punch"]]
//	window = "600ms"
//
//	[machine]
//	initial = "menu"
//
//	[[machine.transitions]]
//	from = "menu"
//	on = "tap:start"
//	to = "play"
//
//	[[machine.transitions]]
//	on = "shake"
//	to = "pause"
//	lua = "state ~= 'menu' and not pressed('l2')"
//
// Keys missing from a file keep their defaults. Unknown keys are rejected.
// Durations use time.ParseDuration syntax.
package config
