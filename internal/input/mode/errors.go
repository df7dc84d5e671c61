package mode

import (
	"errors"
	"fmt"
)

// Errors returned by the mode package.
var (
	// ErrEmptyState is returned when a state name is empty.
	ErrEmptyState = errors.New("empty state name")

	// ErrUnknownState is returned when a state is not part of the machine.
	ErrUnknownState = errors.New("unknown state")

	// ErrLuaCompile is returned when a Lua guard fails to compile.
	ErrLuaCompile = errors.New("lua guard compile failed")
)

// GuardError describes a guard that could not be built.
type GuardError struct {
	Name string
	Err  error
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("guard %q: %v", e.Name, e.Err)
}

func (e *GuardError) Unwrap() error { return e.Err }
