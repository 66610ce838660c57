package state

import "fmt"

// StateError reports an invariant violation in GameState construction or
// merge (spec §7, "State error"). Engine.RunTurn records its message in
// GameState.Error and also returns an error for it; Engine.Start returns it
// wrapped, with no state.
type StateError struct {
	msg string
}

func NewStateError(format string, args ...any) *StateError {
	return &StateError{msg: fmt.Sprintf(format, args...)}
}

func (e *StateError) Error() string {
	return e.msg
}
