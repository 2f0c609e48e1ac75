package statemachine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRule   = errors.New("statemachine: rule needs from, to and event")
	ErrTerminalState = errors.New("statemachine: state is terminal")
	ErrNoTransition  = errors.New("statemachine: no transition for event")
	ErrGuardRejected = errors.New("statemachine: rejected by guard")
)

// TransitionError reports why Fire could not leave From on Event.
// It unwraps to ErrTerminalState, ErrNoTransition or ErrGuardRejected.
type TransitionError struct {
	From  string
	Event string
	Err   error
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s on %q from %q", e.Err, e.Event, e.From)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// IsIllegal reports whether err came from a transition that the table refused.
func IsIllegal(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
