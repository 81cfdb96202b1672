package statemachine

import "errors"

var (
	ErrInvalidTransition  = errors.New("statemachine: from, to and event must be non-empty")
	ErrUnknownTransition  = errors.New("statemachine: no transition for state/event")
	ErrTransitionRejected = errors.New("statemachine: transition rejected by guard")
	ErrTerminalState      = errors.New("statemachine: machine is in a terminal state")
)
