// Package statemachine implements a small thread-safe finite state machine
// with guard conditions, transition actions, and terminal states.
//
// It drives lifecycles that must never leave a terminal state, such as an
// upload session that is done once it reaches completed, failed or cancelled.
package statemachine
