package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// State identifies a machine state.
type State string

// Event triggers a state transition.
type Event string

// Guard evaluates whether a transition is allowed at fire time.
type Guard func(ctx context.Context, from State, data any) bool

// Action runs side effects before the state change. Returning an error
// aborts the transition and leaves the machine in its current state.
type Action func(ctx context.Context, from, to State, data any) error

type transition struct {
	to     State
	guard  Guard
	action Action
}

// Machine is a thread-safe finite state machine. Transitions are registered
// up front; Fire applies events at runtime. Once the machine enters a state
// marked terminal, all further events are rejected.
type Machine struct {
	mu          sync.RWMutex
	current     State
	transitions map[State]map[Event]transition
	terminal    map[State]struct{}
}

// New creates a machine starting in the given state.
func New(initial State) *Machine {
	return &Machine{
		current:     initial,
		transitions: make(map[State]map[Event]transition),
		terminal:    make(map[State]struct{}),
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// AddTransition registers a transition. Guard and action may be nil.
func (m *Machine) AddTransition(from, to State, event Event, guard Guard, action Action) error {
	if from == "" || to == "" || event == "" {
		return ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transitions[from]; !ok {
		m.transitions[from] = make(map[Event]transition)
	}
	m.transitions[from][event] = transition{to: to, guard: guard, action: action}
	return nil
}

// MarkTerminal flags states as terminal.
func (m *Machine) MarkTerminal(states ...State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range states {
		m.terminal[s] = struct{}{}
	}
}

// InTerminal reports whether the current state is terminal.
func (m *Machine) InTerminal() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.terminal[m.current]
	return ok
}

// Fire applies an event. The action, if any, runs before the state change;
// an action error aborts the transition.
func (m *Machine) Fire(ctx context.Context, event Event, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.terminal[m.current]; ok {
		return fmt.Errorf("%w: %s", ErrTerminalState, m.current)
	}

	t, ok := m.transitions[m.current][event]
	if !ok {
		return fmt.Errorf("%w: state %q, event %q", ErrUnknownTransition, m.current, event)
	}

	if t.guard != nil && !t.guard(ctx, m.current, data) {
		return fmt.Errorf("%w: state %q, event %q", ErrTransitionRejected, m.current, event)
	}

	if t.action != nil {
		if err := t.action(ctx, m.current, t.to, data); err != nil {
			return fmt.Errorf("statemachine: action failed: %w", err)
		}
	}

	m.current = t.to
	return nil
}

// CanFire reports whether the event would be accepted in the current state.
func (m *Machine) CanFire(ctx context.Context, event Event, data any) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.terminal[m.current]; ok {
		return false
	}

	t, ok := m.transitions[m.current][event]
	if !ok {
		return false
	}
	return t.guard == nil || t.guard(ctx, m.current, data)
}
