package statemachine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filekit/pkg/statemachine"
)

const (
	statePending    statemachine.State = "pending"
	stateUploading  statemachine.State = "uploading"
	stateProcessing statemachine.State = "processing"
	stateCompleted  statemachine.State = "completed"
	stateFailed     statemachine.State = "failed"

	eventStart    statemachine.Event = "start"
	eventProcess  statemachine.Event = "process"
	eventComplete statemachine.Event = "complete"
	eventFail     statemachine.Event = "fail"
)

func newUploadMachine(t *testing.T) *statemachine.Machine {
	t.Helper()

	m := statemachine.New(statePending)
	require.NoError(t, m.AddTransition(statePending, stateUploading, eventStart, nil, nil))
	require.NoError(t, m.AddTransition(stateUploading, stateProcessing, eventProcess, nil, nil))
	require.NoError(t, m.AddTransition(stateProcessing, stateCompleted, eventComplete, nil, nil))
	require.NoError(t, m.AddTransition(stateProcessing, stateFailed, eventFail, nil, nil))
	m.MarkTerminal(stateCompleted, stateFailed)
	return m
}

func TestMachine_HappyPath(t *testing.T) {
	t.Parallel()

	m := newUploadMachine(t)
	ctx := context.Background()

	require.NoError(t, m.Fire(ctx, eventStart, nil))
	require.NoError(t, m.Fire(ctx, eventProcess, nil))
	require.NoError(t, m.Fire(ctx, eventComplete, nil))
	assert.Equal(t, stateCompleted, m.Current())
	assert.True(t, m.InTerminal())
}

func TestMachine_TerminalStateRejectsEvents(t *testing.T) {
	t.Parallel()

	m := newUploadMachine(t)
	ctx := context.Background()

	require.NoError(t, m.Fire(ctx, eventStart, nil))
	require.NoError(t, m.Fire(ctx, eventProcess, nil))
	require.NoError(t, m.Fire(ctx, eventFail, nil))

	err := m.Fire(ctx, eventComplete, nil)
	assert.ErrorIs(t, err, statemachine.ErrTerminalState)
	assert.Equal(t, stateFailed, m.Current())
}

func TestMachine_UnknownTransition(t *testing.T) {
	t.Parallel()

	m := newUploadMachine(t)
	err := m.Fire(context.Background(), eventComplete, nil)
	assert.ErrorIs(t, err, statemachine.ErrUnknownTransition)
	assert.Equal(t, statePending, m.Current())
}

func TestMachine_GuardRejects(t *testing.T) {
	t.Parallel()

	m := statemachine.New(statePending)
	guard := func(ctx context.Context, from statemachine.State, data any) bool {
		return data == "allowed"
	}
	require.NoError(t, m.AddTransition(statePending, stateUploading, eventStart, guard, nil))

	ctx := context.Background()
	err := m.Fire(ctx, eventStart, "denied")
	assert.ErrorIs(t, err, statemachine.ErrTransitionRejected)
	assert.False(t, m.CanFire(ctx, eventStart, "denied"))

	require.NoError(t, m.Fire(ctx, eventStart, "allowed"))
	assert.Equal(t, stateUploading, m.Current())
}

func TestMachine_ActionFailureAbortsTransition(t *testing.T) {
	t.Parallel()

	m := statemachine.New(statePending)
	boom := errors.New("boom")
	action := func(ctx context.Context, from, to statemachine.State, data any) error {
		return boom
	}
	require.NoError(t, m.AddTransition(statePending, stateUploading, eventStart, nil, action))

	err := m.Fire(context.Background(), eventStart, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, statePending, m.Current())
}

func TestMachine_InvalidTransition(t *testing.T) {
	t.Parallel()

	m := statemachine.New(statePending)
	err := m.AddTransition("", stateUploading, eventStart, nil, nil)
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)
}
