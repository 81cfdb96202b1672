package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/filekit/pkg/statemachine"
)

// Upload session states.
const (
	SessionPending    statemachine.State = "pending"
	SessionUploading  statemachine.State = "uploading"
	SessionProcessing statemachine.State = "processing"
	SessionCompleted  statemachine.State = "completed"
	SessionFailed     statemachine.State = "failed"
	SessionCancelled  statemachine.State = "cancelled"
)

// Session lifecycle events.
const (
	eventStart    statemachine.Event = "start"
	eventProcess  statemachine.Event = "process"
	eventComplete statemachine.Event = "complete"
	eventFail     statemachine.Event = "fail"
	eventCancel   statemachine.Event = "cancel"
)

// UploadSession tracks one upload's lifecycle. Terminal states are
// completed, failed, and cancelled; bytes uploaded never exceed the declared
// total.
type UploadSession struct {
	ID string

	mu            sync.RWMutex
	machine       *statemachine.Machine
	bytesUploaded int64
	totalBytes    int64
	failure       error
}

func newSession(totalBytes int64) *UploadSession {
	m := statemachine.New(SessionPending)
	_ = m.AddTransition(SessionPending, SessionUploading, eventStart, nil, nil)
	_ = m.AddTransition(SessionUploading, SessionProcessing, eventProcess, nil, nil)
	_ = m.AddTransition(SessionProcessing, SessionCompleted, eventComplete, nil, nil)
	for _, from := range []statemachine.State{SessionPending, SessionUploading, SessionProcessing} {
		_ = m.AddTransition(from, SessionFailed, eventFail, nil, nil)
		_ = m.AddTransition(from, SessionCancelled, eventCancel, nil, nil)
	}
	m.MarkTerminal(SessionCompleted, SessionFailed, SessionCancelled)

	return &UploadSession{
		ID:         uuid.New().String(),
		machine:    m,
		totalBytes: totalBytes,
	}
}

// Status returns the session's current state.
func (s *UploadSession) Status() statemachine.State {
	return s.machine.Current()
}

// Err returns the failure recorded when the session failed.
func (s *UploadSession) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.failure
}

// Bytes returns uploaded and total byte counts.
func (s *UploadSession) Bytes() (uploaded, total int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytesUploaded, s.totalBytes
}

func (s *UploadSession) fire(ctx context.Context, event statemachine.Event) error {
	return s.machine.Fire(ctx, event, nil)
}

func (s *UploadSession) fail(ctx context.Context, err error) {
	s.mu.Lock()
	s.failure = err
	s.mu.Unlock()
	_ = s.machine.Fire(ctx, eventFail, nil)
}

func (s *UploadSession) cancel(ctx context.Context) {
	s.mu.Lock()
	s.failure = ErrCancelled
	s.mu.Unlock()
	_ = s.machine.Fire(ctx, eventCancel, nil)
}

// addBytes records chunk progress, enforcing the declared total.
func (s *UploadSession) addBytes(n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalBytes > 0 && s.bytesUploaded+n > s.totalBytes {
		return ErrSizeMismatch
	}
	s.bytesUploaded += n
	return nil
}

func (s *UploadSession) progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := Progress{
		SessionID:     s.ID,
		BytesUploaded: s.bytesUploaded,
		TotalBytes:    s.totalBytes,
	}
	if s.totalBytes > 0 {
		p.Percent = float64(s.bytesUploaded) / float64(s.totalBytes) * 100
	}
	return p
}
