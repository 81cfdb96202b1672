package audit

import (
	"context"
	"sync"
)

// MemoryStorage keeps events in memory. Intended for tests and single-node
// deployments where the audit trail is shipped elsewhere by a log collector.
type MemoryStorage struct {
	mu       sync.RWMutex
	events   []Event
	failNext bool
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// FailNext makes the next Store call return an error. Test hook for
// exercising audit-failure paths.
func (s *MemoryStorage) FailNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = true
}

func (s *MemoryStorage) Store(ctx context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return ErrStorageFailure
	}
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryStorage) StoreBatch(ctx context.Context, events []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	return nil
}

func (s *MemoryStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if criteria.TenantID != "" && e.TenantID != criteria.TenantID {
			continue
		}
		if criteria.Action != "" && e.Action != criteria.Action {
			continue
		}
		if criteria.Severity != "" && e.Severity != criteria.Severity {
			continue
		}
		if !criteria.Since.IsZero() && e.CreatedAt.Before(criteria.Since) {
			continue
		}
		out = append(out, e)
		if criteria.Limit > 0 && len(out) >= criteria.Limit {
			break
		}
	}
	return out, nil
}

// Len returns the number of stored events.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
