package tenantstore

import (
	"context"
	"sync"
)

// QuotaStore tracks per-tenant byte usage. Reserve must be atomic: a
// reservation that would push usage past the limit fails without changing it.
type QuotaStore interface {
	Reserve(ctx context.Context, tenantID string, bytes, limit int64) error
	Release(ctx context.Context, tenantID string, bytes int64) error
	Usage(ctx context.Context, tenantID string) (int64, error)
}

// MemoryQuotaStore is an in-process QuotaStore for tests and single-node
// deployments.
type MemoryQuotaStore struct {
	mu    sync.Mutex
	usage map[string]int64
	fail  bool
}

// NewMemoryQuotaStore creates an empty quota store.
func NewMemoryQuotaStore() *MemoryQuotaStore {
	return &MemoryQuotaStore{usage: make(map[string]int64)}
}

// SetUnavailable simulates a measurement outage. Test hook.
func (s *MemoryQuotaStore) SetUnavailable(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = down
}

func (s *MemoryQuotaStore) Reserve(ctx context.Context, tenantID string, bytes, limit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrQuotaUnavailable
	}
	if s.usage[tenantID]+bytes > limit {
		return ErrQuotaExceeded
	}
	s.usage[tenantID] += bytes
	return nil
}

func (s *MemoryQuotaStore) Release(ctx context.Context, tenantID string, bytes int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return ErrQuotaUnavailable
	}
	s.usage[tenantID] -= bytes
	if s.usage[tenantID] < 0 {
		s.usage[tenantID] = 0
	}
	return nil
}

func (s *MemoryQuotaStore) Usage(ctx context.Context, tenantID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, ErrQuotaUnavailable
	}
	return s.usage[tenantID], nil
}
