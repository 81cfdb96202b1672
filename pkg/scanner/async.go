package scanner

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// resultRegistry tracks in-flight asynchronous scans by correlation id.
type resultRegistry struct {
	mu      sync.RWMutex
	results map[string]Result
}

func newResultRegistry() *resultRegistry {
	return &resultRegistry{results: make(map[string]Result)}
}

func (r *resultRegistry) set(id string, res Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[id] = res
}

func (r *resultRegistry) get(id string) (Result, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[id]
	return res, ok
}

func (r *resultRegistry) delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.results, id)
}

// SubmitAsync starts a scan in the background and returns a correlation id
// immediately. Poll Result with the id to retrieve the outcome. The content
// slice must not be mutated until the scan completes.
func (s *Scanner) SubmitAsync(ctx context.Context, content []byte, filename, category string) string {
	id := uuid.New().String()
	s.pending.set(id, Result{ID: id, Status: StatusScanning})

	go func() {
		res := s.Scan(ctx, content, filename, category)
		res.ID = id
		s.pending.set(id, res)
	}()

	return id
}

// Result returns the outcome of an asynchronous scan. It returns
// ErrResultNotReady while the scan is still running and ErrUnknownScanID for
// ids this scanner never issued. A terminal result is removed from the
// registry once retrieved.
func (s *Scanner) Result(id string) (Result, error) {
	res, ok := s.pending.get(id)
	if !ok {
		return Result{}, ErrUnknownScanID
	}
	if res.Status == StatusScanning || res.Status == StatusPending {
		return res, ErrResultNotReady
	}
	s.pending.delete(id)
	return res, nil
}
