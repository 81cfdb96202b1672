package tenantstore

import (
	"context"
	"slices"
	"sync"
	"time"
)

// FileIndex records stored-file metadata per tenant, feeding usage analytics
// and retention cleanup.
type FileIndex interface {
	Add(ctx context.Context, tenantID string, rec FileRecord) error
	Remove(ctx context.Context, tenantID, path string) error
	List(ctx context.Context, tenantID string) ([]FileRecord, error)
}

// MemoryIndex is an in-process FileIndex.
type MemoryIndex struct {
	mu    sync.RWMutex
	files map[string][]FileRecord
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{files: make(map[string][]FileRecord)}
}

func (i *MemoryIndex) Add(ctx context.Context, tenantID string, rec FileRecord) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	i.files[tenantID] = append(i.files[tenantID], rec)
	return nil
}

func (i *MemoryIndex) Remove(ctx context.Context, tenantID, path string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.files[tenantID] = slices.DeleteFunc(i.files[tenantID], func(r FileRecord) bool {
		return r.Path == path
	})
	return nil
}

func (i *MemoryIndex) List(ctx context.Context, tenantID string) ([]FileRecord, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return slices.Clone(i.files[tenantID]), nil
}
