package blob

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	data        []byte
	contentType string
	modifiedAt  time.Time
}

// MemoryStore is an in-memory Store for tests and local development.
// It is safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memObject
	baseURL string
}

// NewMemoryStore creates an empty in-memory store. Signed URLs are synthetic
// and rooted at baseURL; pass "" for a "memory://" scheme.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = "memory://bucket"
	}
	return &MemoryStore{
		objects: make(map[string]memObject),
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

func (s *MemoryStore) Put(ctx context.Context, namespace, path string, data []byte, contentType string) error {
	key, err := cleanPath(namespace, path)
	if err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memObject{data: buf, contentType: contentType, modifiedAt: time.Now()}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, namespace, path string) ([]byte, error) {
	key, err := cleanPath(namespace, path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}

	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	return buf, nil
}

func (s *MemoryStore) SignedURL(ctx context.Context, namespace, path string, ttl time.Duration) (string, error) {
	key, err := cleanPath(namespace, path)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.objects[key]; !ok {
		return "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}

	expires := time.Now().Add(ttl).Unix()
	return fmt.Sprintf("%s/%s?expires=%d", s.baseURL, key, expires), nil
}

func (s *MemoryStore) Delete(ctx context.Context, namespace, path string) error {
	key, err := cleanPath(namespace, path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryStore) Copy(ctx context.Context, namespace, src, dst string) error {
	srcKey, err := cleanPath(namespace, src)
	if err != nil {
		return err
	}
	dstKey, err := cleanPath(namespace, dst)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[srcKey]
	if !ok {
		return fmt.Errorf("%w: %s", ErrObjectNotFound, srcKey)
	}

	buf := make([]byte, len(obj.data))
	copy(buf, obj.data)
	s.objects[dstKey] = memObject{data: buf, contentType: obj.contentType, modifiedAt: time.Now()}
	return nil
}

func (s *MemoryStore) List(ctx context.Context, namespace string, filter ListFilter) ([]Object, error) {
	if namespace == "" {
		return nil, ErrInvalidNamespace
	}
	prefix := strings.TrimSuffix(namespace, "/") + "/"
	if filter.Prefix != "" {
		prefix += strings.TrimPrefix(filter.Prefix, "/")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Object
	for key, obj := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, Object{
			Path:        strings.TrimPrefix(key, strings.TrimSuffix(namespace, "/")+"/"),
			Size:        int64(len(obj.data)),
			ContentType: obj.contentType,
			ModifiedAt:  obj.modifiedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len returns the number of stored objects across all namespaces.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
