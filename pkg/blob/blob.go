package blob

import (
	"context"
	"strings"
	"time"
)

// Object describes a stored object returned by List.
type Object struct {
	Path        string
	Size        int64
	ContentType string
	ModifiedAt  time.Time
}

// ListFilter narrows List results. A zero filter returns every object in the
// namespace.
type ListFilter struct {
	Prefix string
	Limit  int // 0 means no limit
}

// Store is the backend collaborator contract. All paths are relative to the
// tenant namespace; implementations must never let one namespace read
// another's objects.
type Store interface {
	// Put stores an object under namespace/path.
	Put(ctx context.Context, namespace, path string, data []byte, contentType string) error

	// Get returns the raw stored bytes.
	Get(ctx context.Context, namespace, path string) ([]byte, error)

	// SignedURL returns a time-limited download URL for the object.
	SignedURL(ctx context.Context, namespace, path string, ttl time.Duration) (string, error)

	// Delete removes an object. Deleting a missing object is an error.
	Delete(ctx context.Context, namespace, path string) error

	// Copy duplicates src to dst within the same namespace.
	Copy(ctx context.Context, namespace, src, dst string) error

	// List returns objects in the namespace matching the filter.
	List(ctx context.Context, namespace string, filter ListFilter) ([]Object, error)
}

// cleanPath validates and normalizes a namespace-relative path.
func cleanPath(namespace, path string) (string, error) {
	if namespace == "" {
		return "", ErrInvalidNamespace
	}
	path = strings.TrimPrefix(path, "/")
	if path == "" || strings.Contains(path, "..") || strings.Contains(path, "\x00") {
		return "", ErrInvalidPath
	}
	return strings.TrimSuffix(namespace, "/") + "/" + path, nil
}
