package blob

import "errors"

var (
	ErrInvalidPath      = errors.New("blob: invalid path") // Prevents path traversal attacks
	ErrInvalidNamespace = errors.New("blob: namespace is required")
	ErrObjectNotFound   = errors.New("blob: object not found")
	ErrBucketNotFound   = errors.New("blob: bucket not found")
	ErrAccessDenied     = errors.New("blob: access denied")
	ErrUnavailable      = errors.New("blob: backend temporarily unavailable")
	ErrTimeout          = errors.New("blob: operation timed out")
	ErrCanceled         = errors.New("blob: operation canceled")
	ErrInvalidConfig    = errors.New("blob: invalid configuration")
	ErrLoadConfig       = errors.New("blob: failed to load AWS config")
)
