package imaging

import "errors"

var (
	ErrDecodeFailed      = errors.New("imaging: cannot decode image")
	ErrEncodeFailed      = errors.New("imaging: cannot encode image")
	ErrUnsupportedFormat = errors.New("imaging: unsupported format")
	ErrEmptyContent      = errors.New("imaging: empty content")
)
