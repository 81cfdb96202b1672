package cdn

import "errors"

var (
	ErrInvalidBaseURL = errors.New("cdn: invalid base url")
	ErrEmptyPath      = errors.New("cdn: path cannot be empty")
	ErrUnknownPreset  = errors.New("cdn: unknown preset")
)
