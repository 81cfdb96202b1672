package scanner

import "errors"

var (
	ErrEngineUnavailable = errors.New("scanner: engine unavailable")
	ErrScanTimeout       = errors.New("scanner: scan timed out")
	ErrResultNotReady    = errors.New("scanner: result not ready")
	ErrUnknownScanID     = errors.New("scanner: unknown scan id")
	ErrInvalidPolicy     = errors.New("scanner: invalid policy")
)
