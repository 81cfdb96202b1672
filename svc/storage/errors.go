package storage

import "errors"

var (
	// ErrValidation marks client-correctable input problems. Never retried.
	ErrValidation = errors.New("storage: validation failed")

	// ErrQuotaExceeded marks an upload the tenant has no room for.
	ErrQuotaExceeded = errors.New("storage: quota exceeded")

	// ErrVirusDetected marks infected content. Always drives the configured
	// quarantine action.
	ErrVirusDetected = errors.New("storage: virus detected")

	// ErrCompliance marks a hard compliance violation blocking persistence.
	ErrCompliance = errors.New("storage: compliance violation")

	// ErrEncryption is fatal: nothing persists unencrypted when encryption
	// is required.
	ErrEncryption = errors.New("storage: encryption failed")

	// ErrTenantIsolation is always fatal and always audited.
	ErrTenantIsolation = errors.New("storage: tenant isolation violation")

	// ErrBackendUnavailable marks transient backend failures, retried with
	// backoff by the orchestrator only.
	ErrBackendUnavailable = errors.New("storage: backend unavailable")

	ErrSessionNotFound = errors.New("storage: upload session not found")
	ErrCancelled       = errors.New("storage: upload cancelled")
	ErrFileNotFound    = errors.New("storage: file not found")
	ErrSizeMismatch    = errors.New("storage: uploaded bytes exceed declared total")
)
