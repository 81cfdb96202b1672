package tenantstore

import "errors"

var (
	ErrInvalidTenantID  = errors.New("tenantstore: tenant id cannot be empty")
	ErrQuotaExceeded    = errors.New("tenantstore: quota exceeded")
	ErrQuotaUnavailable = errors.New("tenantstore: quota store unavailable")
	ErrUnknownTenant    = errors.New("tenantstore: unknown tenant")
)
