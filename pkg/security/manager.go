package security

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/filekit/pkg/audit"
)

// Manager is the security component: compliance checks, tenant-keyed
// encryption, and access validation, all audited.
type Manager struct {
	masterKey []byte
	auditor   audit.Logger
	log       *slog.Logger

	mu         sync.RWMutex
	tenantKeys map[string][]byte
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithAuditLogger attaches an audit sink. Without one, events are dropped.
func WithAuditLogger(l audit.Logger) ManagerOption {
	return func(m *Manager) { m.auditor = l }
}

// WithLogger attaches a structured logger for audit-failure reporting.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager creates a Manager. The master key must be 32 bytes; tenant keys
// are derived from it and cached for the process lifetime.
func NewManager(masterKey []byte, opts ...ManagerOption) (*Manager, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidMasterKey
	}
	m := &Manager{
		masterKey:  masterKey,
		log:        slog.Default(),
		tenantKeys: make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// audit emits an event and logs failures without propagating them.
func (m *Manager) audit(ctx context.Context, action, tenantID, resource, resourceID, severity string, details map[string]any) {
	if m.auditor == nil {
		return
	}

	opts := []audit.EventOption{
		audit.WithTenant(tenantID),
		audit.WithResource(resource, resourceID),
		audit.WithSeverity(auditSeverity(severity)),
	}
	for k, v := range details {
		opts = append(opts, audit.WithDetail(k, v))
	}

	if err := m.auditor.Log(ctx, action, opts...); err != nil {
		m.log.WarnContext(ctx, "audit emission failed",
			slog.String("action", action),
			slog.String("tenant_id", tenantID),
			slog.Any("error", err),
		)
	}
}

func auditSeverity(s string) audit.Severity {
	switch s {
	case "critical":
		return audit.SeverityCritical
	case "warning":
		return audit.SeverityWarning
	default:
		return audit.SeverityInfo
	}
}
