package tenantstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dmitrymomot/filekit/pkg/audit"
	"github.com/dmitrymomot/filekit/pkg/blob"
	"github.com/dmitrymomot/filekit/pkg/cache"
)

const (
	usageCacheTTL     = 5 * time.Minute
	namespaceCacheTTL = time.Hour
	topFilesLimit     = 10
	activityWindow    = 7 // days
)

// Manager coordinates tenant namespaces, quotas, and usage analytics.
type Manager struct {
	quotas  QuotaStore
	index   FileIndex
	store   blob.Store
	auditor audit.Logger
	log     *slog.Logger

	namespaces *cache.TTLCache[string, Namespace]
	usageCache *cache.TTLCache[string, Usage]

	mu     sync.RWMutex
	limits map[string]Quota
}

// Option configures a Manager.
type Option func(*Manager)

// WithBlobStore attaches the backend used by retention cleanup to remove
// objects. Without it cleanup only updates the index and quota counters.
func WithBlobStore(s blob.Store) Option {
	return func(m *Manager) { m.store = s }
}

// WithAuditLogger attaches an audit sink.
func WithAuditLogger(l audit.Logger) Option {
	return func(m *Manager) { m.auditor = l }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// NewManager creates a Manager backed by the given quota store and file index.
func NewManager(quotas QuotaStore, index FileIndex, opts ...Option) *Manager {
	if quotas == nil || index == nil {
		panic("tenantstore: quota store and file index are required")
	}
	m := &Manager{
		quotas:     quotas,
		index:      index,
		log:        slog.Default(),
		namespaces: cache.New[string, Namespace](1024, namespaceCacheTTL),
		usageCache: cache.New[string, Usage](1024, usageCacheTTL),
		limits:     make(map[string]Quota),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetOrCreateNamespace provisions a tenant namespace on first use and returns
// the cached record afterwards. New namespaces get default content-type and
// size policies.
func (m *Manager) GetOrCreateNamespace(ctx context.Context, tenantID string) (Namespace, error) {
	if tenantID == "" {
		return Namespace{}, ErrInvalidTenantID
	}
	if ns, ok := m.namespaces.Get(tenantID); ok {
		return ns, nil
	}

	ns := Namespace{
		TenantID:     tenantID,
		Name:         "tenant-" + tenantID,
		AllowedTypes: []string{"image/*", "application/pdf", "text/*", "application/zip"},
		MaxFileBytes: 100 << 20,
		QuotaBytes:   DefaultQuotaBytes,
		WarningPct:   DefaultWarningPct,
		CriticalPct:  DefaultCriticalPct,
		CreatedAt:    time.Now(),
	}
	m.namespaces.Set(tenantID, ns)

	m.mu.Lock()
	if _, ok := m.limits[tenantID]; !ok {
		m.limits[tenantID] = Quota{
			TenantID:    tenantID,
			TotalBytes:  DefaultQuotaBytes,
			WarningPct:  DefaultWarningPct,
			CriticalPct: DefaultCriticalPct,
		}
	}
	m.mu.Unlock()

	if m.auditor != nil {
		if err := m.auditor.Log(ctx, "tenant.namespace.provision",
			audit.WithTenant(tenantID),
			audit.WithResource("namespace", ns.Name),
		); err != nil {
			m.log.WarnContext(ctx, "audit emission failed", slog.Any("error", err))
		}
	}
	return ns, nil
}

func (m *Manager) quota(tenantID string) Quota {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if q, ok := m.limits[tenantID]; ok {
		return q
	}
	return Quota{
		TenantID:    tenantID,
		TotalBytes:  DefaultQuotaBytes,
		WarningPct:  DefaultWarningPct,
		CriticalPct: DefaultCriticalPct,
	}
}

// CheckQuota reports whether additional bytes fit within the tenant's limit.
// A quota-store outage fails open: the check passes, a warning is logged, and
// an audit event records the bypass.
func (m *Manager) CheckQuota(ctx context.Context, tenantID string, additional int64) bool {
	q := m.quota(tenantID)
	used, err := m.quotas.Usage(ctx, tenantID)
	if err != nil {
		m.log.WarnContext(ctx, "quota lookup failed, allowing upload",
			slog.String("tenant_id", tenantID),
			slog.Any("error", err),
		)
		if m.auditor != nil {
			if aerr := m.auditor.LogError(ctx, "tenant.quota.check_bypassed", err,
				audit.WithTenant(tenantID),
				audit.WithSeverity(audit.SeverityWarning),
				audit.WithDetail("additional_bytes", additional),
			); aerr != nil {
				m.log.WarnContext(ctx, "audit emission failed", slog.Any("error", aerr))
			}
		}
		return true
	}
	return used+additional <= q.TotalBytes
}

// Reserve atomically claims bytes against the tenant's quota. It returns
// ErrQuotaExceeded when the reservation does not fit and ErrQuotaUnavailable
// on a store outage; the caller decides whether an outage fails open.
func (m *Manager) Reserve(ctx context.Context, tenantID string, bytes int64) error {
	if tenantID == "" {
		return ErrInvalidTenantID
	}
	return m.quotas.Reserve(ctx, tenantID, bytes, m.quota(tenantID).TotalBytes)
}

// Release returns previously reserved bytes, after a deletion or a failed
// upload.
func (m *Manager) Release(ctx context.Context, tenantID string, bytes int64) error {
	if tenantID == "" {
		return ErrInvalidTenantID
	}
	return m.quotas.Release(ctx, tenantID, bytes)
}

// RecordFile indexes a persisted file for usage analytics.
func (m *Manager) RecordFile(ctx context.Context, tenantID string, rec FileRecord) error {
	m.usageCache.Delete(tenantID)
	return m.index.Add(ctx, tenantID, rec)
}

// ForgetFile removes a file from the index after deletion.
func (m *Manager) ForgetFile(ctx context.Context, tenantID, path string) error {
	m.usageCache.Delete(tenantID)
	return m.index.Remove(ctx, tenantID, path)
}

// GetUsage returns an aggregated usage snapshot, cached for five minutes
// unless forceRefresh is set.
func (m *Manager) GetUsage(ctx context.Context, tenantID string, forceRefresh bool) (Usage, error) {
	if tenantID == "" {
		return Usage{}, ErrInvalidTenantID
	}
	if !forceRefresh {
		if u, ok := m.usageCache.Get(tenantID); ok {
			return u, nil
		}
	}

	files, err := m.index.List(ctx, tenantID)
	if err != nil {
		return Usage{}, fmt.Errorf("tenantstore: list files: %w", err)
	}

	q := m.quota(tenantID)
	u := Usage{
		TenantID:    tenantID,
		QuotaBytes:  q.TotalBytes,
		FileCount:   len(files),
		ByCategory:  make(map[string]CategoryUsage),
		GeneratedAt: time.Now(),
	}
	for _, f := range files {
		u.TotalBytes += f.SizeBytes
		cu := u.ByCategory[f.Category]
		cu.FileCount++
		cu.TotalBytes += f.SizeBytes
		u.ByCategory[f.Category] = cu
	}
	u.LargestFiles = topFiles(files, func(a, b FileRecord) bool { return a.SizeBytes > b.SizeBytes })
	u.OldestFiles = topFiles(files, func(a, b FileRecord) bool { return a.CreatedAt.Before(b.CreatedAt) })
	u.RecentActivity = recentActivity(files, time.Now())

	m.usageCache.Set(tenantID, u)
	return u, nil
}

func topFiles(files []FileRecord, less func(a, b FileRecord) bool) []FileRecord {
	sorted := make([]FileRecord, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	if len(sorted) > topFilesLimit {
		sorted = sorted[:topFilesLimit]
	}
	return sorted
}

func recentActivity(files []FileRecord, now time.Time) []DailyActivity {
	days := make([]DailyActivity, activityWindow)
	today := now.Truncate(24 * time.Hour)
	for i := range days {
		days[i].Date = today.AddDate(0, 0, -(activityWindow - 1 - i))
	}
	cutoff := today.AddDate(0, 0, -(activityWindow - 1))
	for _, f := range files {
		day := f.CreatedAt.Truncate(24 * time.Hour)
		if day.Before(cutoff) || day.After(today) {
			continue
		}
		idx := activityWindow - 1 - int(today.Sub(day).Hours()/24)
		if idx < 0 || idx >= activityWindow {
			continue
		}
		days[idx].FileCount++
		days[idx].TotalBytes += f.SizeBytes
	}
	return days
}

// CheckAlerts reports quota threshold crossings for a tenant. At most one
// alert is returned, the most severe applicable level.
func (m *Manager) CheckAlerts(ctx context.Context, tenantID string) ([]Alert, error) {
	u, err := m.GetUsage(ctx, tenantID, false)
	if err != nil {
		return nil, err
	}
	q := m.quota(tenantID)
	if q.TotalBytes <= 0 {
		return nil, nil
	}

	pct := float64(u.TotalBytes) / float64(q.TotalBytes) * 100

	var level AlertLevel
	switch {
	case pct >= 100:
		level = AlertExceeded
	case pct >= float64(q.CriticalPct):
		level = AlertCritical
	case pct >= float64(q.WarningPct):
		level = AlertWarning
	default:
		return nil, nil
	}
	return []Alert{{
		TenantID:   tenantID,
		Level:      level,
		UsedBytes:  u.TotalBytes,
		QuotaBytes: q.TotalBytes,
		UsedPct:    pct,
	}}, nil
}

// CleanupOldFiles removes files older than maxAgeDays, optionally limited to
// the given categories, and returns the removal count. Backend deletion
// failures skip the file and keep accounting consistent.
func (m *Manager) CleanupOldFiles(ctx context.Context, tenantID string, maxAgeDays int, categories ...string) (int, error) {
	if tenantID == "" {
		return 0, ErrInvalidTenantID
	}
	files, err := m.index.List(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("tenantstore: list files: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	ns, err := m.GetOrCreateNamespace(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	matchCategory := func(c string) bool {
		if len(categories) == 0 {
			return true
		}
		for _, want := range categories {
			if c == want {
				return true
			}
		}
		return false
	}

	removed := 0
	for _, f := range files {
		if f.CreatedAt.After(cutoff) || !matchCategory(f.Category) {
			continue
		}
		if m.store != nil {
			if err := m.store.Delete(ctx, ns.Name, f.Path); err != nil {
				m.log.WarnContext(ctx, "cleanup delete failed",
					slog.String("tenant_id", tenantID),
					slog.String("path", f.Path),
					slog.Any("error", err),
				)
				continue
			}
		}
		if err := m.index.Remove(ctx, tenantID, f.Path); err != nil {
			return removed, err
		}
		if err := m.quotas.Release(ctx, tenantID, f.SizeBytes); err != nil {
			m.log.WarnContext(ctx, "quota release failed during cleanup",
				slog.String("tenant_id", tenantID),
				slog.Any("error", err),
			)
		}
		removed++
	}

	if removed > 0 {
		m.usageCache.Delete(tenantID)
	}
	return removed, nil
}

// UpdateQuota replaces a tenant's quota configuration and invalidates cached
// usage and namespace records.
func (m *Manager) UpdateQuota(ctx context.Context, q Quota) error {
	if q.TenantID == "" {
		return ErrInvalidTenantID
	}
	if q.WarningPct <= 0 {
		q.WarningPct = DefaultWarningPct
	}
	if q.CriticalPct <= 0 {
		q.CriticalPct = DefaultCriticalPct
	}

	m.mu.Lock()
	m.limits[q.TenantID] = q
	m.mu.Unlock()

	m.usageCache.Delete(q.TenantID)
	m.namespaces.Delete(q.TenantID)
	return nil
}
