package tenantstore

import "time"

// DefaultQuotaBytes is the per-tenant storage limit applied at provisioning.
const DefaultQuotaBytes int64 = 10 << 30 // 10 GiB

// Default alert thresholds, percent of quota.
const (
	DefaultWarningPct  = 80
	DefaultCriticalPct = 95
)

// Namespace is a tenant's isolated storage root and its content policies.
type Namespace struct {
	TenantID     string
	Name         string
	AllowedTypes []string
	MaxFileBytes int64
	QuotaBytes   int64
	WarningPct   int
	CriticalPct  int
	CreatedAt    time.Time
}

// Quota is a tenant's storage limit and alert thresholds.
type Quota struct {
	TenantID    string
	TotalBytes  int64
	WarningPct  int
	CriticalPct int
}

// FileRecord is the index entry for one stored file, the unit of usage
// accounting and retention cleanup.
type FileRecord struct {
	Path      string
	Category  string
	SizeBytes int64
	CreatedAt time.Time
}

// Usage is an aggregated snapshot of a tenant's storage consumption.
type Usage struct {
	TenantID       string
	TotalBytes     int64
	QuotaBytes     int64
	FileCount      int
	ByCategory     map[string]CategoryUsage
	LargestFiles   []FileRecord
	OldestFiles    []FileRecord
	RecentActivity []DailyActivity
	GeneratedAt    time.Time
}

// CategoryUsage is the per-category slice of a usage snapshot.
type CategoryUsage struct {
	FileCount  int
	TotalBytes int64
}

// DailyActivity counts uploads for one day in the recent-activity window.
type DailyActivity struct {
	Date       time.Time
	FileCount  int
	TotalBytes int64
}

// AlertLevel ranks quota alerts.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"  // usage at or above the warning threshold
	AlertCritical AlertLevel = "critical" // usage at or above the critical threshold
	AlertExceeded AlertLevel = "exceeded" // usage at or above the quota
)

// Alert is a threshold crossing for one tenant.
type Alert struct {
	TenantID   string
	Level      AlertLevel
	UsedBytes  int64
	QuotaBytes int64
	UsedPct    float64
}
