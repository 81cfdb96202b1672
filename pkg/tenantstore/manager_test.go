package tenantstore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filekit/pkg/blob"
	"github.com/dmitrymomot/filekit/pkg/tenantstore"
)

func newManager(opts ...tenantstore.Option) (*tenantstore.Manager, *tenantstore.MemoryQuotaStore, *tenantstore.MemoryIndex) {
	quotas := tenantstore.NewMemoryQuotaStore()
	index := tenantstore.NewMemoryIndex()
	return tenantstore.NewManager(quotas, index, opts...), quotas, index
}

func TestGetOrCreateNamespace_Idempotent(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager()
	ctx := context.Background()

	ns1, err := m.GetOrCreateNamespace(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, "tenant-tenant-a", ns1.Name)
	assert.Equal(t, tenantstore.DefaultQuotaBytes, ns1.QuotaBytes)
	assert.NotEmpty(t, ns1.AllowedTypes)

	ns2, err := m.GetOrCreateNamespace(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, ns1.CreatedAt, ns2.CreatedAt)

	_, err = m.GetOrCreateNamespace(ctx, "")
	assert.ErrorIs(t, err, tenantstore.ErrInvalidTenantID)
}

func TestReserve_EnforcesQuota(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager()
	ctx := context.Background()

	require.NoError(t, m.UpdateQuota(ctx, tenantstore.Quota{TenantID: "t", TotalBytes: 100}))

	require.NoError(t, m.Reserve(ctx, "t", 60))
	require.NoError(t, m.Reserve(ctx, "t", 40))
	assert.ErrorIs(t, m.Reserve(ctx, "t", 1), tenantstore.ErrQuotaExceeded)

	require.NoError(t, m.Release(ctx, "t", 40))
	require.NoError(t, m.Reserve(ctx, "t", 40))
}

func TestReserve_ConcurrentExactlyOneWins(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager()
	ctx := context.Background()

	quota := int64(10 << 30)
	require.NoError(t, m.UpdateQuota(ctx, tenantstore.Quota{TenantID: "t", TotalBytes: quota}))

	sizes := []int64{6 << 30, 6 << 30}
	results := make([]error, len(sizes))

	var wg sync.WaitGroup
	for i, size := range sizes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = m.Reserve(ctx, "t", size)
		}()
	}
	wg.Wait()

	var passed, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			passed++
		default:
			require.ErrorIs(t, err, tenantstore.ErrQuotaExceeded)
			rejected++
		}
	}
	assert.Equal(t, 1, passed)
	assert.Equal(t, 1, rejected)
}

func TestCheckQuota_FailsOpenOnOutage(t *testing.T) {
	t.Parallel()

	m, quotas, _ := newManager()
	ctx := context.Background()

	require.NoError(t, m.UpdateQuota(ctx, tenantstore.Quota{TenantID: "t", TotalBytes: 100}))
	require.NoError(t, m.Reserve(ctx, "t", 100))

	assert.False(t, m.CheckQuota(ctx, "t", 1))

	quotas.SetUnavailable(true)
	assert.True(t, m.CheckQuota(ctx, "t", 1), "measurement outage must fail open")
}

func TestGetUsage(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager()
	ctx := context.Background()
	now := time.Now()

	records := []tenantstore.FileRecord{
		{Path: "a.jpg", Category: "image", SizeBytes: 300, CreatedAt: now.AddDate(0, 0, -1)},
		{Path: "b.pdf", Category: "document", SizeBytes: 700, CreatedAt: now.AddDate(0, 0, -3)},
		{Path: "c.jpg", Category: "image", SizeBytes: 100, CreatedAt: now.AddDate(0, -1, 0)},
	}
	for _, r := range records {
		require.NoError(t, m.RecordFile(ctx, "t", r))
	}

	u, err := m.GetUsage(ctx, "t", false)
	require.NoError(t, err)

	assert.Equal(t, int64(1100), u.TotalBytes)
	assert.Equal(t, 3, u.FileCount)
	assert.Equal(t, 2, u.ByCategory["image"].FileCount)
	assert.Equal(t, int64(400), u.ByCategory["image"].TotalBytes)
	assert.Equal(t, int64(700), u.ByCategory["document"].TotalBytes)

	require.NotEmpty(t, u.LargestFiles)
	assert.Equal(t, "b.pdf", u.LargestFiles[0].Path)
	require.NotEmpty(t, u.OldestFiles)
	assert.Equal(t, "c.jpg", u.OldestFiles[0].Path)

	require.Len(t, u.RecentActivity, 7)
	var recentCount int
	for _, day := range u.RecentActivity {
		recentCount += day.FileCount
	}
	assert.Equal(t, 2, recentCount, "only files within the 7-day window count")
}

func TestGetUsage_CachedUntilInvalidated(t *testing.T) {
	t.Parallel()

	m, _, _ := newManager()
	ctx := context.Background()

	require.NoError(t, m.RecordFile(ctx, "t", tenantstore.FileRecord{Path: "a", SizeBytes: 10, CreatedAt: time.Now()}))
	u1, err := m.GetUsage(ctx, "t", false)
	require.NoError(t, err)

	// A direct index mutation is invisible until refresh is forced.
	require.NoError(t, m.RecordFile(ctx, "t", tenantstore.FileRecord{Path: "b", SizeBytes: 20, CreatedAt: time.Now()}))

	u2, err := m.GetUsage(ctx, "t", true)
	require.NoError(t, err)
	assert.Greater(t, u2.TotalBytes, u1.TotalBytes)
}

func TestCheckAlerts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		used  int64
		want  tenantstore.AlertLevel
		empty bool
	}{
		{"below warning", 50, "", true},
		{"warning", 85, tenantstore.AlertWarning, false},
		{"critical", 96, tenantstore.AlertCritical, false},
		{"exceeded", 100, tenantstore.AlertExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m, _, _ := newManager()
			ctx := context.Background()
			require.NoError(t, m.UpdateQuota(ctx, tenantstore.Quota{TenantID: "t", TotalBytes: 100}))
			require.NoError(t, m.RecordFile(ctx, "t", tenantstore.FileRecord{
				Path: "f", SizeBytes: tt.used, CreatedAt: time.Now(),
			}))

			alerts, err := m.CheckAlerts(ctx, "t")
			require.NoError(t, err)
			if tt.empty {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.want, alerts[0].Level)
		})
	}
}

func TestCleanupOldFiles(t *testing.T) {
	t.Parallel()

	store := blob.NewMemoryStore("https://files.example.com")
	m, quotas, _ := newManager(tenantstore.WithBlobStore(store))
	ctx := context.Background()

	ns, err := m.GetOrCreateNamespace(ctx, "t")
	require.NoError(t, err)

	old := time.Now().AddDate(0, 0, -100)
	fresh := time.Now()

	files := []tenantstore.FileRecord{
		{Path: "old.jpg", Category: "image", SizeBytes: 10, CreatedAt: old},
		{Path: "old.pdf", Category: "document", SizeBytes: 20, CreatedAt: old},
		{Path: "new.jpg", Category: "image", SizeBytes: 30, CreatedAt: fresh},
	}
	for _, f := range files {
		require.NoError(t, store.Put(ctx, ns.Name, f.Path, []byte("x"), "application/octet-stream"))
		require.NoError(t, m.Reserve(ctx, "t", f.SizeBytes))
		require.NoError(t, m.RecordFile(ctx, "t", f))
	}

	removed, err := m.CleanupOldFiles(ctx, "t", 30, "image")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = store.Get(ctx, ns.Name, "old.jpg")
	assert.ErrorIs(t, err, blob.ErrObjectNotFound)
	_, err = store.Get(ctx, ns.Name, "old.pdf")
	assert.NoError(t, err, "other categories survive")

	used, err := quotas.Usage(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, int64(50), used)
}
