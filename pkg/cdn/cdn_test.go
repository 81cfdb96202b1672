package cdn_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/filekit/pkg/cdn"
)

func TestNew_InvalidBaseURL(t *testing.T) {
	t.Parallel()

	for _, base := range []string{"", "not a url", "/relative/only"} {
		_, err := cdn.New(base)
		assert.ErrorIs(t, err, cdn.ErrInvalidBaseURL, "base %q", base)
	}
}

func TestGetURL_SortedParamsAndCacheDirective(t *testing.T) {
	t.Parallel()

	m, err := cdn.New("https://cdn.example.com")
	require.NoError(t, err)

	u := m.GetURL("tenant-a/image/photo.jpg", cdn.Transformation{
		Width:   640,
		Quality: 80,
		Format:  "webp",
		Crop:    "fill",
	}, cdn.CacheMedium, "tenant-a")

	// Transform params appear sorted by key, then cache, then org.
	assert.Equal(t,
		"https://cdn.example.com/tenant-a/image/photo.jpg?c=fill&f=webp&q=80&w=640&cache=3600&org=tenant-a",
		u,
	)
}

func TestGetURL_CacheLevels(t *testing.T) {
	t.Parallel()

	m, err := cdn.New("https://cdn.example.com")
	require.NoError(t, err)

	tests := []struct {
		level   cdn.CacheLevel
		seconds int
	}{
		{cdn.CacheNone, 0},
		{cdn.CacheShort, 300},
		{cdn.CacheMedium, 3600},
		{cdn.CacheLong, 86400},
		{cdn.CachePermanent, 2592000},
	}
	for _, tt := range tests {
		u := m.GetURL("p/f.jpg", cdn.Transformation{}, tt.level, "")
		assert.Contains(t, u, fmt.Sprintf("cache=%d", tt.seconds))
	}
}

func TestGetURL_SignedURL(t *testing.T) {
	t.Parallel()

	m, err := cdn.New("https://cdn.example.com",
		cdn.WithSigningKey([]byte("secret"), 0))
	require.NoError(t, err)

	raw := m.GetURL("t/doc.pdf", cdn.Transformation{Width: 100}, cdn.CacheShort, "t")

	parsed, err := url.Parse(raw)
	require.NoError(t, err)

	q := parsed.Query()
	require.NotEmpty(t, q.Get("expires"))
	require.NotEmpty(t, q.Get("signature"))

	expires, err := strconv.ParseInt(q.Get("expires"), 10, 64)
	require.NoError(t, err)

	// Reconstruct the signed portion: everything before &expires=.
	signedQuery := raw[strings.Index(raw, "?")+1:]
	signedQuery = signedQuery[:strings.Index(signedQuery, "&expires=")]

	assert.True(t, m.Verify("t/doc.pdf", signedQuery, expires, q.Get("signature")))
	assert.False(t, m.Verify("t/doc.pdf", signedQuery, expires, "forged"))
	assert.False(t, m.Verify("t/other.pdf", signedQuery, expires, q.Get("signature")))
}

func TestGetURL_FallbackOnBadPath(t *testing.T) {
	t.Parallel()

	m, err := cdn.New("https://cdn.example.com")
	require.NoError(t, err)

	u := m.GetURL("../etc/passwd", cdn.Transformation{Width: 10}, cdn.CacheShort, "t")
	assert.Equal(t, "https://cdn.example.com/../etc/passwd", u)
	assert.NotContains(t, u, "?")
}

func TestGetPresetURL(t *testing.T) {
	t.Parallel()

	m, err := cdn.New("https://cdn.example.com")
	require.NoError(t, err)

	u := m.GetPresetURL("t/avatar.png", "avatar", cdn.CacheLong, "t")
	assert.Contains(t, u, "w=128")
	assert.Contains(t, u, "h=128")
	assert.Contains(t, u, "g=face")

	// Unknown preset serves the fallback.
	u = m.GetPresetURL("t/avatar.png", "gigantic", cdn.CacheLong, "t")
	assert.Equal(t, "https://cdn.example.com/t/avatar.png", u)
}

func TestGetResponsiveSet(t *testing.T) {
	t.Parallel()

	m, err := cdn.New("https://cdn.example.com")
	require.NoError(t, err)

	set := m.GetResponsiveSet("t/hero.jpg", []int{320, 768}, cdn.CacheMedium, "t")
	require.Len(t, set, 2)
	assert.Contains(t, set[320], "w=320")
	assert.Contains(t, set[768], "w=768")

	// Nil breakpoints use the default set.
	set = m.GetResponsiveSet("t/hero.jpg", nil, cdn.CacheMedium, "t")
	assert.Len(t, set, 6)
}

type recordingPurger struct {
	paths []string
	err   error
}

func (p *recordingPurger) Purge(ctx context.Context, paths []string) error {
	p.paths = append(p.paths, paths...)
	return p.err
}

func TestInvalidate(t *testing.T) {
	t.Parallel()

	purger := &recordingPurger{}
	m, err := cdn.New("https://cdn.example.com", cdn.WithPurger(purger))
	require.NoError(t, err)

	require.NoError(t, m.Invalidate(context.Background(), []string{"t/a.jpg"}, "t"))
	assert.Equal(t, []string{"t/a.jpg"}, purger.paths)

	purger.err = errors.New("edge down")
	assert.Error(t, m.Invalidate(context.Background(), []string{"t/b.jpg"}, "t"))
}

func TestPurgeTenant(t *testing.T) {
	t.Parallel()

	m, err := cdn.New("https://cdn.example.com")
	require.NoError(t, err)

	m.GetURL("t1/a.jpg", cdn.Transformation{}, cdn.CacheShort, "t1")
	m.GetURL("t1/b.jpg", cdn.Transformation{}, cdn.CacheShort, "t1")
	m.GetURL("t2/c.jpg", cdn.Transformation{}, cdn.CacheShort, "t2")

	assert.Equal(t, 2, m.PurgeTenant(context.Background(), "t1"))
	assert.Equal(t, 0, m.PurgeTenant(context.Background(), ""))
}
