package cdn

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/filekit/pkg/cache"
)

const urlCacheTTL = 5 * time.Minute

// Purger notifies the backing CDN that cached content must be dropped.
type Purger interface {
	Purge(ctx context.Context, paths []string) error
}

// Manager builds and caches delivery URLs.
type Manager struct {
	baseURL    string
	signingKey []byte
	signedTTL  time.Duration
	purger     Purger
	log        *slog.Logger
	urls       *cache.TTLCache[string, string]
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithSigningKey enables HMAC-signed URLs with the given expiry window.
func WithSigningKey(key []byte, ttl time.Duration) Option {
	return func(m *Manager) {
		m.signingKey = key
		if ttl > 0 {
			m.signedTTL = ttl
		}
	}
}

// WithPurger attaches the CDN purge client used by Invalidate.
func WithPurger(p Purger) Option {
	return func(m *Manager) { m.purger = p }
}

// WithLogger attaches a structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

// withClock overrides time for deterministic tests.
func withClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager serving URLs under baseURL.
func New(baseURL string, opts ...Option) (*Manager, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, ErrInvalidBaseURL
	}

	m := &Manager{
		baseURL:   strings.TrimRight(baseURL, "/"),
		signedTTL: time.Hour,
		log:       slog.Default(),
		urls:      cache.New[string, string](4096, urlCacheTTL),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// GetURL builds a delivery URL for path. Transform parameters are appended
// in sorted order, followed by the cache directive, the tenant marker, and,
// when a signing key is configured, an expiry and signature. Any build
// failure falls back to the plain base URL for the path.
func (m *Manager) GetURL(path string, transform Transformation, level CacheLevel, tenantID string) string {
	cleaned, err := cleanPath(path)
	if err != nil {
		m.log.Warn("url build failed, serving fallback", slog.String("path", path), slog.Any("error", err))
		return m.fallback(path)
	}

	key := cleaned + "|" + transform.cacheKey() + "|" + string(level) + "|" + tenantID
	if u, ok := m.urls.Get(key); ok {
		return u
	}

	var query []string
	query = append(query, transform.params()...)
	query = append(query, fmt.Sprintf("cache=%d", level.Seconds()))
	if tenantID != "" {
		query = append(query, "org="+url.QueryEscape(tenantID))
	}

	built := m.baseURL + "/" + cleaned + "?" + strings.Join(query, "&")

	if len(m.signingKey) > 0 {
		expires := m.now().Add(m.signedTTL).Unix()
		signature := m.sign(cleaned, strings.Join(query, "&"), expires)
		built = fmt.Sprintf("%s&expires=%d&signature=%s", built, expires, signature)
	}

	m.urls.Set(key, built)
	return built
}

// sign computes the HMAC-SHA256 over "path?query&expires=<ts>".
func (m *Manager) sign(path, query string, expires int64) string {
	mac := hmac.New(sha256.New, m.signingKey)
	fmt.Fprintf(mac, "%s?%s&expires=%d", path, query, expires)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature produced by GetURL. Expired URLs never verify.
func (m *Manager) Verify(path, query string, expires int64, signature string) bool {
	if len(m.signingKey) == 0 || m.now().Unix() > expires {
		return false
	}
	expected := m.sign(path, query, expires)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// GetPresetURL builds a URL using a named transformation preset.
func (m *Manager) GetPresetURL(path, preset string, level CacheLevel, tenantID string) string {
	t, err := Preset(preset)
	if err != nil {
		m.log.Warn("unknown preset, serving fallback", slog.String("preset", preset))
		return m.fallback(path)
	}
	return m.GetURL(path, t, level, tenantID)
}

// GetResponsiveSet returns one URL per breakpoint width. Nil breakpoints
// means the default set.
func (m *Manager) GetResponsiveSet(path string, breakpoints []int, level CacheLevel, tenantID string) map[int]string {
	if breakpoints == nil {
		breakpoints = defaultBreakpoints
	}
	out := make(map[int]string, len(breakpoints))
	for _, w := range breakpoints {
		out[w] = m.GetURL(path, Transformation{Width: w, Crop: "fit"}, level, tenantID)
	}
	return out
}

// Invalidate drops cached URLs for the given paths and asks the backing CDN
// to purge them. Purge failures are logged; local invalidation always wins.
func (m *Manager) Invalidate(ctx context.Context, paths []string, tenantID string) error {
	for _, p := range paths {
		cleaned, err := cleanPath(p)
		if err != nil {
			continue
		}
		prefix := cleaned + "|"
		m.urls.DeleteFunc(func(key string) bool {
			if !strings.HasPrefix(key, prefix) {
				return false
			}
			return tenantID == "" || strings.HasSuffix(key, "|"+tenantID)
		})
	}

	if m.purger != nil {
		if err := m.purger.Purge(ctx, paths); err != nil {
			m.log.ErrorContext(ctx, "cdn purge failed",
				slog.Int("paths", len(paths)),
				slog.Any("error", err),
			)
			return err
		}
	}
	return nil
}

// PurgeTenant drops every cached URL scoped to the tenant.
func (m *Manager) PurgeTenant(ctx context.Context, tenantID string) int {
	if tenantID == "" {
		return 0
	}
	return m.urls.DeleteFunc(func(key string) bool {
		return strings.HasSuffix(key, "|"+tenantID)
	})
}

func (m *Manager) fallback(path string) string {
	return m.baseURL + "/" + strings.TrimLeft(path, "/")
}

func cleanPath(path string) (string, error) {
	cleaned := strings.TrimLeft(strings.TrimSpace(path), "/")
	if cleaned == "" {
		return "", ErrEmptyPath
	}
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("%w: traversal in %q", ErrEmptyPath, path)
	}
	return cleaned, nil
}
