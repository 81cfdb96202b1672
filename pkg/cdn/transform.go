package cdn

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Transformation is the set of on-the-fly image manipulation parameters
// appended to a delivery URL.
type Transformation struct {
	Width   int
	Height  int
	Quality int
	Format  string
	Crop    string // fill, fit, scale
	Blur    int
	Gravity string // center, face, north, south
}

// IsZero reports whether no parameter is set.
func (t Transformation) IsZero() bool {
	return t == Transformation{}
}

// params returns the transformation as sorted key=value pairs.
func (t Transformation) params() []string {
	kv := map[string]string{}
	if t.Width > 0 {
		kv["w"] = fmt.Sprintf("%d", t.Width)
	}
	if t.Height > 0 {
		kv["h"] = fmt.Sprintf("%d", t.Height)
	}
	if t.Quality > 0 {
		kv["q"] = fmt.Sprintf("%d", t.Quality)
	}
	if t.Format != "" {
		kv["f"] = t.Format
	}
	if t.Crop != "" {
		kv["c"] = t.Crop
	}
	if t.Blur > 0 {
		kv["blur"] = fmt.Sprintf("%d", t.Blur)
	}
	if t.Gravity != "" {
		kv["g"] = t.Gravity
	}

	keys := make([]string, 0, len(kv))
	for k := range kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+kv[k])
	}
	return pairs
}

// cacheKey is a stable identity for URL caching.
func (t Transformation) cacheKey() string {
	return strings.Join(t.params(), "&")
}

// CacheLevel names how long the CDN edge may cache a URL's response.
type CacheLevel string

const (
	CacheNone      CacheLevel = "none"
	CacheShort     CacheLevel = "short"     // 5 minutes
	CacheMedium    CacheLevel = "medium"    // 1 hour
	CacheLong      CacheLevel = "long"      // 24 hours
	CachePermanent CacheLevel = "permanent" // 30 days
)

// Seconds returns the cache directive value for the level.
func (l CacheLevel) Seconds() int {
	switch l {
	case CacheShort:
		return int((5 * time.Minute).Seconds())
	case CacheMedium:
		return int(time.Hour.Seconds())
	case CacheLong:
		return int((24 * time.Hour).Seconds())
	case CachePermanent:
		return int((30 * 24 * time.Hour).Seconds())
	default:
		return 0
	}
}

// presets maps a named delivery profile to a fixed transformation.
var presets = map[string]Transformation{
	"avatar":           {Width: 128, Height: 128, Quality: 90, Crop: "fill", Gravity: "face"},
	"thumbnail":        {Width: 300, Height: 300, Quality: 80, Crop: "fill"},
	"document-preview": {Width: 800, Quality: 75, Format: "jpeg"},
	"mobile-optimized": {Width: 640, Quality: 70, Format: "webp"},
}

// Preset returns the transformation registered under name.
func Preset(name string) (Transformation, error) {
	t, ok := presets[name]
	if !ok {
		return Transformation{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return t, nil
}

// defaultBreakpoints drive GetResponsiveSet when the caller passes none.
var defaultBreakpoints = []int{320, 640, 768, 1024, 1366, 1920}
