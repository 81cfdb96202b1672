package scanner

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy controls what gets scanned and what happens to infected files.
//
// Action precedence is deterministic: tenant override, then category
// override, then the global default.
type Policy struct {
	DefaultAction   Action            `yaml:"default_action"`
	TenantActions   map[string]Action `yaml:"tenant_actions"`
	CategoryActions map[string]Action `yaml:"category_actions"`
	SkipCategories  []string          `yaml:"skip_categories"`
	SkipExtensions  []string          `yaml:"skip_extensions"`
	MaxScanBytes    int64             `yaml:"max_scan_bytes"`
}

// DefaultMaxScanBytes caps the content size submitted to the engine.
const DefaultMaxScanBytes int64 = 100 << 20 // 100 MiB

// DefaultPolicy quarantines on detection and scans everything up to the size
// ceiling.
func DefaultPolicy() Policy {
	return Policy{
		DefaultAction: ActionQuarantine,
		MaxScanBytes:  DefaultMaxScanBytes,
	}
}

// LoadPolicy reads a Policy from a YAML file.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses YAML policy bytes, filling unset fields with defaults.
func ParsePolicy(data []byte) (Policy, error) {
	p := DefaultPolicy()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	if err := p.validate(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (p Policy) validate() error {
	valid := func(a Action) bool {
		return a == ActionQuarantine || a == ActionDelete || a == ActionNotify
	}
	if !valid(p.DefaultAction) {
		return fmt.Errorf("%w: unknown default action %q", ErrInvalidPolicy, p.DefaultAction)
	}
	for tenant, a := range p.TenantActions {
		if !valid(a) {
			return fmt.Errorf("%w: unknown action %q for tenant %q", ErrInvalidPolicy, a, tenant)
		}
	}
	for category, a := range p.CategoryActions {
		if !valid(a) {
			return fmt.Errorf("%w: unknown action %q for category %q", ErrInvalidPolicy, a, category)
		}
	}
	if p.MaxScanBytes <= 0 {
		return fmt.Errorf("%w: max_scan_bytes must be positive", ErrInvalidPolicy)
	}
	return nil
}

// ActionFor resolves the quarantine action: tenant override wins over
// category override, which wins over the global default.
func (p Policy) ActionFor(tenantID, category string) Action {
	if a, ok := p.TenantActions[tenantID]; ok {
		return a
	}
	if a, ok := p.CategoryActions[category]; ok {
		return a
	}
	return p.DefaultAction
}

// ShouldSkip reports whether policy excludes this file from scanning.
func (p Policy) ShouldSkip(filename, category string) bool {
	if slices.Contains(p.SkipCategories, category) {
		return true
	}
	if filename == "" {
		return false
	}
	lower := strings.ToLower(filename)
	for _, ext := range p.SkipExtensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
