package security

import (
	"context"
	"fmt"
)

// Level classifies how strictly a content category must be protected.
type Level int

const (
	LevelNone Level = iota
	LevelStandard
	// LevelChildPrivacy applies to content about minors under 13.
	LevelChildPrivacy
	// LevelStudentRecord applies to education records and grades.
	LevelStudentRecord
)

func (l Level) String() string {
	switch l {
	case LevelStandard:
		return "standard"
	case LevelChildPrivacy:
		return "child_privacy"
	case LevelStudentRecord:
		return "student_record"
	default:
		return "none"
	}
}

// educationRegime reports whether the level is one of the education-specific
// regulatory regimes that force encryption at rest.
func (l Level) educationRegime() bool {
	return l == LevelChildPrivacy || l == LevelStudentRecord
}

// categoryLevels maps a content category to its required compliance level.
var categoryLevels = map[string]Level{
	"image":        LevelStandard,
	"document":     LevelStandard,
	"archive":      LevelStandard,
	"avatar":       LevelStandard,
	"assignment":   LevelStudentRecord,
	"grade_export": LevelStudentRecord,
	"transcript":   LevelStudentRecord,
	"roster":       LevelChildPrivacy,
	"student_work": LevelChildPrivacy,
}

// RequiredLevel resolves the compliance level a category demands.
func RequiredLevel(category string) Level {
	if l, ok := categoryLevels[category]; ok {
		return l
	}
	return LevelNone
}

// ComplianceCheck is the outcome of classifying one upload.
type ComplianceCheck struct {
	RequiredLevel      Level
	CurrentLevel       Level
	Findings           []PIIFinding
	EncryptionRequired bool
	Issues             []string
	Recommendations    []string
}

// Compliant reports whether the current posture satisfies the requirement.
func (c ComplianceCheck) Compliant() bool {
	return len(c.Issues) == 0
}

// CheckOptions carries caller intent into the compliance decision.
type CheckOptions struct {
	Category  string
	Encrypted bool
	Public    bool
}

// CheckCompliance classifies content and decides whether encryption at rest
// is mandatory. Encryption is required when PII at medium-or-higher severity
// is found, or the category falls under an education regime. The decision is
// audited; an audit failure never changes the result.
func (m *Manager) CheckCompliance(ctx context.Context, content []byte, filename string, opts CheckOptions, tenantID string) ComplianceCheck {
	check := ComplianceCheck{
		RequiredLevel: RequiredLevel(opts.Category),
		Findings:      DetectPII(content),
	}

	severity := MaxSeverity(check.Findings)
	check.EncryptionRequired = severity >= PIISeverityMedium || check.RequiredLevel.educationRegime()

	switch {
	case opts.Encrypted:
		check.CurrentLevel = check.RequiredLevel
	case check.RequiredLevel.educationRegime():
		check.CurrentLevel = LevelStandard
	default:
		check.CurrentLevel = check.RequiredLevel
	}

	if check.EncryptionRequired && !opts.Encrypted {
		check.Recommendations = append(check.Recommendations, "encrypt content before persistence")
	}
	if opts.Public && check.RequiredLevel.educationRegime() {
		check.Issues = append(check.Issues,
			fmt.Sprintf("category %q cannot be publicly accessible under %s regime", opts.Category, check.RequiredLevel))
	}
	if severity == PIISeverityHigh && opts.Public {
		check.Issues = append(check.Issues, "high-severity PII cannot be publicly accessible")
	}
	if severity > 0 {
		check.Recommendations = append(check.Recommendations,
			fmt.Sprintf("review %d PII finding(s) before sharing", len(check.Findings)))
	}

	m.audit(ctx, "compliance.check", tenantID, "file", filename, severityFor(check), map[string]any{
		"category":            opts.Category,
		"required_level":      check.RequiredLevel.String(),
		"pii_findings":        len(check.Findings),
		"encryption_required": check.EncryptionRequired,
		"issues":              len(check.Issues),
	})

	return check
}

func severityFor(check ComplianceCheck) string {
	switch {
	case len(check.Issues) > 0:
		return "warning"
	default:
		return "info"
	}
}
