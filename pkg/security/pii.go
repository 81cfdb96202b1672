package security

import (
	"regexp"
)

// PIIType identifies a family of personally identifiable information.
type PIIType string

const (
	PIITypeIdentifier PIIType = "identifier" // government-issued identifiers
	PIITypeEmail      PIIType = "email"
	PIITypePhone      PIIType = "phone"
	PIITypePayment    PIIType = "payment" // card numbers
	PIITypeStudentID  PIIType = "student_id"
	PIITypeDOB        PIIType = "date_of_birth"
	PIITypeAddress    PIIType = "address"
)

// PIISeverity ranks how damaging exposure of a finding would be.
type PIISeverity int

const (
	PIISeverityLow PIISeverity = iota + 1
	PIISeverityMedium
	PIISeverityHigh
)

func (s PIISeverity) String() string {
	switch s {
	case PIISeverityHigh:
		return "high"
	case PIISeverityMedium:
		return "medium"
	default:
		return "low"
	}
}

// PIIFinding is one pattern match inside scanned content. The matched text is
// never stored, only its location and a redacted sample.
type PIIFinding struct {
	Type       PIIType
	Severity   PIISeverity
	Confidence float64
	Offset     int
	Length     int
	Sample     string
}

type piiDetector struct {
	piiType    PIIType
	severity   PIISeverity
	confidence float64
	pattern    *regexp.Regexp
	verify     func(match string) bool
}

var piiDetectors = []piiDetector{
	{
		piiType:    PIITypePayment,
		severity:   PIISeverityHigh,
		confidence: 0.9,
		pattern:    regexp.MustCompile(`\b(?:\d[ -]?){13,18}\d\b`),
		verify:     luhnValid,
	},
	{
		piiType:    PIITypeIdentifier,
		severity:   PIISeverityHigh,
		confidence: 0.85,
		pattern:    regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
	},
	{
		piiType:    PIITypeStudentID,
		severity:   PIISeverityMedium,
		confidence: 0.75,
		pattern:    regexp.MustCompile(`(?i)\bSTU[-_]?\d{6,10}\b`),
	},
	{
		piiType:    PIITypeDOB,
		severity:   PIISeverityMedium,
		confidence: 0.6,
		pattern:    regexp.MustCompile(`(?i)\b(?:dob|date of birth|born)[:\s]+\d{1,4}[-/]\d{1,2}[-/]\d{1,4}\b`),
	},
	{
		piiType:    PIITypePhone,
		severity:   PIISeverityMedium,
		confidence: 0.6,
		pattern:    regexp.MustCompile(`\b(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]\d{3}[-. ]\d{4}\b`),
	},
	{
		piiType:    PIITypeAddress,
		severity:   PIISeverityMedium,
		confidence: 0.5,
		pattern:    regexp.MustCompile(`(?i)\b\d{1,5}\s+\w+(?:\s\w+)?\s+(?:street|st|avenue|ave|road|rd|boulevard|blvd|lane|ln|drive|dr)\.?\b`),
	},
	{
		piiType:    PIITypeEmail,
		severity:   PIISeverityLow,
		confidence: 0.95,
		pattern:    regexp.MustCompile(`\b[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}\b`),
	},
}

// maxPIIScanBytes bounds the text window inspected for PII patterns.
const maxPIIScanBytes = 1 << 20

// DetectPII scans content for PII patterns and returns typed findings.
// Binary content (NUL in the inspection window) is skipped entirely.
func DetectPII(content []byte) []PIIFinding {
	window := content
	if len(window) > maxPIIScanBytes {
		window = window[:maxPIIScanBytes]
	}
	for _, b := range window {
		if b == 0 {
			return nil
		}
	}

	var findings []PIIFinding
	text := string(window)
	for _, d := range piiDetectors {
		for _, loc := range d.pattern.FindAllStringIndex(text, -1) {
			match := text[loc[0]:loc[1]]
			if d.verify != nil && !d.verify(match) {
				continue
			}
			findings = append(findings, PIIFinding{
				Type:       d.piiType,
				Severity:   d.severity,
				Confidence: d.confidence,
				Offset:     loc[0],
				Length:     loc[1] - loc[0],
				Sample:     redact(match),
			})
		}
	}
	return findings
}

// MaxSeverity returns the highest severity among findings, or zero if none.
func MaxSeverity(findings []PIIFinding) PIISeverity {
	var max PIISeverity
	for _, f := range findings {
		if f.Severity > max {
			max = f.Severity
		}
	}
	return max
}

// redact keeps the first and last character and masks the rest.
func redact(s string) string {
	if len(s) <= 4 {
		return "****"
	}
	masked := make([]byte, len(s))
	for i := range masked {
		masked[i] = '*'
	}
	masked[0] = s[0]
	masked[len(s)-1] = s[len(s)-1]
	return string(masked)
}

// luhnValid filters digit runs that are not plausible card numbers.
func luhnValid(s string) bool {
	var digits []int
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
