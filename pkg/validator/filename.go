package validator

import (
	"path/filepath"
	"regexp"
	"strings"
)

// MaxFilenameLength caps sanitized filenames, keeping room for the storage
// path's timestamp and random suffix within common 255-byte filesystem limits.
const MaxFilenameLength = 200

// Extensions that are never acceptable regardless of category. Content checks
// catch disguised binaries; this list blocks the honest ones early.
var dangerousExtensions = map[string]struct{}{
	".exe": {}, ".dll": {}, ".bat": {}, ".cmd": {}, ".com": {},
	".scr": {}, ".pif": {}, ".msi": {}, ".vbs": {}, ".vbe": {},
	".jar": {}, ".ps1": {}, ".sh": {}, ".app": {}, ".deb": {},
	".rpm": {}, ".dmg": {}, ".cpl": {}, ".gadget": {}, ".hta": {},
}

var (
	unsafeChars      = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)
	repeatedDashes   = regexp.MustCompile(`-{2,}`)
	repeatedDots     = regexp.MustCompile(`\.{2,}`)
	windowsReserved  = regexp.MustCompile(`(?i)^(con|prn|aux|nul|com[1-9]|lpt[1-9])$`)
	controlCharRange = regexp.MustCompile("[\x00-\x1f\x7f]")
)

// Sanitize strips path components and unsafe characters from a filename and
// caps its length while preserving the extension. It is idempotent:
// Sanitize(Sanitize(f)) == Sanitize(f).
func Sanitize(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	filename = filepath.Base(filename)
	filename = controlCharRange.ReplaceAllString(filename, "")

	switch filename {
	case "", ".", "..", "/":
		return "unnamed"
	}

	ext := strings.ToLower(filepath.Ext(filename))
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))

	stem = unsafeChars.ReplaceAllString(stem, "-")
	stem = repeatedDashes.ReplaceAllString(stem, "-")
	stem = strings.Trim(stem, "-.")

	ext = unsafeChars.ReplaceAllString(ext, "")
	ext = repeatedDots.ReplaceAllString(ext, ".")

	if stem == "" || windowsReserved.MatchString(stem) {
		stem = "unnamed"
	}

	if len(stem)+len(ext) > MaxFilenameLength {
		keep := MaxFilenameLength - len(ext)
		if keep < 1 {
			keep = 1
		}
		stem = strings.Trim(stem[:keep], "-.")
		if stem == "" {
			stem = "unnamed"
		}
	}

	return stem + ext
}

// checkFilename validates the raw filename and appends findings to the result.
func checkFilename(filename string, res *Result) {
	if filename == "" {
		res.Errors = append(res.Errors, "filename is empty")
		return
	}
	if len(filename) > 512 {
		res.Errors = append(res.Errors, "filename exceeds maximum length")
	}
	if strings.ContainsAny(filename, "\x00") || controlCharRange.MatchString(filename) {
		res.Errors = append(res.Errors, "filename contains control characters")
	}
	if strings.Contains(filename, "..") {
		res.Errors = append(res.Errors, "filename contains path traversal sequence")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := dangerousExtensions[ext]; ok {
		res.Errors = append(res.Errors, "file extension "+ext+" is not allowed")
	}

	// A second extension hidden before the final one (report.pdf.exe is
	// caught above; report.exe.pdf is only suspicious).
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	if innerExt := strings.ToLower(filepath.Ext(stem)); innerExt != "" {
		if _, ok := dangerousExtensions[innerExt]; ok {
			res.Warnings = append(res.Warnings, "filename contains a hidden executable extension "+innerExt)
		}
	}
}
