// Package validator performs structural and security validation of uploaded
// files: filename hygiene, per-category size ceilings, content-sniffed MIME
// verification, magic-number checks, category-specific content inspection and
// embedded-executable detection.
//
// Validate never returns an error for malformed input. Problems accumulate in
// the Result; only the orchestrator decides whether a result aborts an upload.
// A sanitized filename is produced regardless of validity.
package validator
