// Package scanner submits uploaded content to an external malware scanning
// engine, normalizes results, and resolves the quarantine action dictated by
// policy.
//
// The engine is a collaborator behind the Engine interface: a clamd adapter
// for production and an in-memory double for tests, selected at startup
// configuration. Scan never returns a Go error; inconclusive outcomes are
// reported as StatusError, never as StatusInfected.
package scanner
