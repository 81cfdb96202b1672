// Package audit records security-relevant events to an append-only sink.
//
// Every compliance check, access decision and quarantine action in the
// pipeline emits an event. Emission failures must never abort the primary
// operation: callers log the failure and continue.
//
// Storage implementations: in-memory (tests, small deployments), Postgres
// (production), and an async batching writer that wraps either.
package audit
