// Package security determines the compliance posture of uploaded content and
// enforces it: PII pattern detection, compliance-level resolution per content
// category, authenticated encryption with tenant-derived keys, and access
// validation with tenant isolation as the first and hardest gate.
//
// Every security-relevant decision emits an audit event. Audit sink failures
// are logged and never abort the primary operation.
package security
