// Package tenantstore manages per-tenant storage state: namespace
// provisioning with default policies, quota accounting with atomic
// reserve/release, usage analytics, threshold alerts, and retention cleanup.
//
// Quota reservation is a single compare-and-swap per tenant so two concurrent
// uploads can never both pass a check that jointly exceeds the limit. Quota
// lookups that fail are treated as measurement outages and fail open with a
// warning; tenant-isolation failures are never softened this way.
package tenantstore
