// Package storage orchestrates the upload pipeline: validate, reserve quota,
// scan, check compliance, encrypt when required, persist, derive image
// variants, and compute delivery URLs. It owns the upload session state
// machine and is the only layer that turns component results into pipeline
// aborts.
//
// Stage order is fixed. Any stage failure marks the session failed and
// removes content already persisted by a later stage, so the backend never
// holds orphaned objects. Variant derivation and URL computation are the
// exception: once persistence succeeds, their failures downgrade to warnings.
package storage
