// Package blob defines the narrow object-storage contract the ingestion
// pipeline depends on: put, get, signed-url, delete, copy and list, all
// scoped to a tenant namespace. Any backend implementing Store is
// interchangeable.
//
// Two implementations ship with the package: an S3 adapter for production
// and an in-memory store for tests. The implementation is selected at
// startup configuration; pipeline code never probes for availability.
package blob
