// Package pg bootstraps a pgx/v5 connection pool for the components that
// persist to PostgreSQL, such as durable audit event storage. Connect retries
// with a growing delay so services survive a database that comes up slower
// than they do, and Healthcheck adapts the pool to the standard
// func(context.Context) error probe signature.
package pg
