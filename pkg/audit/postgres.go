package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/filekit/pkg/pg"
)

// PostgresStorage persists audit events to a Postgres table.
//
// Expected schema:
//
//	CREATE TABLE audit_events (
//	    id          UUID PRIMARY KEY,
//	    tenant_id   TEXT NOT NULL DEFAULT '',
//	    user_id     TEXT NOT NULL DEFAULT '',
//	    action      TEXT NOT NULL,
//	    resource    TEXT NOT NULL DEFAULT '',
//	    resource_id TEXT NOT NULL DEFAULT '',
//	    result      TEXT NOT NULL,
//	    severity    TEXT NOT NULL,
//	    error       TEXT NOT NULL DEFAULT '',
//	    details     JSONB,
//	    created_at  TIMESTAMPTZ NOT NULL
//	);
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a Postgres-backed storage using the given pool.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	if pool == nil {
		panic("audit: pgx pool cannot be nil")
	}
	return &PostgresStorage{pool: pool}
}

// NewPostgresStorageFromConfig connects to Postgres with retry and wraps the
// pool in an audit storage. Intended for service bootstrap.
func NewPostgresStorageFromConfig(ctx context.Context, cfg pg.Config) (*PostgresStorage, error) {
	pool, err := pg.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewPostgresStorage(pool), nil
}

func (s *PostgresStorage) Store(ctx context.Context, event Event) error {
	return s.StoreBatch(ctx, []Event{event})
}

func (s *PostgresStorage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageNotAvailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insert = `INSERT INTO audit_events
		(id, tenant_id, user_id, action, resource, resource_id, result, severity, error, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	for _, e := range events {
		details, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("audit: marshal details: %w", err)
		}
		if _, err := tx.Exec(ctx, insert,
			e.ID, e.TenantID, e.UserID, e.Action, e.Resource, e.ResourceID,
			string(e.Result), string(e.Severity), e.Error, details, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("audit: insert event: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PostgresStorage) Query(ctx context.Context, criteria Criteria) ([]Event, error) {
	query := `SELECT id, tenant_id, user_id, action, resource, resource_id, result, severity, error, details, created_at
		FROM audit_events WHERE 1=1`
	args := []any{}

	if criteria.TenantID != "" {
		args = append(args, criteria.TenantID)
		query += fmt.Sprintf(" AND tenant_id = $%d", len(args))
	}
	if criteria.Action != "" {
		args = append(args, criteria.Action)
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}
	if criteria.Severity != "" {
		args = append(args, string(criteria.Severity))
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if !criteria.Since.IsZero() {
		args = append(args, criteria.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	query += " ORDER BY created_at DESC"
	if criteria.Limit > 0 {
		args = append(args, criteria.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageNotAvailable, err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var details []byte
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Action, &e.Resource, &e.ResourceID,
			&e.Result, &e.Severity, &e.Error, &details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &e.Details); err != nil {
				return nil, fmt.Errorf("audit: unmarshal details: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
