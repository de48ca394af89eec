package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS record_stores (
		name       TEXT PRIMARY KEY,
		columns    TEXT[] NOT NULL,
		rows       JSONB NOT NULL,
		bom        BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		idempotency_key TEXT NOT NULL,
		method          TEXT NOT NULL,
		route           TEXT NOT NULL,
		body_hash       TEXT NOT NULL,
		status_code     INTEGER NOT NULL,
		content_type    TEXT NOT NULL,
		body            BYTEA NOT NULL,
		created_at      TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (idempotency_key, method, route, body_hash)
	)`,
}

// Migrate creates the tables used by the Postgres adapters. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
