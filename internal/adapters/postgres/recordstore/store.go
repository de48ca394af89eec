package recordstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	postgres "github.com/aid-distribution/ticket-api/internal/adapters/postgres"
	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

// DefaultName is the register name used when none is configured.
const DefaultName = "default"

// Store is a Postgres implementation of recordstore.Store.
//
// The register is kept as one snapshot row (header + ordered rows as JSONB) so that Save
// keeps whole-table replace semantics in a single statement.
type Store struct {
	pool *pgxpool.Pool
	name string
}

func NewStore(pool *pgxpool.Pool, name string) *Store {
	if name == "" {
		name = DefaultName
	}
	return &Store{pool: pool, name: name}
}

func (s *Store) Location() string { return "postgres:record_stores/" + s.name }

func (s *Store) Load(ctx context.Context) (recordstore.Table, error) {
	if s.pool == nil {
		return recordstore.Table{}, s.fail(recordstore.ErrCorrupt, errors.New("nil postgres pool"))
	}
	var (
		t    recordstore.Table
		rows []recordstore.Record
	)
	err := s.pool.QueryRow(ctx, `
		SELECT columns, rows, bom
		FROM record_stores
		WHERE name = $1
	`, s.name).Scan(&t.Columns, &rows, &t.BOM)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return recordstore.Table{}, s.fail(recordstore.ErrNotFound, nil)
		case postgres.IsPermissionDenied(err):
			return recordstore.Table{}, s.fail(recordstore.ErrUnreadable, err)
		}
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UndefinedTableCode {
			return recordstore.Table{}, s.fail(recordstore.ErrNotFound, err)
		}
		return recordstore.Table{}, s.fail(recordstore.ErrCorrupt, err)
	}
	if rows == nil {
		rows = []recordstore.Record{}
	}
	t.Rows = rows
	if err := t.CheckSchema(); err != nil {
		return recordstore.Table{}, s.fail(recordstore.ErrCorrupt, err)
	}
	return t, nil
}

func (s *Store) Save(ctx context.Context, t recordstore.Table) error {
	if s.pool == nil {
		return s.fail(recordstore.ErrUnwritable, errors.New("nil postgres pool"))
	}
	if err := t.CheckSchema(); err != nil {
		return s.fail(recordstore.ErrUnwritable, err)
	}
	rows := t.Rows
	if rows == nil {
		rows = []recordstore.Record{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO record_stores (name, columns, rows, bom, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (name) DO UPDATE SET
			columns = EXCLUDED.columns,
			rows = EXCLUDED.rows,
			bom = EXCLUDED.bom,
			updated_at = EXCLUDED.updated_at
	`, s.name, t.Columns, rows, t.BOM)
	if err != nil {
		return s.fail(recordstore.ErrUnwritable, err)
	}
	return nil
}

func (s *Store) fail(kind error, err error) *recordstore.Error {
	return &recordstore.Error{
		Kind:       kind,
		Location:   s.Location(),
		Permission: postgres.IsPermissionDenied(err),
		Err:        err,
	}
}
