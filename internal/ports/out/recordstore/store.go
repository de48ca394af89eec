package recordstore

import (
	"context"
	"errors"
	"fmt"
)

var errNoColumns = errors.New("table has no columns")

// Record is one row of the register, keyed by header name.
// Field order lives in Table.Columns, not in the record.
type Record map[string]string

// Clone returns an independent copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is the whole register: the header in file order plus every row in file order.
type Table struct {
	Columns []string
	Rows    []Record

	// BOM records whether the source started with a UTF-8 byte order mark, so Save can
	// write it back.
	BOM bool
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	out := Table{BOM: t.BOM}
	if t.Columns != nil {
		out.Columns = append([]string(nil), t.Columns...)
	}
	if t.Rows != nil {
		out.Rows = make([]Record, len(t.Rows))
		for i, r := range t.Rows {
			out.Rows[i] = r.Clone()
		}
	}
	return out
}

// Store loads and persists the full register. There is no record-level write:
// Save replaces the stored table with exactly the table it is given.
//
// Implementations do not serialize callers. A Load → mutate → Save sequence run by two
// callers at once loses one of the updates unless the caller holds its own lock.
type Store interface {
	// Load returns the full register. Failures are *Error values wrapping
	// ErrNotFound, ErrUnreadable or ErrCorrupt.
	Load(ctx context.Context) (Table, error)

	// Save writes the header followed by every row of t, replacing the stored register.
	// Failures are *Error values wrapping ErrUnwritable.
	Save(ctx context.Context, t Table) error

	// Location names the underlying storage (a path or URL) for operator-facing messages.
	Location() string
}

// CheckSchema reports a table without columns, or a row holding a field that is not one of
// the columns. Stores call it before writing so the schema is never extended by a save.
func (t Table) CheckSchema() error {
	if len(t.Columns) == 0 {
		return errNoColumns
	}
	known := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		known[c] = struct{}{}
	}
	for i, rec := range t.Rows {
		for k := range rec {
			if _, ok := known[k]; !ok {
				return fmt.Errorf("row %d: field %q not in header", i+1, k)
			}
		}
	}
	return nil
}
