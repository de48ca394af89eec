package recordstore

import (
	"context"
	"sync"

	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

const defaultLocation = "memory://beneficiaries"

// Store is an in-memory implementation of recordstore.Store.
// Individual Load and Save calls are safe for concurrent use; like every store, it does not
// make a Load → Save sequence atomic.
type Store struct {
	mu sync.RWMutex

	location string
	table    recordstore.Table
	exists   bool
}

// NewStore returns an empty store: Load fails with ErrNotFound until the first Save.
func NewStore() *Store {
	return &Store{location: defaultLocation}
}

// NewSeededStore returns a store holding a copy of t.
func NewSeededStore(t recordstore.Table) *Store {
	return &Store{location: defaultLocation, table: t.Clone(), exists: true}
}

func (s *Store) Location() string { return s.location }

func (s *Store) Load(ctx context.Context) (recordstore.Table, error) {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.exists {
		return recordstore.Table{}, &recordstore.Error{Kind: recordstore.ErrNotFound, Location: s.location}
	}
	return s.table.Clone(), nil
}

func (s *Store) Save(ctx context.Context, t recordstore.Table) error {
	_ = ctx
	if err := t.CheckSchema(); err != nil {
		return &recordstore.Error{Kind: recordstore.ErrUnwritable, Location: s.location, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.table = t.Clone()
	s.exists = true
	return nil
}
