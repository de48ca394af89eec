package idempotency

import (
	"context"
	"sync"
	"time"

	clockport "github.com/aid-distribution/ticket-api/internal/ports/out/clock"
	"github.com/aid-distribution/ticket-api/internal/ports/out/idempotency"
)

// Store is an in-memory implementation of idempotency.Store.
// It is safe for concurrent use.
type Store struct {
	mu sync.Mutex
	m  map[idempotency.Fingerprint]idempotency.Record

	clk clockport.Clock
	ttl time.Duration
}

// NewStore returns a store whose records never expire.
func NewStore() *Store {
	return &Store{
		m: make(map[idempotency.Fingerprint]idempotency.Record),
	}
}

// NewStoreWithTTL returns a store that forgets records older than ttl, measured against
// their CreatedAt. A non-positive ttl disables expiry.
func NewStoreWithTTL(clk clockport.Clock, ttl time.Duration) *Store {
	s := NewStore()
	s.clk = clk
	s.ttl = ttl
	return s
}

func (s *Store) Get(ctx context.Context, fp idempotency.Fingerprint) (idempotency.Record, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.m[fp]
	if !ok {
		return idempotency.Record{}, false, nil
	}
	if s.expired(rec) {
		delete(s.m, fp)
		return idempotency.Record{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (s *Store) Put(ctx context.Context, fp idempotency.Fingerprint, rec idempotency.Record) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[fp] = cloneRecord(rec)
	return nil
}

func (s *Store) expired(rec idempotency.Record) bool {
	if s.ttl <= 0 || s.clk == nil {
		return false
	}
	return s.clk.Now().Sub(rec.CreatedAt) > s.ttl
}

func cloneRecord(rec idempotency.Record) idempotency.Record {
	out := rec
	if rec.Body != nil {
		out.Body = append([]byte(nil), rec.Body...)
	}
	return out
}
