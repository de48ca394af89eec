// Package storage selects the record store and idempotency store for a configured backend.
package storage

import (
	"context"
	"errors"
	"fmt"

	filerecordstore "github.com/aid-distribution/ticket-api/internal/adapters/file/recordstore"
	memidempotency "github.com/aid-distribution/ticket-api/internal/adapters/memory/idempotency"
	memrecordstore "github.com/aid-distribution/ticket-api/internal/adapters/memory/recordstore"
	postgres "github.com/aid-distribution/ticket-api/internal/adapters/postgres"
	pgidempotency "github.com/aid-distribution/ticket-api/internal/adapters/postgres/idempotency"
	pgrecordstore "github.com/aid-distribution/ticket-api/internal/adapters/postgres/recordstore"
	s3recordstore "github.com/aid-distribution/ticket-api/internal/adapters/s3/recordstore"
	"github.com/aid-distribution/ticket-api/internal/platform/config"
	clockport "github.com/aid-distribution/ticket-api/internal/ports/out/clock"
	idempotencyport "github.com/aid-distribution/ticket-api/internal/ports/out/idempotency"
	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

// Stores is the storage wiring for one process.
type Stores struct {
	Records     recordstore.Store
	Idempotency idempotencyport.Store

	close func()
}

// Close releases backend resources. Safe on a zero Stores.
func (s Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open builds the stores for cfg.Storage.
//
//	file:     RECORDS_FILE on local disk, idempotency in memory
//	memory:   register seeded once from RECORDS_FILE when it exists, never written back
//	s3:       one object at S3_BUCKET/S3_KEY, idempotency in memory
//	postgres: register snapshot RECORDS_STORE_NAME and idempotency keys in DATABASE_URL
func Open(ctx context.Context, cfg config.Config, clk clockport.Clock) (Stores, error) {
	memIdem := func() idempotencyport.Store { return memidempotency.NewStoreWithTTL(clk, cfg.IdempotencyTTL) }

	switch cfg.Storage {
	case config.BackendFile:
		return Stores{Records: filerecordstore.NewStore(cfg.RecordsFile), Idempotency: memIdem()}, nil

	case config.BackendMemory:
		records, err := seededMemory(ctx, cfg.RecordsFile)
		if err != nil {
			return Stores{}, err
		}
		return Stores{Records: records, Idempotency: memIdem()}, nil

	case config.BackendS3:
		store, err := s3recordstore.New(ctx, s3recordstore.Config{
			Bucket:          cfg.S3.Bucket,
			Key:             cfg.S3.Key,
			Region:          cfg.S3.Region,
			Endpoint:        cfg.S3.Endpoint,
			PathStyle:       cfg.S3.PathStyle,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		})
		if err != nil {
			return Stores{}, fmt.Errorf("open s3 record store: %w", err)
		}
		return Stores{Records: store, Idempotency: memIdem()}, nil

	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{})
		if err != nil {
			return Stores{}, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return Stores{}, err
		}
		return Stores{
			Records:     pgrecordstore.NewStore(pool, cfg.RecordsStoreName),
			Idempotency: pgidempotency.NewStoreWithTTL(pool, clk, cfg.IdempotencyTTL),
			close:       pool.Close,
		}, nil

	default:
		return Stores{}, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

func seededMemory(ctx context.Context, path string) (*memrecordstore.Store, error) {
	if path == "" {
		return memrecordstore.NewStore(), nil
	}
	t, err := filerecordstore.NewStore(path).Load(ctx)
	switch {
	case err == nil:
		return memrecordstore.NewSeededStore(t), nil
	case errors.Is(err, recordstore.ErrNotFound):
		return memrecordstore.NewStore(), nil
	default:
		return nil, fmt.Errorf("seed memory store: %w", err)
	}
}
