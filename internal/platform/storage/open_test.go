package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	memclock "github.com/aid-distribution/ticket-api/internal/adapters/memory/clock"
	"github.com/aid-distribution/ticket-api/internal/platform/config"
	"github.com/aid-distribution/ticket-api/internal/platform/storage"
	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

const register = "Ticket Code,Jeton Distribué,NFI,Outils,Semence,Parténaire,Carte,Age\r\nT1,Non,Non,Non,Non,,,34\r\n"

func baseConfig(backend, path string) config.Config {
	return config.Config{Storage: backend, RecordsFile: path, IdempotencyTTL: time.Hour}
}

func TestOpen_File(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "beneficiaries.csv")
	if err := os.WriteFile(path, []byte(register), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stores, err := storage.Open(context.Background(), baseConfig(config.BackendFile, path), memclock.NewManualClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer stores.Close()

	if stores.Records.Location() != path {
		t.Fatalf("location=%q", stores.Records.Location())
	}
	tbl, err := stores.Records.Load(context.Background())
	if err != nil || len(tbl.Rows) != 1 {
		t.Fatalf("Load rows=%d err=%v", len(tbl.Rows), err)
	}
	if stores.Idempotency == nil {
		t.Fatalf("idempotency store not wired")
	}
}

func TestOpen_MemorySeedsFromFileWithoutWritingBack(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "beneficiaries.csv")
	if err := os.WriteFile(path, []byte(register), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	stores, err := storage.Open(context.Background(), baseConfig(config.BackendMemory, path), memclock.NewManualClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ctx := context.Background()
	tbl, err := stores.Records.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tbl.Rows[0]["NFI"] = "Oui"
	if err := stores.Records.Save(ctx, tbl); err != nil {
		t.Fatalf("Save: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(raw) != register {
		t.Fatalf("file changed by memory backend:\n%s", raw)
	}
}

func TestOpen_MemoryWithoutFileStartsEmpty(t *testing.T) {
	t.Parallel()

	cfg := baseConfig(config.BackendMemory, filepath.Join(t.TempDir(), "absent.csv"))
	stores, err := storage.Open(context.Background(), cfg, memclock.NewManualClock(time.Unix(0, 0)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := stores.Records.Load(context.Background()); !errors.Is(err, recordstore.ErrNotFound) {
		t.Fatalf("Load err=%v, want ErrNotFound", err)
	}
}

func TestOpen_MemoryRejectsCorruptSeed(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "beneficiaries.csv")
	if err := os.WriteFile(path, []byte("Ticket Code,NFI\nT1,Oui,extra\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := storage.Open(context.Background(), baseConfig(config.BackendMemory, path), memclock.NewManualClock(time.Unix(0, 0)))
	if !errors.Is(err, recordstore.ErrCorrupt) {
		t.Fatalf("err=%v, want ErrCorrupt", err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := storage.Open(context.Background(), baseConfig("floppy", ""), memclock.NewManualClock(time.Unix(0, 0)))
	if err == nil || !strings.Contains(err.Error(), "floppy") {
		t.Fatalf("err=%v", err)
	}
}
