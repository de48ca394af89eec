package contracttest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aid-distribution/ticket-api/internal/domain"
	idempotencyport "github.com/aid-distribution/ticket-api/internal/ports/out/idempotency"
	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

type CleanupFunc = func()

// RecordStoreFactory returns a store whose backing location does not exist yet.
type RecordStoreFactory func(t *testing.T) (recordstore.Store, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

// SampleTable is a small register covering the columns the service relies on.
func SampleTable() recordstore.Table {
	return recordstore.Table{
		Columns: []string{
			domain.ColumnTicketCode, domain.ColumnJeton, domain.ColumnNFI, domain.ColumnOutils,
			domain.ColumnSemence, domain.ColumnPartenaire, domain.ColumnCarte, domain.ColumnAge,
		},
		Rows: []recordstore.Record{
			row("T1", "Non", "Non", "Non", "Non", "", "", "34"),
			row("T2", "Oui", "Oui", "Oui", "Oui", "ONG A", "", "51"),
			row("T3", "Non", "Oui", "Non", "Non", "", "C99", "27"),
		},
	}
}

func row(code, jeton, nfi, outils, semence, partenaire, carte, age string) recordstore.Record {
	return recordstore.Record{
		domain.ColumnTicketCode: code,
		domain.ColumnJeton:      jeton,
		domain.ColumnNFI:        nfi,
		domain.ColumnOutils:     outils,
		domain.ColumnSemence:    semence,
		domain.ColumnPartenaire: partenaire,
		domain.ColumnCarte:      carte,
		domain.ColumnAge:        age,
	}
}

func RunRecordStore(t *testing.T, newStore RecordStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	if store.Location() == "" {
		t.Fatalf("Location() is empty")
	}

	// Nothing saved yet.
	_, err := store.Load(ctx)
	if !errors.Is(err, recordstore.ErrNotFound) {
		t.Fatalf("Load() on missing store err=%v, want ErrNotFound", err)
	}
	var se *recordstore.Error
	if !errors.As(err, &se) || se.Location == "" {
		t.Fatalf("Load() err=%v (type=%T), want *recordstore.Error with location", err, err)
	}

	want := SampleTable()
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	requireTablesEqual(t, got, want)

	// Load → Save with no mutation leaves the register unchanged.
	if err := store.Save(ctx, got); err != nil {
		t.Fatalf("Save unchanged: %v", err)
	}
	again, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load after unchanged save: %v", err)
	}
	requireTablesEqual(t, again, want)

	// Mutating a loaded table does not leak into the store.
	again.Rows[0][domain.ColumnJeton] = "Oui"
	fresh, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load fresh: %v", err)
	}
	if fresh.Rows[0][domain.ColumnJeton] != "Non" {
		t.Fatalf("loaded table aliases store state: %v", fresh.Rows[0])
	}

	// Overwrite semantics: the saved table fully replaces the stored one.
	updated := want.Clone()
	updated.Rows[0][domain.ColumnJeton] = "Oui"
	updated.Rows = updated.Rows[:2]
	if err := store.Save(ctx, updated); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load overwrite: %v", err)
	}
	requireTablesEqual(t, got, updated)

	// Column order is preserved verbatim, even when it is not the canonical order.
	reordered := recordstore.Table{
		Columns: []string{domain.ColumnAge, domain.ColumnTicketCode, "Commentaire"},
		Rows: []recordstore.Record{
			{domain.ColumnAge: "30", domain.ColumnTicketCode: "T9", "Commentaire": "déplacé, \"urgent\""},
		},
	}
	if err := store.Save(ctx, reordered); err != nil {
		t.Fatalf("Save reordered: %v", err)
	}
	got, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load reordered: %v", err)
	}
	requireTablesEqual(t, got, reordered)
}

func requireTablesEqual(t *testing.T, got, want recordstore.Table) {
	t.Helper()
	if len(got.Columns) != len(want.Columns) {
		t.Fatalf("Columns=%q, want %q", got.Columns, want.Columns)
	}
	for i := range want.Columns {
		if got.Columns[i] != want.Columns[i] {
			t.Fatalf("Columns=%q, want %q", got.Columns, want.Columns)
		}
	}
	if len(got.Rows) != len(want.Rows) {
		t.Fatalf("len(Rows)=%d, want %d", len(got.Rows), len(want.Rows))
	}
	for i := range want.Rows {
		for _, c := range want.Columns {
			if got.Rows[i][c] != want.Rows[i][c] {
				t.Fatalf("Rows[%d][%q]=%q, want %q", i, c, got.Rows[i][c], want.Rows[i][c])
			}
		}
	}
}

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      "k-1",
		Method:   "POST",
		Route:    "/scan",
		BodyHash: "",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get before Put: ok=%v err=%v, want ok=false", ok, err)
	}

	rec := idempotencyport.Record{
		StatusCode:  0,
		ContentType: "text/plain",
		Body:        []byte("hash-abc"),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != "hash-abc" || got.ContentType != "text/plain" || got.StatusCode != 0 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte("hash-def")
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != "hash-def" {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}

	// A different body hash under the same key is a distinct entry.
	respFP := fp
	respFP.BodyHash = "hash-def"
	if _, ok, err := store.Get(ctx, respFP); err != nil || ok {
		t.Fatalf("Get respFP before Put: ok=%v err=%v, want ok=false", ok, err)
	}
}
