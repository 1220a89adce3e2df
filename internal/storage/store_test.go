package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSubmittedThenResolved(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	submitted := time.Now().UTC().Truncate(time.Second)

	rec := TxRecord{
		Hash:        "0xabc",
		Contract:    "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Method:      "ping",
		From:        "0xde0B295669a9FD93d5F28D9Ec85E40f4cb697BAe",
		State:       "submitted",
		SubmittedAt: submitted,
	}
	if err := store.RecordSubmitted(ctx, rec); err != nil {
		t.Fatalf("record submitted: %v", err)
	}

	got, ok, err := store.Get(ctx, "0xabc")
	if err != nil || !ok {
		t.Fatalf("get failed err=%v ok=%v", err, ok)
	}
	if got.State != "submitted" || got.ResolvedAt != nil || got.Method != "ping" {
		t.Fatalf("unexpected row: %+v", got)
	}
	if !got.SubmittedAt.Equal(submitted) {
		t.Fatalf("submitted_at = %v, want %v", got.SubmittedAt, submitted)
	}

	resolvedAt := submitted.Add(15 * time.Second)
	if err := store.RecordResolved(ctx, "0xabc", "confirmed", 1234, "", resolvedAt); err != nil {
		t.Fatalf("record resolved: %v", err)
	}

	got, _, err = store.Get(ctx, "0xabc")
	if err != nil {
		t.Fatalf("get after resolve: %v", err)
	}
	if got.State != "confirmed" || got.BlockNumber != 1234 || got.ResolvedAt == nil {
		t.Fatalf("unexpected resolved row: %+v", got)
	}
}

func TestRecordSubmitted_KeepsFirstRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := TxRecord{Hash: "0x1", Contract: "c", Method: "ping", State: "submitted", SubmittedAt: time.Now()}
	if err := store.RecordSubmitted(ctx, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	dup := first
	dup.Method = "setMessage"
	if err := store.RecordSubmitted(ctx, dup); err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}

	got, _, _ := store.Get(ctx, "0x1")
	if got.Method != "ping" {
		t.Fatalf("expected first row kept, got %s", got.Method)
	}
}

func TestRecordResolved_Unknown(t *testing.T) {
	store := newTestStore(t)
	if err := store.RecordResolved(context.Background(), "0xmissing", "failed", 0, "x", time.Now()); err == nil {
		t.Fatal("expected error for unknown hash")
	}
	if _, ok, err := store.Get(context.Background(), "0xmissing"); err != nil || ok {
		t.Fatalf("Get() ok=%v err=%v", ok, err)
	}
}

func TestRecent_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	for i, h := range []string{"0xa", "0xb", "0xc"} {
		rec := TxRecord{Hash: h, Contract: "c", Method: "ping", State: "submitted", SubmittedAt: base.Add(time.Duration(i) * time.Second)}
		if err := store.RecordSubmitted(ctx, rec); err != nil {
			t.Fatalf("insert %s: %v", h, err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].Hash != "0xc" || recent[1].Hash != "0xb" {
		t.Fatalf("unexpected order: %+v", recent)
	}
}
