package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/internal/storage"
)

func newTestJournal(t *testing.T) (*Journal, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return New(store), store
}

func TestFind_Unknown(t *testing.T) {
	j, _ := newTestJournal(t)

	_, ok, err := j.Find(context.Background(), common.HexToHash("0x01"))
	if err != nil {
		t.Fatalf("Find() error: %v", err)
	}
	if ok {
		t.Fatal("unknown hash reported as found")
	}
}

func TestUpdate_ResolvesSubmitted(t *testing.T) {
	j, store := newTestJournal(t)
	ctx := context.Background()

	hash := common.HexToHash("0xfeed")
	submitted := time.Now().UTC().Truncate(time.Second)
	if err := store.RecordSubmitted(ctx, storage.TxRecord{
		Hash:        hash.Hex(),
		Contract:    "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		Method:      "setMessage",
		From:        "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		State:       string(domain.TxSubmitted),
		SubmittedAt: submitted,
	}); err != nil {
		t.Fatalf("RecordSubmitted() error: %v", err)
	}

	got, ok, err := j.Find(ctx, hash)
	if err != nil || !ok {
		t.Fatalf("Find() = %v, %v", ok, err)
	}
	if got.State != domain.TxSubmitted || got.Method != "setMessage" || got.ResolvedAt != nil {
		t.Fatalf("Find() = %+v", got)
	}

	resolved := submitted.Add(12 * time.Second)
	got.State = domain.TxConfirmed
	got.BlockNumber = 1234
	got.ResolvedAt = &resolved
	if err := j.Update(ctx, got); err != nil {
		t.Fatalf("Update() error: %v", err)
	}

	got, _, err = j.Find(ctx, hash)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != domain.TxConfirmed || got.BlockNumber != 1234 {
		t.Fatalf("after Update() = %+v", got)
	}
	if got.ResolvedAt == nil || !got.ResolvedAt.Equal(resolved) {
		t.Fatalf("resolved at = %v", got.ResolvedAt)
	}

	recent, err := j.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent() error: %v", err)
	}
	if len(recent) != 1 || recent[0].Hash != hash {
		t.Fatalf("Recent() = %+v", recent)
	}
}
