// Package journal persists pipeline outcomes in the SQLite transaction store.
package journal

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dapp-bridge/business/contract/app"
	"github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/internal/storage"
)

// Journal implements app.Journal over *storage.Store.
type Journal struct {
	store *storage.Store
}

var _ app.Journal = (*Journal)(nil)

// New creates a journal backed by store.
func New(store *storage.Store) *Journal {
	return &Journal{store: store}
}

// Submitted records a freshly accepted transaction.
func (j *Journal) Submitted(ctx context.Context, tx *app.PendingTransaction) error {
	return j.store.RecordSubmitted(ctx, storage.TxRecord{
		Hash:        tx.Hash().Hex(),
		Contract:    tx.Contract().String(),
		Method:      tx.Method(),
		From:        tx.From().Hex(),
		State:       string(domain.TxSubmitted),
		SubmittedAt: tx.SubmittedAt(),
	})
}

// Resolved records the terminal state of tx.
func (j *Journal) Resolved(ctx context.Context, tx *app.PendingTransaction) error {
	var (
		block  uint64
		errMsg string
	)
	if r := tx.Receipt(); r != nil && r.BlockNumber != nil {
		block = r.BlockNumber.Uint64()
	}
	if err := tx.Err(); err != nil {
		errMsg = err.Error()
	}
	return j.store.RecordResolved(ctx, tx.Hash().Hex(), string(tx.State()), block, errMsg, tx.ResolvedAt())
}

// Update overwrites the terminal fields of a journaled transaction.
func (j *Journal) Update(ctx context.Context, s domain.TxSummary) error {
	at := time.Now()
	if s.ResolvedAt != nil {
		at = *s.ResolvedAt
	}
	return j.store.RecordResolved(ctx, s.Hash.Hex(), string(s.State), s.BlockNumber, s.Error, at)
}

// Find returns the journaled summary for hash.
func (j *Journal) Find(ctx context.Context, hash common.Hash) (domain.TxSummary, bool, error) {
	rec, ok, err := j.store.Get(ctx, hash.Hex())
	if err != nil || !ok {
		return domain.TxSummary{}, ok, err
	}
	return toSummary(rec), true, nil
}

// Recent returns the newest journaled transactions.
func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.TxSummary, error) {
	recs, err := j.store.Recent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TxSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toSummary(rec))
	}
	return out, nil
}

func toSummary(rec storage.TxRecord) domain.TxSummary {
	return domain.TxSummary{
		Hash:        common.HexToHash(rec.Hash),
		Contract:    rec.Contract,
		Method:      rec.Method,
		From:        rec.From,
		State:       domain.TxState(rec.State),
		SubmittedAt: rec.SubmittedAt,
		ResolvedAt:  rec.ResolvedAt,
		BlockNumber: rec.BlockNumber,
		Error:       rec.Error,
	}
}
