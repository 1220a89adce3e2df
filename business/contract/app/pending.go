package app

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/internal/address"
)

// PendingTransaction is a submitted call tracked to a terminal state. Only
// the pipeline mutates it; holders get a read-only view.
type PendingTransaction struct {
	hash        common.Hash
	contract    address.Address
	method      string
	from        common.Address
	data        []byte
	submittedAt time.Time

	mu         sync.RWMutex
	state      domain.TxState
	receipt    *types.Receipt
	err        error
	resolvedAt time.Time
	done       chan struct{}
}

func newPendingTransaction(hash common.Hash, contract address.Address, method string, from common.Address, data []byte, at time.Time) *PendingTransaction {
	return &PendingTransaction{
		hash:        hash,
		contract:    contract,
		method:      method,
		from:        from,
		data:        data,
		submittedAt: at,
		state:       domain.TxSubmitted,
		done:        make(chan struct{}),
	}
}

// Hash returns the network-assigned transaction hash.
func (t *PendingTransaction) Hash() common.Hash { return t.hash }

// Contract returns the called contract.
func (t *PendingTransaction) Contract() address.Address { return t.contract }

// Method returns the called method name.
func (t *PendingTransaction) Method() string { return t.method }

// From returns the signing account.
func (t *PendingTransaction) From() common.Address { return t.from }

// SubmittedAt returns when the network accepted the transaction.
func (t *PendingTransaction) SubmittedAt() time.Time { return t.submittedAt }

// State returns the current state.
func (t *PendingTransaction) State() domain.TxState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Receipt returns the receipt once mined (Confirmed or Failed).
func (t *PendingTransaction) Receipt() *types.Receipt {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.receipt
}

// Err returns the terminal error: RemoteFailed or ConfirmationTimeout.
func (t *PendingTransaction) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// ResolvedAt returns when the terminal state was reached.
func (t *PendingTransaction) ResolvedAt() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.resolvedAt
}

// Done is closed when the transaction reaches a terminal state.
func (t *PendingTransaction) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until a terminal state or ctx ends.
func (t *PendingTransaction) Wait(ctx context.Context) (domain.TxState, error) {
	select {
	case <-t.done:
		return t.State(), t.Err()
	case <-ctx.Done():
		return t.State(), ctx.Err()
	}
}

// resolve moves to a terminal state exactly once.
func (t *PendingTransaction) resolve(state domain.TxState, receipt *types.Receipt, err error, at time.Time) bool {
	t.mu.Lock()
	if t.state.Terminal() {
		t.mu.Unlock()
		return false
	}
	t.state = state
	t.receipt = receipt
	t.err = err
	t.resolvedAt = at
	t.mu.Unlock()

	close(t.done)
	return true
}
