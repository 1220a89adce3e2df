package domain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TxState is the lifecycle of a submitted transaction.
type TxState string

const (
	TxSubmitted TxState = "submitted"
	TxConfirmed TxState = "confirmed"
	TxFailed    TxState = "failed"
	TxTimedOut  TxState = "timed_out"
)

// Terminal reports whether no further transition is possible for this
// pipeline. A timed-out transaction may still confirm out-of-band.
func (s TxState) Terminal() bool {
	return s != TxSubmitted
}

// TxSummary is the journaled view of a transaction.
type TxSummary struct {
	Hash        common.Hash
	Contract    string
	Method      string
	From        string
	State       TxState
	SubmittedAt time.Time
	ResolvedAt  *time.Time
	BlockNumber uint64
	Error       string
}
