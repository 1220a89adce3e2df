// Package app contains the contract proxy registry and the transaction pipeline.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/dapp-bridge/business/contract/domain"
	walletapp "github.com/fd1az/dapp-bridge/business/wallet/app"
)

// Connections hands out the session's connections. *walletapp.Session satisfies it.
type Connections interface {
	ReadConnection() (walletapp.ReadConnection, error)
	WriteConnection() (walletapp.WriteConnection, error)
}

// Journal records transaction outcomes so they survive the process.
type Journal interface {
	Submitted(ctx context.Context, tx *PendingTransaction) error
	Resolved(ctx context.Context, tx *PendingTransaction) error
	Find(ctx context.Context, hash common.Hash) (domain.TxSummary, bool, error)
	Update(ctx context.Context, summary domain.TxSummary) error
}

var _ Connections = (*walletapp.Session)(nil)
