// Package app contains the wallet session and its port definitions.
package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ReadConnection is the provider-backed connection used for calls, logs and receipts.
// *ethclient.Client satisfies it.
type ReadConnection interface {
	ethereum.ContractCaller
	ethereum.LogFilterer
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// CallRequest is an unsigned state-changing call. Signing and fees are the wallet's concern.
type CallRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
}

// WriteConnection submits calls signed by the session's account.
type WriteConnection interface {
	ReadConnection
	From() common.Address
	SendTransaction(ctx context.Context, req CallRequest) (common.Hash, error)
}

// Provider is the wallet capability the session drives.
type Provider interface {
	// RequestAccounts asks the user for account access. It may prompt and may be rejected.
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	// Accounts returns already authorized accounts without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)

	// SendTransaction asks the wallet to sign and broadcast req from the given account.
	SendTransaction(ctx context.Context, from common.Address, req CallRequest) (common.Hash, error)

	// ReadConnection returns the connection used for reads.
	ReadConnection() ReadConnection

	// OnAccountsChanged registers fn for account changes and returns an unsubscribe func.
	OnAccountsChanged(fn func([]common.Address)) func()
}
