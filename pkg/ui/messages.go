package ui

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	contract "github.com/fd1az/dapp-bridge/business/contract/domain"
	eventdemo "github.com/fd1az/dapp-bridge/business/eventdemo/domain"
	token "github.com/fd1az/dapp-bridge/business/token/domain"
	wallet "github.com/fd1az/dapp-bridge/business/wallet/domain"
)

// Message types for TUI updates

// WalletMsg is sent when the wallet session changes state.
type WalletMsg struct {
	Status wallet.Status
}

// NodeMsg is sent when the node reports a new head or fails to.
type NodeMsg struct {
	Block   uint64
	Latency time.Duration
	Err     error
}

// FeedStateMsg is sent when the ActionLogged filter changes state.
type FeedStateMsg struct {
	State string
}

// ActionMsg is sent for every reconciled ActionLogged event.
type ActionMsg struct {
	Action eventdemo.Action
}

// TxMsg is sent when a transaction is submitted and again when it resolves.
type TxMsg struct {
	Hash   common.Hash
	Method string
	State  contract.TxState
	Block  uint64
	Err    error
}

// MessageMsg carries the stored message read from the contract.
type MessageMsg struct {
	Message string
}

// BalanceMsg carries the connected account's token balance.
type BalanceMsg struct {
	Info token.TokenInfo
}

// ErrorMsg is sent when an error occurs.
type ErrorMsg struct {
	Error error
}

// LogMsg is sent to display a log message in the UI.
type LogMsg struct {
	Level   string // "info", "warn", "error"
	Message string
}

// StartupMsg is sent during application startup to show progress.
type StartupMsg struct {
	Step    string // Current step name
	Status  string // "connecting", "connected", "failed"
	Message string // Optional message
}

// TickMsg is sent periodically for UI updates.
type TickMsg struct{}
