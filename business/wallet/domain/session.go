// Package domain contains the core domain types for the wallet context.
package domain

import (
	"github.com/fd1az/dapp-bridge/internal/address"
)

// ConnectionState is the lifecycle of the wallet session.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateFailed       ConnectionState = "failed"
)

// Status is a snapshot of the session. Account is set only when Connected;
// Reason only when Failed.
type Status struct {
	State   ConnectionState
	Account address.Address
	Reason  error
}

// Connected reports whether the session holds an authorized account.
func (s Status) Connected() bool {
	return s.State == StateConnected
}

// Gauge maps the state to the value recorded on the connection state metric.
func (s ConnectionState) Gauge() int64 {
	switch s {
	case StateConnecting:
		return 1
	case StateConnected:
		return 2
	case StateFailed:
		return 3
	default:
		return 0
	}
}
