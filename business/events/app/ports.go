// Package app contains the event reconciler.
package app

import (
	"context"

	"github.com/ethereum/go-ethereum"

	"github.com/fd1az/dapp-bridge/business/events/domain"
)

// LogSource reads decoded contract events from the node.
type LogSource interface {
	// History returns the filter's records from block from up to the
	// current head, in chain order.
	History(ctx context.Context, f domain.Filter, from uint64) ([]domain.Record, error)

	// Subscribe streams records produced after the call into sink until the
	// subscription is cancelled or fails.
	Subscribe(ctx context.Context, f domain.Filter, sink chan<- domain.Record) (ethereum.Subscription, error)
}
