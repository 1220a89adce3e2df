// Package domain contains the event log types: records, their ordering key
// and the per-filter delivery cursor.
package domain

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	contract "github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/internal/address"
)

// Key is the position of a log in chain history and its deduplication key.
type Key struct {
	Block    uint64
	LogIndex uint
}

// Less reports whether k sorts before o.
func (k Key) Less(o Key) bool {
	if k.Block != o.Block {
		return k.Block < o.Block
	}
	return k.LogIndex < o.LogIndex
}

func (k Key) String() string {
	return fmt.Sprintf("%d:%d", k.Block, k.LogIndex)
}

// Record is one decoded contract event. Records are immutable once observed.
type Record struct {
	Contract  address.Address
	Topic     string
	Args      []contract.Arg
	Block     uint64
	LogIndex  uint
	TxHash    common.Hash
	Timestamp time.Time
}

// Key returns the record's ordering key.
func (r Record) Key() Key {
	return Key{Block: r.Block, LogIndex: r.LogIndex}
}

// Arg returns the decoded argument called name.
func (r Record) Arg(name string) (any, bool) {
	for _, a := range r.Args {
		if a.Name == name {
			return a.Value, true
		}
	}
	return nil, false
}
