package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	contract "github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/internal/address"
)

// FilterState is the lifecycle of an attached filter.
type FilterState string

const (
	FilterIdle            FilterState = "idle"
	FilterFetchingHistory FilterState = "fetching_history"
	FilterSubscribed      FilterState = "subscribed"
	FilterDetached        FilterState = "detached"
)

// Filter selects one event of one contract.
type Filter struct {
	Contract  address.Address
	Interface *contract.Interface
	Topic     string
	FromBlock uint64
}

// TopicID returns the event signature hash.
func (f Filter) TopicID() (common.Hash, bool) {
	if f.Interface == nil {
		return common.Hash{}, false
	}
	return f.Interface.Topic(f.Topic)
}

// LiveQuery builds the log query for a push subscription.
func (f Filter) LiveQuery() ethereum.FilterQuery {
	q := ethereum.FilterQuery{
		Addresses: []common.Address{f.Contract.Common()},
	}
	if id, ok := f.TopicID(); ok {
		q.Topics = [][]common.Hash{{id}}
	}
	return q
}

// Query builds the log query for blocks [from, to].
func (f Filter) Query(from, to uint64) ethereum.FilterQuery {
	q := f.LiveQuery()
	q.FromBlock = new(big.Int).SetUint64(from)
	q.ToBlock = new(big.Int).SetUint64(to)
	return q
}

// String identifies the filter in logs.
func (f Filter) String() string {
	return f.Contract.String() + "/" + f.Topic
}
