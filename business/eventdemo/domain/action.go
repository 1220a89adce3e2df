// Package domain contains the EventDemo contract interface and its event type.
package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	contract "github.com/fd1az/dapp-bridge/business/contract/domain"
	events "github.com/fd1az/dapp-bridge/business/events/domain"
)

// Contract members.
const (
	MethodPing       = "ping"
	MethodSetMessage = "setMessage"
	MethodMessage    = "message"
	EventAction      = "ActionLogged"
)

const abiJSON = `[
	{"type":"event","name":"ActionLogged","anonymous":false,"inputs":[
		{"name":"user","type":"address","indexed":true},
		{"name":"message","type":"string","indexed":false},
		{"name":"timestamp","type":"uint256","indexed":false}]},
	{"type":"function","name":"ping","inputs":[],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"setMessage","inputs":[{"name":"_msg","type":"string"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"message","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"}
]`

// Interface is the EventDemo contract interface.
var Interface = contract.MustParseInterface("EventDemo", abiJSON)

// Action is a decoded ActionLogged event.
type Action struct {
	User      common.Address
	Message   string
	Timestamp time.Time // as emitted by the contract
	Block     uint64
	LogIndex  uint
	TxHash    common.Hash
}

// ActionFromRecord extracts an Action from a reconciled event record.
func ActionFromRecord(r events.Record) (Action, error) {
	if r.Topic != EventAction {
		return Action{}, fmt.Errorf("unexpected event %q", r.Topic)
	}

	user, ok := argAs[common.Address](r, "user")
	if !ok {
		return Action{}, fmt.Errorf("ActionLogged: missing user")
	}
	msg, ok := argAs[string](r, "message")
	if !ok {
		return Action{}, fmt.Errorf("ActionLogged: missing message")
	}
	ts, ok := argAs[*big.Int](r, "timestamp")
	if !ok || ts == nil {
		return Action{}, fmt.Errorf("ActionLogged: missing timestamp")
	}

	return Action{
		User:      user,
		Message:   msg,
		Timestamp: time.Unix(ts.Int64(), 0),
		Block:     r.Block,
		LogIndex:  r.LogIndex,
		TxHash:    r.TxHash,
	}, nil
}

func argAs[T any](r events.Record, name string) (T, bool) {
	var zero T
	v, ok := r.Arg(name)
	if !ok {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
