package app

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// codeExecutionReverted is the node's JSON-RPC code for a reverted eth_call.
const codeExecutionReverted = 3

// Revert describes a call the contract rejected.
type Revert struct {
	Reason  string
	Data    []byte
	Receipt *types.Receipt // set when the revert was mined
}

// revertFrom extracts revert data carried by a node error.
func revertFrom(err error) (*Revert, bool) {
	if err == nil {
		return nil, false
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if raw, ok := dataErr.ErrorData().(string); ok {
			if data, decodeErr := hexutil.Decode(raw); decodeErr == nil {
				rev := &Revert{Data: data}
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					rev.Reason = reason
				}
				return rev, true
			}
		}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeExecutionReverted {
		return &Revert{Reason: strings.TrimPrefix(rpcErr.Error(), "execution reverted: ")}, true
	}
	if strings.Contains(err.Error(), "execution reverted") {
		return &Revert{Reason: err.Error()}, true
	}
	return nil, false
}
