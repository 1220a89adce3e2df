package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	walletapp "github.com/fd1az/dapp-bridge/business/wallet/app"
	"github.com/fd1az/dapp-bridge/internal/address"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/logger"
)

var alice = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

// fakeWallet is both the connector and the connection source.
type fakeWallet struct {
	call       func(msg ethereum.CallMsg) ([]byte, error)
	connectErr error

	mu        sync.Mutex
	connected bool
	connects  int
	calls     int
	sent      []walletapp.CallRequest
}

func (w *fakeWallet) EnsureConnected(context.Context) (address.Address, error) {
	if w.connectErr != nil {
		return address.Zero, w.connectErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = true
	w.connects++
	return address.FromCommon(alice), nil
}

func (w *fakeWallet) ReadConnection() (walletapp.ReadConnection, error) {
	return w, nil
}

func (w *fakeWallet) WriteConnection() (walletapp.WriteConnection, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.connected {
		return nil, apperror.New(apperror.CodeNotConnected)
	}
	return w, nil
}

func (w *fakeWallet) requests() []walletapp.CallRequest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]walletapp.CallRequest(nil), w.sent...)
}

func (w *fakeWallet) From() common.Address { return alice }

func (w *fakeWallet) SendTransaction(_ context.Context, req walletapp.CallRequest) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.sent = append(w.sent, req)
	return common.BigToHash(big.NewInt(int64(len(w.sent)))), nil
}

func (w *fakeWallet) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()
	if w.call == nil {
		return nil, errors.New("no call handler")
	}
	return w.call(msg)
}

func (w *fakeWallet) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (w *fakeWallet) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("not supported")
}

func (w *fakeWallet) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func (w *fakeWallet) HeaderByNumber(_ context.Context, n *big.Int) (*types.Header, error) {
	return &types.Header{Number: n}, nil
}

func (w *fakeWallet) BlockNumber(context.Context) (uint64, error) {
	return 1, nil
}

func (w *fakeWallet) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}
