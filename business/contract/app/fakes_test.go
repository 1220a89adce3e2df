package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/fd1az/dapp-bridge/business/contract/domain"
	walletapp "github.com/fd1az/dapp-bridge/business/wallet/app"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/logger"
)

const demoABI = `[
	{"type":"function","name":"message","inputs":[],"outputs":[{"name":"","type":"string"}],"stateMutability":"view"},
	{"type":"function","name":"setMessage","inputs":[{"name":"newMessage","type":"string"}],"outputs":[],"stateMutability":"nonpayable"},
	{"type":"function","name":"ping","inputs":[],"outputs":[],"stateMutability":"nonpayable"}
]`

const demoAddress = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

var (
	demoIface = domain.MustParseInterface("EventDemo", demoABI)
	alice     = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
)

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

// fakeNode implements walletapp.ReadConnection.
type fakeNode struct {
	call    func(msg ethereum.CallMsg, block *big.Int) ([]byte, error)
	receipt func(hash common.Hash) (*types.Receipt, error)

	receiptPolls atomic.Int32
}

func (f *fakeNode) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	if f.call == nil {
		return nil, errors.New("no call handler")
	}
	return f.call(msg, block)
}

func (f *fakeNode) FilterLogs(context.Context, ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *fakeNode) SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("not supported")
}

func (f *fakeNode) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.receiptPolls.Add(1)
	if f.receipt == nil {
		return nil, ethereum.NotFound
	}
	return f.receipt(hash)
}

func (f *fakeNode) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1)}, nil
}

func (f *fakeNode) BlockNumber(context.Context) (uint64, error) {
	return 1, nil
}

// fakeSigner implements walletapp.WriteConnection.
type fakeSigner struct {
	*fakeNode
	from common.Address
	send func(req walletapp.CallRequest) (common.Hash, error)

	mu   sync.Mutex
	sent []walletapp.CallRequest
}

func (f *fakeSigner) From() common.Address { return f.from }

func (f *fakeSigner) SendTransaction(_ context.Context, req walletapp.CallRequest) (common.Hash, error) {
	f.mu.Lock()
	f.sent = append(f.sent, req)
	n := len(f.sent)
	f.mu.Unlock()

	if f.send != nil {
		return f.send(req)
	}
	return common.BigToHash(big.NewInt(int64(n))), nil
}

// fakeConns implements Connections. A nil signer means not connected.
type fakeConns struct {
	mu     sync.Mutex
	node   *fakeNode
	signer *fakeSigner
}

func (f *fakeConns) ReadConnection() (walletapp.ReadConnection, error) {
	return f.node, nil
}

func (f *fakeConns) WriteConnection() (walletapp.WriteConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signer == nil {
		return nil, apperror.New(apperror.CodeNotConnected)
	}
	return f.signer, nil
}

func (f *fakeConns) connect() *fakeSigner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signer = &fakeSigner{fakeNode: f.node, from: alice}
	return f.signer
}

// fakeJournal implements Journal in memory.
type fakeJournal struct {
	mu        sync.Mutex
	summaries map[common.Hash]domain.TxSummary
	updates   int
}

func newFakeJournal() *fakeJournal {
	return &fakeJournal{summaries: make(map[common.Hash]domain.TxSummary)}
}

func (j *fakeJournal) Submitted(_ context.Context, tx *PendingTransaction) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.summaries[tx.Hash()] = domain.TxSummary{
		Hash: tx.Hash(), Method: tx.Method(), State: domain.TxSubmitted, SubmittedAt: tx.SubmittedAt(),
	}
	return nil
}

func (j *fakeJournal) Resolved(_ context.Context, tx *PendingTransaction) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	s := j.summaries[tx.Hash()]
	s.State = tx.State()
	at := tx.ResolvedAt()
	s.ResolvedAt = &at
	j.summaries[tx.Hash()] = s
	return nil
}

func (j *fakeJournal) Find(_ context.Context, hash common.Hash) (domain.TxSummary, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	s, ok := j.summaries[hash]
	return s, ok, nil
}

func (j *fakeJournal) Update(_ context.Context, s domain.TxSummary) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.summaries[s.Hash] = s
	j.updates++
	return nil
}

func (j *fakeJournal) state(hash common.Hash) domain.TxState {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.summaries[hash].State
}

// revertError mimics a node error for a reverted eth_call.
type revertError struct {
	data string
}

func (e revertError) Error() string  { return "execution reverted" }
func (e revertError) ErrorCode() int { return codeExecutionReverted }
func (e revertError) ErrorData() any { return e.data }

// revertWith encodes Error(string) revert data.
func revertWith(reason string) revertError {
	stringTy, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringTy}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return revertError{data: hexutil.Encode(append(selector, packed...))}
}

func packOutput(method string, values ...any) []byte {
	out, err := demoIface.ABI().Methods[method].Outputs.Pack(values...)
	if err != nil {
		panic(err)
	}
	return out
}
