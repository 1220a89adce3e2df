// Package bridge reaches an EIP-1193 style wallet over JSON-RPC.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/wsconn"
)

// Caller issues JSON-RPC requests. *rpc.Client satisfies it.
type Caller interface {
	CallContext(ctx context.Context, result any, method string, args ...any) error
}

// Notifier is implemented by callers that receive pushed notifications.
type Notifier interface {
	OnNotification(fn func(method string, params json.RawMessage))
}

var (
	_ Caller   = (*rpc.Client)(nil)
	_ Caller   = (*WSTransport)(nil)
	_ Notifier = (*WSTransport)(nil)
)

type jsonrpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type jsonrpcMessage struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *rpcError       `json:"error,omitempty"`
}

// rpcError is a JSON-RPC error object. It satisfies rpc.Error and rpc.DataError.
type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if e.Message == "" {
		return "json-rpc error " + strconv.Itoa(e.Code)
	}
	return e.Message
}

func (e *rpcError) ErrorCode() int { return e.Code }

func (e *rpcError) ErrorData() any { return e.Data }

// WSTransport multiplexes JSON-RPC calls and notifications over one WebSocket.
type WSTransport struct {
	client *wsconn.Client
	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]chan jsonrpcMessage
	notify  func(method string, params json.RawMessage)
}

// NewWSTransport wraps client. The client should not have handlers installed.
func NewWSTransport(client *wsconn.Client) *WSTransport {
	t := &WSTransport{
		client:  client,
		pending: make(map[uint64]chan jsonrpcMessage),
	}
	client.OnMessage(t.handleMessage)
	client.OnStateChange(t.handleState)
	return t
}

// Connect dials the wallet, retrying with backoff until ctx ends.
func (t *WSTransport) Connect(ctx context.Context) error {
	return t.client.ConnectWithRetry(ctx)
}

// Close closes the socket.
func (t *WSTransport) Close() error {
	return t.client.Close()
}

// OnNotification registers the handler for server-pushed messages.
func (t *WSTransport) OnNotification(fn func(method string, params json.RawMessage)) {
	t.mu.Lock()
	t.notify = fn
	t.mu.Unlock()
}

// CallContext sends method and decodes the result into result.
func (t *WSTransport) CallContext(ctx context.Context, result any, method string, args ...any) error {
	if args == nil {
		args = []any{}
	}

	id := t.nextID.Add(1)
	ch := make(chan jsonrpcMessage, 1)

	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		delete(t.pending, id)
		t.mu.Unlock()
	}()

	req := jsonrpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: args}
	if err := t.client.SendJSON(ctx, req); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case msg := <-ch:
		if msg.Error != nil {
			return msg.Error
		}
		if result == nil || len(msg.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Result, result); err != nil {
			return apperror.New(apperror.CodeWalletRPCError,
				apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("decode %s result", method)))
		}
		return nil
	}
}

func (t *WSTransport) handleMessage(_ context.Context, data []byte) {
	var msg jsonrpcMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	if msg.ID != nil {
		t.mu.Lock()
		ch, ok := t.pending[*msg.ID]
		t.mu.Unlock()
		if ok {
			select {
			case ch <- msg:
			default:
			}
		}
		return
	}

	if msg.Method == "" {
		return
	}
	t.mu.Lock()
	fn := t.notify
	t.mu.Unlock()
	if fn != nil {
		fn(msg.Method, msg.Params)
	}
}

// handleState fails in-flight calls when the socket drops; their replies
// cannot arrive on a new connection.
func (t *WSTransport) handleState(state wsconn.State, cause error) {
	if state == wsconn.StateConnected || state == wsconn.StateConnecting {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for id, ch := range t.pending {
		select {
		case ch <- jsonrpcMessage{Error: &rpcError{Code: codeDisconnected, Message: "wallet connection lost", Data: errString(cause)}}:
		default:
		}
		delete(t.pending, id)
	}
}

func errString(err error) any {
	if err == nil {
		return nil
	}
	return err.Error()
}
