package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dapp-bridge/business/wallet/app"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/logger"
)

const (
	tracerName = "github.com/fd1az/dapp-bridge/business/wallet/infra/bridge"
	meterName  = "github.com/fd1az/dapp-bridge/business/wallet/infra/bridge"
)

// EIP-1193 provider error codes and the JSON-RPC method-not-found code.
const (
	codeUserRejected      = 4001
	codeUnauthorized      = 4100
	codeUnsupported       = 4200
	codeDisconnected      = 4900
	codeChainDisconnected = 4901
	codeMethodNotFound    = -32601
)

// Wallet methods and notifications.
const (
	methodRequestAccounts = "eth_requestAccounts"
	methodAccounts        = "eth_accounts"
	methodSendTransaction = "eth_sendTransaction"

	notificationAccountsChanged = "accountsChanged"
)

// Config holds provider settings.
type Config struct {
	RequestTimeout      time.Duration // bound on non-interactive calls
	AccountPollInterval time.Duration // used when the transport cannot push notifications
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:      30 * time.Second,
		AccountPollInterval: 5 * time.Second,
	}
}

type providerMetrics struct {
	calls        metric.Int64Counter
	callDuration metric.Float64Histogram
}

// Provider implements app.Provider over a JSON-RPC wallet endpoint.
type Provider struct {
	caller Caller
	read   app.ReadConnection
	config Config
	logger logger.LoggerInterface

	mu        sync.Mutex
	listeners map[int]func([]common.Address)
	nextID    int
	known     []common.Address

	cancel context.CancelFunc
	done   chan struct{}

	tracer  trace.Tracer
	metrics *providerMetrics
}

var _ app.Provider = (*Provider)(nil)

// NewProvider creates a provider. read serves calls, logs and receipts; the
// wallet endpoint is only used for account access and signing.
func NewProvider(caller Caller, read app.ReadConnection, cfg Config, log logger.LoggerInterface) (*Provider, error) {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultConfig().RequestTimeout
	}
	if cfg.AccountPollInterval <= 0 {
		cfg.AccountPollInterval = DefaultConfig().AccountPollInterval
	}

	p := &Provider{
		caller:    caller,
		read:      read,
		config:    cfg,
		logger:    log,
		listeners: make(map[int]func([]common.Address)),
		tracer:    otel.Tracer(tracerName),
	}

	if err := p.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	if n, ok := caller.(Notifier); ok {
		n.OnNotification(p.handleNotification)
	}

	return p, nil
}

func (p *Provider) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	p.metrics = &providerMetrics{}

	p.metrics.calls, err = meter.Int64Counter(
		"wallet_rpc_calls_total",
		metric.WithDescription("Wallet JSON-RPC calls by method and result"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	p.metrics.callDuration, err = meter.Float64Histogram(
		"wallet_rpc_call_duration_ms",
		metric.WithDescription("Wallet JSON-RPC call latency"),
		metric.WithUnit("ms"),
	)
	return err
}

// Start begins account polling when the transport cannot push account changes.
func (p *Provider) Start(ctx context.Context) {
	if _, ok := p.caller.(Notifier); ok {
		return
	}

	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	p.mu.Unlock()

	go p.pollAccounts(ctx)
}

// Connect opens the transport when it holds a persistent connection.
func (p *Provider) Connect(ctx context.Context) error {
	if c, ok := p.caller.(interface{ Connect(context.Context) error }); ok {
		return c.Connect(ctx)
	}
	return nil
}

// Close stops account polling and releases the transport.
func (p *Provider) Close() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	switch c := p.caller.(type) {
	case interface{ Close() error }:
		_ = c.Close()
	case interface{ Close() }:
		c.Close()
	}
}

// RequestAccounts asks the wallet for account access. The caller's context
// bounds the user prompt.
func (p *Provider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.call(ctx, &accounts, methodRequestAccounts); err != nil {
		return nil, err
	}
	p.remember(accounts)
	return accounts, nil
}

// Accounts returns authorized accounts without prompting.
func (p *Provider) Accounts(ctx context.Context) ([]common.Address, error) {
	accounts, err := p.fetchAccounts(ctx)
	if err != nil {
		return nil, err
	}
	p.remember(accounts)
	return accounts, nil
}

func (p *Provider) fetchAccounts(ctx context.Context) ([]common.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, p.config.RequestTimeout)
	defer cancel()

	var accounts []common.Address
	if err := p.call(ctx, &accounts, methodAccounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

type txArgs struct {
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
}

// SendTransaction asks the wallet to sign and broadcast req. Gas and fees are
// left to the wallet.
func (p *Provider) SendTransaction(ctx context.Context, from common.Address, req app.CallRequest) (common.Hash, error) {
	to := req.To
	args := txArgs{From: from, To: &to, Data: req.Data}
	if req.Value != nil && req.Value.Sign() > 0 {
		args.Value = (*hexutil.Big)(new(big.Int).Set(req.Value))
	}

	var hash common.Hash
	if err := p.call(ctx, &hash, methodSendTransaction, args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// ReadConnection returns the node connection used for reads.
func (p *Provider) ReadConnection() app.ReadConnection {
	return p.read
}

// OnAccountsChanged registers fn and returns its unsubscribe func.
func (p *Provider) OnAccountsChanged(fn func([]common.Address)) func() {
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.listeners[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.listeners, id)
		p.mu.Unlock()
	}
}

func (p *Provider) call(ctx context.Context, result any, method string, args ...any) error {
	ctx, span := p.tracer.Start(ctx, "wallet.rpc",
		trace.WithAttributes(attribute.String("rpc.method", method)))
	defer span.End()

	start := time.Now()
	err := p.caller.CallContext(ctx, result, method, args...)
	p.metrics.callDuration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.String("method", method)))

	if err != nil {
		err = mapError(method, err)
		p.metrics.calls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", method),
			attribute.String("result", string(apperror.GetCode(err)))))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.GetCode(err)))
		p.logger.Debug(ctx, "wallet rpc failed", "method", method, "error", err)
		return err
	}

	p.metrics.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("result", "ok")))
	return nil
}

// mapError converts transport and EIP-1193 failures into application errors.
// A request that never reached the wallet is WalletUnreachable; one whose
// answer was lost after it was written is WalletDisconnected. Only a wallet
// that lacks the method is ProviderUnavailable.
func mapError(method string, err error) error {
	if apperror.IsAppError(err) {
		switch apperror.GetCode(err) {
		case apperror.CodeWebSocketConnectionError, apperror.CodeWebSocketClosed, apperror.CodeWebSocketSendError:
			return apperror.New(apperror.CodeWalletUnreachable, apperror.WithCause(err), apperror.WithContext(method))
		}
		return err
	}

	// Checked before net.Error: a deadline is not a missing provider.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperror.New(apperror.CodeWalletRPCError, apperror.WithCause(err), apperror.WithContext(method+": no answer"))
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		opts := []apperror.Option{apperror.WithCause(err), apperror.WithContext(method)}
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
			opts = append(opts, apperror.WithPayload(dataErr.ErrorData()))
		}

		switch rpcErr.ErrorCode() {
		case codeUserRejected, codeUnauthorized:
			return apperror.New(apperror.CodeUserRejected, opts...)
		case codeMethodNotFound, codeUnsupported:
			return apperror.New(apperror.CodeProviderUnavailable, opts...)
		case codeDisconnected, codeChainDisconnected:
			return apperror.New(apperror.CodeWalletDisconnected, opts...)
		}
		return apperror.New(apperror.CodeWalletRPCError, opts...)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return apperror.New(apperror.CodeWalletUnreachable, apperror.WithCause(err), apperror.WithContext(method))
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return apperror.New(apperror.CodeWalletDisconnected, apperror.WithCause(err), apperror.WithContext(method))
	}

	return apperror.New(apperror.CodeWalletRPCError, apperror.WithCause(err), apperror.WithContext(method))
}

func (p *Provider) handleNotification(method string, params json.RawMessage) {
	if method != notificationAccountsChanged {
		return
	}

	var payload [][]common.Address
	if err := json.Unmarshal(params, &payload); err != nil || len(payload) == 0 {
		p.logger.Warn(context.Background(), "malformed accountsChanged notification", "params", string(params))
		return
	}
	p.publish(payload[0])
}

func (p *Provider) pollAccounts(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.config.AccountPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			accounts, err := p.fetchAccounts(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Debug(ctx, "account poll failed", "error", err)
				}
				continue
			}
			p.publish(accounts)
		}
	}
}

// remember records accounts without notifying; answers to our own requests
// are not account changes.
func (p *Provider) remember(accounts []common.Address) {
	p.mu.Lock()
	p.known = slices.Clone(accounts)
	p.mu.Unlock()
}

// publish notifies listeners when accounts differ from the last known set.
func (p *Provider) publish(accounts []common.Address) {
	p.mu.Lock()
	if slices.Equal(p.known, accounts) {
		p.mu.Unlock()
		return
	}
	p.known = slices.Clone(accounts)
	listeners := make([]func([]common.Address), 0, len(p.listeners))
	for _, fn := range p.listeners {
		listeners = append(listeners, fn)
	}
	p.mu.Unlock()

	for _, fn := range listeners {
		fn(accounts)
	}
}
