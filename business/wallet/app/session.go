package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/dapp-bridge/business/wallet/domain"
	"github.com/fd1az/dapp-bridge/internal/address"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/logger"
)

const (
	tracerName = "github.com/fd1az/dapp-bridge/business/wallet/app"
	meterName  = "github.com/fd1az/dapp-bridge/business/wallet/app"

	connectKey = "connect"
	resumeKey  = "resume"
)

// SessionConfig holds session settings.
type SessionConfig struct {
	// ConnectTimeout bounds a single account-access request, including the user prompt.
	ConnectTimeout time.Duration
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{ConnectTimeout: 2 * time.Minute}
}

type sessionMetrics struct {
	accountRequests metric.Int64Counter
	connectResults  metric.Int64Counter
	connectionState metric.Int64Gauge
}

// Session owns the connection lifecycle to the wallet provider. One instance
// exists per process and is injected into its consumers.
type Session struct {
	provider Provider
	config   SessionConfig
	logger   logger.LoggerInterface

	group singleflight.Group

	mu          sync.RWMutex
	status      domain.Status
	fatal       error
	listeners   []func(domain.Status)
	unsubscribe func()

	tracer  trace.Tracer
	metrics *sessionMetrics
}

// NewSession creates a session over provider. A nil provider yields a session
// whose every connect attempt fails with ProviderUnavailable.
func NewSession(provider Provider, cfg SessionConfig, log logger.LoggerInterface) (*Session, error) {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultSessionConfig().ConnectTimeout
	}

	s := &Session{
		provider: provider,
		config:   cfg,
		logger:   log,
		status:   domain.Status{State: domain.StateDisconnected},
		tracer:   otel.Tracer(tracerName),
	}

	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	if provider != nil {
		s.unsubscribe = provider.OnAccountsChanged(s.handleAccountsChanged)
	}

	return s, nil
}

func (s *Session) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &sessionMetrics{}

	s.metrics.accountRequests, err = meter.Int64Counter(
		"wallet_account_requests_total",
		metric.WithDescription("Account-access requests sent to the wallet provider"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectResults, err = meter.Int64Counter(
		"wallet_connect_results_total",
		metric.WithDescription("Connect attempt outcomes by result"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return err
	}

	s.metrics.connectionState, err = meter.Int64Gauge(
		"wallet_connection_state",
		metric.WithDescription("Wallet session state (0=disconnected, 1=connecting, 2=connected, 3=failed)"),
		metric.WithUnit("{state}"),
	)
	return err
}

// EnsureConnected returns the active account, connecting first if needed.
// Concurrent callers share one in-flight account request and its outcome.
// If ctx ends first the caller returns early; the shared attempt continues.
func (s *Session) EnsureConnected(ctx context.Context) (address.Address, error) {
	s.mu.RLock()
	status, fatal := s.status, s.fatal
	s.mu.RUnlock()

	if fatal != nil {
		return address.Zero, fatal
	}
	if status.Connected() {
		return status.Account, nil
	}

	ch := s.group.DoChan(connectKey, func() (any, error) {
		return s.connect(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return address.Zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return address.Zero, res.Err
		}
		return res.Val.(address.Address), nil
	}
}

func (s *Session) connect(ctx context.Context) (address.Address, error) {
	ctx, span := s.tracer.Start(ctx, "wallet.connect")
	defer span.End()

	// A flight that finished just before this one may already have connected.
	s.mu.RLock()
	status, fatal := s.status, s.fatal
	s.mu.RUnlock()
	if fatal != nil {
		return address.Zero, fatal
	}
	if status.Connected() {
		return status.Account, nil
	}

	if s.provider == nil {
		err := apperror.New(apperror.CodeProviderUnavailable,
			apperror.WithContext("no wallet provider configured"))
		s.fail(ctx, err, true)
		span.RecordError(err)
		span.SetStatus(codes.Error, "provider unavailable")
		return address.Zero, err
	}

	s.setStatus(ctx, domain.Status{State: domain.StateConnecting})

	reqCtx, cancel := context.WithTimeout(ctx, s.config.ConnectTimeout)
	defer cancel()

	s.metrics.accountRequests.Add(ctx, 1)
	accounts, err := s.provider.RequestAccounts(reqCtx)
	if err == nil && len(accounts) == 0 {
		err = apperror.New(apperror.CodeUserRejected,
			apperror.WithContext("wallet returned no accounts"))
	}
	if err != nil {
		fatal := apperror.HasCode(err, apperror.CodeProviderUnavailable)
		if !apperror.IsAppError(err) {
			err = apperror.New(apperror.CodeWalletRPCError,
				apperror.WithCause(err),
				apperror.WithContext("eth_requestAccounts"))
		}
		s.fail(ctx, err, fatal)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.GetCode(err)))
		return address.Zero, err
	}

	account := address.FromCommon(accounts[0])
	s.setStatus(ctx, domain.Status{State: domain.StateConnected, Account: account})
	s.metrics.connectResults.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "connected")))
	s.logger.Info(ctx, "wallet connected", "account", account.String())

	span.SetAttributes(attribute.String("account", account.String()))
	span.SetStatus(codes.Ok, "connected")
	return account, nil
}

// Resume connects silently when the wallet already authorizes an account.
// It never prompts. ok is false when no account is authorized.
func (s *Session) Resume(ctx context.Context) (account address.Address, ok bool, err error) {
	if s.provider == nil {
		return address.Zero, false, nil
	}

	res, err, _ := s.group.Do(resumeKey, func() (any, error) {
		accounts, err := s.provider.Accounts(ctx)
		if err != nil {
			return address.Zero, err
		}
		if len(accounts) == 0 {
			return address.Zero, nil
		}

		acct := address.FromCommon(accounts[0])
		next := domain.Status{State: domain.StateConnected, Account: acct}
		applied := s.setStatusIf(ctx, next, func(cur domain.Status) bool {
			return cur.State == domain.StateDisconnected || cur.State == domain.StateFailed
		})
		if !applied {
			return s.Status().Account, nil
		}

		s.logger.Info(ctx, "wallet resumed", "account", acct.String())
		return acct, nil
	})
	if err != nil {
		return address.Zero, false, apperror.Wrap(err, apperror.CodeWalletRPCError, "eth_accounts")
	}

	account = res.(address.Address)
	return account, account.Valid(), nil
}

// CurrentAccount returns the active account or NotConnected.
func (s *Session) CurrentAccount() (address.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.status.Connected() {
		return address.Zero, apperror.New(apperror.CodeNotConnected)
	}
	return s.status.Account, nil
}

// Status returns a snapshot of the session state.
func (s *Session) Status() domain.Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// ReadConnection returns the provider-backed read connection.
func (s *Session) ReadConnection() (ReadConnection, error) {
	if s.provider == nil {
		return nil, apperror.New(apperror.CodeProviderUnavailable)
	}
	conn := s.provider.ReadConnection()
	if conn == nil {
		return nil, apperror.New(apperror.CodeProviderUnavailable,
			apperror.WithContext("provider has no read connection"))
	}
	return conn, nil
}

// WriteConnection returns a connection signing as the active account.
// It fails with NotConnected until EnsureConnected has succeeded.
func (s *Session) WriteConnection() (WriteConnection, error) {
	account, err := s.CurrentAccount()
	if err != nil {
		return nil, err
	}
	read, err := s.ReadConnection()
	if err != nil {
		return nil, err
	}
	return &signer{ReadConnection: read, provider: s.provider, from: account.Common()}, nil
}

// OnStatusChange registers fn for every state transition.
func (s *Session) OnStatusChange(fn func(domain.Status)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Close detaches from provider notifications.
func (s *Session) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// handleAccountsChanged follows the provider's active account. An empty list
// means access was revoked.
func (s *Session) handleAccountsChanged(accounts []common.Address) {
	ctx := context.Background()

	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()

	if !status.Connected() {
		return
	}

	if len(accounts) == 0 {
		s.logger.Warn(ctx, "wallet revoked account access", "account", status.Account.String())
		s.setStatus(ctx, domain.Status{State: domain.StateDisconnected})
		return
	}

	next := address.FromCommon(accounts[0])
	if next.Equal(status.Account) {
		return
	}
	s.logger.Info(ctx, "wallet account changed", "from", status.Account.String(), "to", next.String())
	s.setStatus(ctx, domain.Status{State: domain.StateConnected, Account: next})
}

func (s *Session) fail(ctx context.Context, err error, fatal bool) {
	s.mu.Lock()
	if fatal {
		s.fatal = err
	}
	s.mu.Unlock()

	s.setStatus(ctx, domain.Status{State: domain.StateFailed, Reason: err})
	s.metrics.connectResults.Add(ctx, 1, metric.WithAttributes(
		attribute.String("result", string(apperror.GetCode(err)))))

	if fatal {
		s.logger.Error(ctx, "wallet provider unavailable", "error", err)
		return
	}
	s.logger.Warn(ctx, "wallet connect failed", "error", err, "outcome", apperror.Classify(err).String())
}

func (s *Session) setStatus(ctx context.Context, status domain.Status) {
	s.setStatusIf(ctx, status, nil)
}

// setStatusIf applies status when pred accepts the current one (or pred is nil).
func (s *Session) setStatusIf(ctx context.Context, status domain.Status, pred func(domain.Status) bool) bool {
	s.mu.Lock()
	if s.fatal != nil && status.State == domain.StateConnected {
		s.mu.Unlock()
		return false
	}
	if pred != nil && !pred(s.status) {
		s.mu.Unlock()
		return false
	}
	s.status = status
	listeners := append([]func(domain.Status){}, s.listeners...)
	s.mu.Unlock()

	s.metrics.connectionState.Record(ctx, status.State.Gauge())

	for _, fn := range listeners {
		fn(status)
	}
	return true
}

// signer is the WriteConnection handed out once connected.
type signer struct {
	ReadConnection
	provider Provider
	from     common.Address
}

func (w *signer) From() common.Address {
	return w.from
}

func (w *signer) SendTransaction(ctx context.Context, req CallRequest) (common.Hash, error) {
	return w.provider.SendTransaction(ctx, w.from, req)
}
