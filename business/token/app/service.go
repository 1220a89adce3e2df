// Package app contains the SIM token service.
package app

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	contractapp "github.com/fd1az/dapp-bridge/business/contract/app"
	contract "github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/business/token/domain"
	"github.com/fd1az/dapp-bridge/internal/address"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/asset"
	"github.com/fd1az/dapp-bridge/internal/logger"
)

const tracerName = "github.com/fd1az/dapp-bridge/business/token/app"

// Connector establishes the wallet session. *walletapp.Session satisfies it.
type Connector interface {
	EnsureConnected(ctx context.Context) (address.Address, error)
}

// Service reads balances of, and sends, one ERC-20 token.
type Service struct {
	address   string
	connector Connector
	registry  *contractapp.Registry
	pipeline  *contractapp.Pipeline
	logger    logger.LoggerInterface
	tracer    trace.Tracer

	group singleflight.Group
	mu    sync.RWMutex
	asset *asset.Asset
}

// NewService creates a service for the token at addr.
func NewService(
	addr string,
	connector Connector,
	registry *contractapp.Registry,
	pipeline *contractapp.Pipeline,
	log logger.LoggerInterface,
) *Service {
	return &Service{
		address:   addr,
		connector: connector,
		registry:  registry,
		pipeline:  pipeline,
		logger:    log,
		tracer:    otel.Tracer(tracerName),
	}
}

// Address returns the configured token address.
func (s *Service) Address() string {
	return s.address
}

// Configured reports whether a token address was supplied.
func (s *Service) Configured() bool {
	return strings.TrimSpace(s.address) != ""
}

// Asset returns the token metadata, reading it from the contract once.
func (s *Service) Asset(ctx context.Context) (*asset.Asset, error) {
	s.mu.RLock()
	a := s.asset
	s.mu.RUnlock()
	if a != nil {
		return a, nil
	}

	v, err, _ := s.group.Do("asset", func() (any, error) {
		return s.loadAsset(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*asset.Asset), nil
}

func (s *Service) loadAsset(ctx context.Context) (*asset.Asset, error) {
	proxy, err := s.registry.GetProxy(ctx, s.address, domain.Interface, contract.ReadOnly)
	if err != nil {
		return nil, err
	}

	symbol, err := callOne[string](ctx, proxy, domain.MethodSymbol)
	if err != nil {
		return nil, err
	}
	decimals, err := callOne[uint8](ctx, proxy, domain.MethodDecimals)
	if err != nil {
		return nil, err
	}
	// name() is optional in ERC-20
	name, err := callOne[string](ctx, proxy, domain.MethodName)
	if err != nil {
		s.logger.Debug(ctx, "token name unavailable", "token", proxy.Address().Short(), "error", err)
	}

	a := asset.NewAssetWithName(proxy.Address().Common(), symbol, name, decimals)

	s.mu.Lock()
	s.asset = a
	s.mu.Unlock()

	s.logger.Info(ctx, "token metadata loaded", "token", proxy.Address().Short(), "symbol", a.Symbol(), "decimals", decimals)
	return a, nil
}

// TokenInfo returns holder's balance with the token metadata.
func (s *Service) TokenInfo(ctx context.Context, holder string) (domain.TokenInfo, error) {
	ctx, span := s.tracer.Start(ctx, "token.info", trace.WithAttributes(
		attribute.String("token", s.address),
	))
	defer span.End()

	who := address.Normalize(holder)
	if err := who.Err(); err != nil {
		span.SetStatus(codes.Error, "invalid holder")
		return domain.TokenInfo{}, err
	}

	a, err := s.Asset(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "metadata failed")
		return domain.TokenInfo{}, err
	}

	proxy, err := s.registry.GetProxy(ctx, s.address, domain.Interface, contract.ReadOnly)
	if err != nil {
		return domain.TokenInfo{}, err
	}
	raw, err := callOne[*big.Int](ctx, proxy, domain.MethodBalanceOf, who.Common())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "balanceOf failed")
		return domain.TokenInfo{}, err
	}
	if raw == nil || raw.Sign() < 0 {
		return domain.TokenInfo{}, apperror.New(apperror.CodeRemoteFailed, apperror.WithContext("balanceOf returned no value"))
	}

	span.SetStatus(codes.Ok, "read")
	return domain.NewTokenInfo(proxy.Address(), who, a, asset.NewAmount(a, raw)), nil
}

// Balance connects the wallet and returns the connected account's balance.
func (s *Service) Balance(ctx context.Context) (domain.TokenInfo, error) {
	account, err := s.connector.EnsureConnected(ctx)
	if err != nil {
		return domain.TokenInfo{}, err
	}
	return s.TokenInfo(ctx, account.String())
}

// SendTokens parses a human amount such as "1.5" and submits transfer(to, amount).
func (s *Service) SendTokens(ctx context.Context, to, amount string) (*contractapp.PendingTransaction, error) {
	recipient := address.Normalize(to)
	if err := recipient.Err(); err != nil {
		return nil, err
	}

	a, err := s.Asset(ctx)
	if err != nil {
		return nil, err
	}

	value, err := asset.ParseString(a, strings.TrimSpace(amount))
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("amount %q", amount)))
	}
	if value.IsZero() {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("amount must be positive"))
	}

	if _, err := s.connector.EnsureConnected(ctx); err != nil {
		return nil, err
	}

	proxy, err := s.registry.GetProxy(ctx, s.address, domain.Interface, contract.Writable)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "sending tokens", "to", recipient.Short(), "amount", value.String())
	return s.pipeline.Submit(ctx, proxy, domain.MethodTransfer, recipient.Common(), value.Raw())
}

// callOne calls a method with a single return value.
func callOne[T any](ctx context.Context, proxy *contractapp.Proxy, method string, args ...any) (T, error) {
	var zero T
	out, err := proxy.Call(ctx, method, args...)
	if err != nil {
		return zero, err
	}
	if len(out) != 1 {
		return zero, apperror.New(apperror.CodeRemoteFailed, apperror.WithContext(method+" returned no value"))
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, apperror.New(apperror.CodeRemoteFailed,
			apperror.WithContext(fmt.Sprintf("%s returned %T", method, out[0])))
	}
	return v, nil
}
