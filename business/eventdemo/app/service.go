// Package app contains the EventDemo dashboard service.
package app

import (
	"context"
	"strings"
	"sync"

	contractapp "github.com/fd1az/dapp-bridge/business/contract/app"
	contract "github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/business/eventdemo/domain"
	eventsapp "github.com/fd1az/dapp-bridge/business/events/app"
	events "github.com/fd1az/dapp-bridge/business/events/domain"
	"github.com/fd1az/dapp-bridge/internal/address"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/logger"
)

// Connector establishes the wallet session. *walletapp.Session satisfies it.
type Connector interface {
	EnsureConnected(ctx context.Context) (address.Address, error)
}

// Service drives one deployed EventDemo contract.
type Service struct {
	address    string
	connector  Connector
	registry   *contractapp.Registry
	pipeline   *contractapp.Pipeline
	reconciler *eventsapp.Reconciler
	logger     logger.LoggerInterface

	mu       sync.Mutex
	handle   *eventsapp.FilterHandle
	onAction func(domain.Action)
}

// NewService creates a service for the contract at addr.
func NewService(
	addr string,
	connector Connector,
	registry *contractapp.Registry,
	pipeline *contractapp.Pipeline,
	reconciler *eventsapp.Reconciler,
	log logger.LoggerInterface,
) *Service {
	return &Service{
		address:    addr,
		connector:  connector,
		registry:   registry,
		pipeline:   pipeline,
		reconciler: reconciler,
		logger:     log,
	}
}

// Address returns the configured contract address.
func (s *Service) Address() string {
	return s.address
}

// Ping submits ping().
func (s *Service) Ping(ctx context.Context) (*contractapp.PendingTransaction, error) {
	return s.submit(ctx, domain.MethodPing)
}

// SetMessage submits setMessage(msg). Blank messages are rejected locally.
func (s *Service) SetMessage(ctx context.Context, msg string) (*contractapp.PendingTransaction, error) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return nil, apperror.New(apperror.CodeRequiredField, apperror.WithContext("message"))
	}
	return s.submit(ctx, domain.MethodSetMessage, msg)
}

func (s *Service) submit(ctx context.Context, method string, args ...any) (*contractapp.PendingTransaction, error) {
	if _, err := s.connector.EnsureConnected(ctx); err != nil {
		return nil, err
	}

	proxy, err := s.registry.GetProxy(ctx, s.address, domain.Interface, contract.Writable)
	if err != nil {
		return nil, err
	}
	return s.pipeline.Submit(ctx, proxy, method, args...)
}

// Message reads the stored message.
func (s *Service) Message(ctx context.Context) (string, error) {
	proxy, err := s.registry.GetProxy(ctx, s.address, domain.Interface, contract.ReadOnly)
	if err != nil {
		return "", err
	}

	out, err := proxy.Call(ctx, domain.MethodMessage)
	if err != nil {
		return "", err
	}
	msg, ok := out[0].(string)
	if !ok {
		return "", apperror.New(apperror.CodeRemoteFailed, apperror.WithContext("message() did not return a string"))
	}
	return msg, nil
}

// WatchActions delivers every ActionLogged event, history first, to fn.
func (s *Service) WatchActions(ctx context.Context, fn func(domain.Action)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("already watching ActionLogged"))
	}
	return s.attach(ctx, fn)
}

// Refresh detaches the feed and attaches it again, replaying history. The new
// filter starts only after the old one has delivered its last record.
func (s *Service) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.onAction == nil {
		return apperror.New(apperror.CodeInvalidState, apperror.WithContext("not watching ActionLogged"))
	}
	if old := s.handle; old != nil {
		s.reconciler.Detach(old)
		s.handle = nil

		select {
		case <-old.Done():
		case <-ctx.Done():
			return apperror.New(apperror.CodeInvalidState,
				apperror.WithCause(ctx.Err()),
				apperror.WithContext("previous ActionLogged feed still delivering"))
		}
	}
	return s.attach(ctx, s.onAction)
}

// StopWatching detaches the feed.
func (s *Service) StopWatching() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handle != nil {
		s.reconciler.Detach(s.handle)
	}
	s.handle = nil
	s.onAction = nil
}

func (s *Service) attach(ctx context.Context, fn func(domain.Action)) error {
	s.onAction = fn

	h, err := s.reconciler.Attach(ctx, s.address, domain.Interface, domain.EventAction, func(r events.Record) {
		action, err := domain.ActionFromRecord(r)
		if err != nil {
			s.logger.Warn(context.Background(), "skipping malformed event", "key", r.Key().String(), "error", err)
			return
		}
		fn(action)
	})
	if err != nil {
		return err
	}
	s.handle = h
	return nil
}
