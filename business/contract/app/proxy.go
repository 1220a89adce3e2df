package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/dapp-bridge/business/contract/domain"
	walletapp "github.com/fd1az/dapp-bridge/business/wallet/app"
	"github.com/fd1az/dapp-bridge/internal/address"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/circuitbreaker"
)

// Proxy invokes methods of one contract. Writable proxies resolve the signer
// on every submission so they follow the session's active account.
type Proxy struct {
	address address.Address
	iface   *domain.Interface
	mode    domain.BindingMode

	conns   Connections
	read    walletapp.ReadConnection
	breaker *circuitbreaker.CircuitBreaker[[]byte]
	tracer  trace.Tracer
}

func newProxy(addr address.Address, iface *domain.Interface, mode domain.BindingMode,
	conns Connections, read walletapp.ReadConnection, tracer trace.Tracer,
	onState func(name string, from, to gobreaker.State)) *Proxy {

	cbCfg := circuitbreaker.DefaultConfig(fmt.Sprintf("contract-%s-%s", addr.Short(), mode))
	cbCfg.OnStateChange = onState
	cbCfg.IsSuccessful = func(err error) bool {
		// A revert is the contract answering, not the node failing.
		_, reverted := revertFrom(err)
		return err == nil || reverted
	}

	return &Proxy{
		address: addr,
		iface:   iface,
		mode:    mode,
		conns:   conns,
		read:    read,
		breaker: circuitbreaker.New[[]byte](cbCfg),
		tracer:  tracer,
	}
}

// Address returns the contract address.
func (p *Proxy) Address() address.Address {
	return p.address
}

// Interface returns the contract interface.
func (p *Proxy) Interface() *domain.Interface {
	return p.iface
}

// Mode returns the binding mode.
func (p *Proxy) Mode() domain.BindingMode {
	return p.mode
}

// Call invokes a read-only method at the latest block and returns its
// decoded outputs.
func (p *Proxy) Call(ctx context.Context, method string, args ...any) ([]any, error) {
	ctx, span := p.tracer.Start(ctx, "contract.call", trace.WithAttributes(
		attribute.String("contract", p.address.String()),
		attribute.String("method", method),
	))
	defer span.End()

	data, err := p.pack(method, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pack failed")
		return nil, err
	}

	to := p.address.Common()
	msg := ethereum.CallMsg{To: &to, Data: data}
	if p.mode == domain.Writable {
		if w, err := p.conns.WriteConnection(); err == nil {
			msg.From = w.From()
		}
	}

	out, err := p.breaker.Execute(func() ([]byte, error) {
		return p.read.CallContract(ctx, msg, nil)
	})
	if err != nil {
		err = remoteFailed(err, fmt.Sprintf("%s.%s", p.iface.Name(), method))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperror.GetCode(err)))
		return nil, err
	}

	values, err := p.iface.ABI().Unpack(method, out)
	if err != nil {
		err = apperror.New(apperror.CodeRemoteFailed,
			apperror.WithCause(err),
			apperror.WithPayload(out),
			apperror.WithContext(fmt.Sprintf("decode %s.%s output at %s", p.iface.Name(), method, p.address)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return values, nil
}

func (p *Proxy) pack(method string, args []any) ([]byte, error) {
	if _, ok := p.iface.Method(method); !ok {
		return nil, apperror.New(apperror.CodeUnknownMethod,
			apperror.WithContext(fmt.Sprintf("%s has no method %q", p.iface.Name(), method)))
	}
	data, err := p.iface.ABI().Pack(method, args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidInput,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s.%s arguments", p.iface.Name(), method)))
	}
	return data, nil
}

// writeConnection returns the signer for the session's current account.
func (p *Proxy) writeConnection() (walletapp.WriteConnection, error) {
	if p.mode != domain.Writable {
		return nil, apperror.New(apperror.CodeInvalidBindingMode,
			apperror.WithContext(fmt.Sprintf("proxy for %s is %s", p.address, p.mode)))
	}
	return p.conns.WriteConnection()
}

// remoteFailed wraps a node error as RemoteFailed with any revert detail as
// payload. Circuit breaker errors pass through.
func remoteFailed(err error, what string) error {
	if apperror.HasCode(err, apperror.CodeCircuitOpen) || apperror.HasCode(err, apperror.CodeCircuitHalfOpen) {
		return err
	}
	opts := []apperror.Option{apperror.WithCause(err), apperror.WithContext(what)}
	if rev, ok := revertFrom(err); ok {
		opts = append(opts, apperror.WithPayload(rev))
	} else {
		opts = append(opts, apperror.WithPayload(err.Error()))
	}
	return apperror.New(apperror.CodeRemoteFailed, opts...)
}
