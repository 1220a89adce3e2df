package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/internal/address"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/logger"
)

const (
	tracerName = "github.com/fd1az/dapp-bridge/business/contract/app"
	meterName  = "github.com/fd1az/dapp-bridge/business/contract/app"
)

type proxyKey struct {
	address string
	mode    domain.BindingMode
}

func (k proxyKey) String() string {
	return k.address + "/" + k.mode.String()
}

type registryMetrics struct {
	lookups      metric.Int64Counter
	breakerState metric.Int64Gauge
}

// Registry caches one proxy per (address, binding mode) for the process lifetime.
type Registry struct {
	conns      Connections
	normalizer *address.Normalizer
	logger     logger.LoggerInterface

	group   singleflight.Group
	mu      sync.RWMutex
	proxies map[proxyKey]*Proxy

	tracer  trace.Tracer
	metrics *registryMetrics
}

// NewRegistry creates an empty registry over the session's connections.
func NewRegistry(conns Connections, log logger.LoggerInterface) (*Registry, error) {
	r := &Registry{
		conns:      conns,
		normalizer: address.NewNormalizer(log),
		logger:     log,
		proxies:    make(map[proxyKey]*Proxy),
		tracer:     otel.Tracer(tracerName),
	}

	if err := r.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return r, nil
}

func (r *Registry) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	r.metrics = &registryMetrics{}

	r.metrics.lookups, err = meter.Int64Counter(
		"contract_proxy_lookups_total",
		metric.WithDescription("Proxy lookups by cache result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return err
	}

	r.metrics.breakerState, err = meter.Int64Gauge(
		"contract_circuit_breaker_state",
		metric.WithDescription("Contract call breaker state (0=closed, 1=half-open, 2=open)"),
		metric.WithUnit("{state}"),
	)
	return err
}

// GetProxy returns the cached proxy for (raw, mode), building it on first use.
// Writable proxies require a connected session and fail with NotConnected
// otherwise; nothing is cached in that case.
func (r *Registry) GetProxy(ctx context.Context, raw string, iface *domain.Interface, mode domain.BindingMode) (*Proxy, error) {
	if iface == nil {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("contract interface required"))
	}
	if !mode.Valid() {
		return nil, apperror.New(apperror.CodeInvalidBindingMode, apperror.WithContext(mode.String()))
	}

	addr := r.normalizer.Normalize(ctx, raw)
	if err := addr.Err(); err != nil {
		return nil, err
	}
	key := proxyKey{address: addr.String(), mode: mode}

	if p, ok := r.cached(ctx, key, iface); ok {
		r.metrics.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "hit")))
		return p, nil
	}

	v, err, _ := r.group.Do(key.String(), func() (any, error) {
		if p, ok := r.cached(ctx, key, iface); ok {
			return p, nil
		}
		return r.build(ctx, addr, iface, mode, key)
	})
	if err != nil {
		r.metrics.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "error")))
		return nil, err
	}

	r.metrics.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "miss")))
	return v.(*Proxy), nil
}

// Len returns the number of cached proxies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.proxies)
}

func (r *Registry) cached(ctx context.Context, key proxyKey, iface *domain.Interface) (*Proxy, bool) {
	r.mu.RLock()
	p, ok := r.proxies[key]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !p.iface.Compatible(iface) {
		r.logger.Warn(ctx, "proxy requested with a different interface; keeping cached binding",
			"contract", key.address,
			"mode", key.mode.String(),
			"cached", p.iface.Name(),
			"requested", iface.Name())
	}
	return p, true
}

func (r *Registry) build(ctx context.Context, addr address.Address, iface *domain.Interface, mode domain.BindingMode, key proxyKey) (*Proxy, error) {
	read, err := r.conns.ReadConnection()
	if err != nil {
		return nil, err
	}
	if mode == domain.Writable {
		if _, err := r.conns.WriteConnection(); err != nil {
			return nil, err
		}
	}

	p := newProxy(addr, iface, mode, r.conns, read, r.tracer, r.onBreakerState)

	r.mu.Lock()
	r.proxies[key] = p
	r.mu.Unlock()

	r.logger.Debug(ctx, "contract proxy created",
		"contract", addr.String(),
		"interface", iface.Name(),
		"mode", mode.String())
	return p, nil
}

func (r *Registry) onBreakerState(name string, from, to gobreaker.State) {
	ctx := context.Background()
	r.logger.Warn(ctx, "contract circuit breaker state change",
		"breaker", name,
		"from", from.String(),
		"to", to.String())

	var v int64
	switch to {
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	r.metrics.breakerState.Record(ctx, v, metric.WithAttributes(attribute.String("breaker", name)))
}
