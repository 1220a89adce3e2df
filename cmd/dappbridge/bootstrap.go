package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/fd1az/dapp-bridge/business/contract"
	contractDI "github.com/fd1az/dapp-bridge/business/contract/di"
	"github.com/fd1az/dapp-bridge/business/eventdemo"
	"github.com/fd1az/dapp-bridge/business/events"
	eventsDI "github.com/fd1az/dapp-bridge/business/events/di"
	"github.com/fd1az/dapp-bridge/business/token"
	"github.com/fd1az/dapp-bridge/business/wallet"
	walletDI "github.com/fd1az/dapp-bridge/business/wallet/di"
	"github.com/fd1az/dapp-bridge/internal/apm"
	"github.com/fd1az/dapp-bridge/internal/config"
	"github.com/fd1az/dapp-bridge/internal/di"
	"github.com/fd1az/dapp-bridge/internal/logger"
	"github.com/fd1az/dapp-bridge/internal/metrics"
	"github.com/fd1az/dapp-bridge/internal/monolith"
)

// application is the monolith as seen by main.
type application interface {
	monolith.Monolith
	RegisterModules(modules ...monolith.Module) error
	StartModules(ctx context.Context, modules ...monolith.Module) error
	Close() error
}

// runtime owns everything a command needs and tears it down in reverse.
type runtime struct {
	cfg    *config.Config
	log    *logger.Logger
	tracer apm.TraceProvider
	meter  metrics.MetricProvider
	prom   *metrics.PrometheusServer
	app    application

	modules []monolith.Module
	closers []func()
}

// setup loads configuration and installs logging and telemetry. TUI mode
// discards logs so they do not corrupt the screen.
func setup(ctx context.Context, tuiMode bool) (*runtime, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.App.TUIMode = tuiMode

	var out io.Writer = os.Stderr
	if tuiMode {
		out = io.Discard
	}
	log := logger.New(out, logger.ParseLevel(cfg.App.LogLevel), cfg.App.Name, apm.TraceID)

	r := &runtime{
		cfg: cfg,
		log: log,
		// Define modules in dependency order
		modules: []monolith.Module{
			&wallet.Module{},    // Must be first - provides the session
			&contract.Module{},  // Depends on wallet for connections
			&events.Module{},    // Depends on the node client only
			&eventdemo.Module{}, // Depends on contract and events
			&token.Module{},     // Depends on contract
		},
	}

	r.tracer, err = apm.NewTraceProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("failed to init tracing: %w", err)
	}
	r.onClose(func() {
		if err := r.tracer.Stop(); err != nil {
			log.Warn(context.Background(), "trace provider stop failed", "error", err)
		}
	})

	if cfg.Telemetry.Enabled {
		opts := []metrics.OptionFn{
			metrics.WithServiceName(cfg.Telemetry.ServiceName),
			metrics.WithProviderConfig(metrics.NewPrometheusConfig()),
		}
		if cfg.Telemetry.OTLPEndpoint != "" {
			opts = append(opts, metrics.WithProviderConfig(metrics.NewOtelCollectorConfig(
				cfg.Telemetry.OTLPEndpoint,
				metrics.ParseHeaders(cfg.Telemetry.OTLPHeaders),
				metrics.InsecureOtel,
			)))
		}
		r.meter, err = metrics.NewMetricProvider(ctx, opts...)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to init metrics: %w", err)
		}
		r.onClose(func() { _ = r.meter.Shutdown(context.Background()) })

		port := cfg.Telemetry.PrometheusPort
		if port == 0 {
			port = 9090
		}
		r.prom = metrics.NewPrometheusServer(log, metrics.WithPort(strconv.Itoa(port)))
		r.prom.Start(ctx)
		r.onClose(func() { _ = r.prom.Stop(context.Background()) })
	}

	log.Info(ctx, "starting dappbridge",
		"version", version,
		"environment", cfg.App.Environment,
		"wallet_transport", cfg.Wallet.Transport)
	return r, nil
}

// connect dials the node, opens the journal and registers every module.
func (r *runtime) connect(ctx context.Context) error {
	mono, err := monolith.New(ctx, r.cfg, r.log, version)
	if err != nil {
		return fmt.Errorf("failed to create monolith: %w", err)
	}
	r.app = mono
	r.onClose(func() { _ = mono.Close() })

	if err := mono.RegisterModules(r.modules...); err != nil {
		return fmt.Errorf("failed to register modules: %w", err)
	}
	return nil
}

// start runs every module's Startup and serves health checks when a port is set.
func (r *runtime) start(ctx context.Context) error {
	if err := r.app.StartModules(ctx, r.modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	sr := r.services()
	r.onClose(walletDI.GetProvider(sr).Close)
	r.onClose(walletDI.GetSession(sr).Close)
	r.onClose(contractDI.GetPipeline(sr).Close)
	r.onClose(eventsDI.GetReconciler(sr).Close)

	if port := r.cfg.Telemetry.HealthPort; port > 0 {
		if err := r.app.Health().Start(ctx); err != nil {
			r.log.Warn(ctx, "failed to start health server", "error", err)
		} else {
			r.log.Info(ctx, "health server started", "port", port)
			r.onClose(func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				_ = r.app.Health().Stop(stopCtx)
			})
		}
	}
	return nil
}

func (r *runtime) services() di.ServiceRegistry {
	return r.app.Services()
}

func (r *runtime) onClose(fn func()) {
	r.closers = append(r.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

// open prepares a runtime for a one-shot command.
func open(ctx context.Context) (*runtime, error) {
	r, err := setup(ctx, false)
	if err != nil {
		return nil, err
	}
	if err := r.connect(ctx); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.start(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}
