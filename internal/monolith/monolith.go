// Package monolith provides the application container and module interface.
package monolith

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/dapp-bridge/internal/config"
	"github.com/fd1az/dapp-bridge/internal/di"
	"github.com/fd1az/dapp-bridge/internal/health"
	"github.com/fd1az/dapp-bridge/internal/httpclient"
	"github.com/fd1az/dapp-bridge/internal/logger"
	"github.com/fd1az/dapp-bridge/internal/storage"
)

// Monolith is the main application container providing access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	EthClient() *ethclient.Client
	Store() *storage.Store
	Health() *health.Server
	Services() di.ServiceRegistry
}

// Module represents a bounded context module that can register services and start up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

// Global service keys.
const (
	KeyConfig    = "config"
	KeyLogger    = "logger"
	KeyEthClient = "ethClient"
	KeyStore     = "store"
	KeyHealth    = "health"
)

// app implements the Monolith interface.
type app struct {
	config    *config.Config
	logger    logger.LoggerInterface
	ethClient *ethclient.Client
	store     *storage.Store
	health    *health.Server
	container di.Container
}

// New dials the node, opens the journal and registers global services.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, version string) (*app, error) {
	ethClient, err := DialNode(ctx, cfg.Ethereum.NodeURL())
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		ethClient.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	healthSrv := health.NewServer(cfg.Telemetry.HealthPort, version, log)
	healthSrv.RegisterCheck("journal", func(ctx context.Context) (bool, string) {
		if err := store.Ping(ctx); err != nil {
			return false, err.Error()
		}
		return true, "ok"
	})
	healthSrv.RegisterCheck("ethereum", func(ctx context.Context) (bool, string) {
		n, err := ethClient.BlockNumber(ctx)
		if err != nil {
			return false, err.Error()
		}
		return true, fmt.Sprintf("block %d", n)
	})

	container := di.NewContainer()

	// Register global services
	container.Register(KeyConfig, cfg)
	container.Register(KeyLogger, log)
	container.Register(KeyEthClient, ethClient)
	container.Register(KeyStore, store)
	container.Register(KeyHealth, healthSrv)

	return &app{
		config:    cfg,
		logger:    log,
		ethClient: ethClient,
		store:     store,
		health:    healthSrv,
		container: container,
	}, nil
}

// DialNode connects to a node. HTTP endpoints go through the instrumented client.
func DialNode(ctx context.Context, url string) (*ethclient.Client, error) {
	var opts []rpc.ClientOption
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		hc, err := httpclient.New(httpclient.WithProviderName("ethereum"))
		if err != nil {
			return nil, err
		}
		opts = append(opts, rpc.WithHTTPClient(hc))
	}

	client, err := rpc.DialOptions(ctx, url, opts...)
	if err != nil {
		return nil, fmt.Errorf("dial node %s: %w", url, err)
	}
	return ethclient.NewClient(client), nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) EthClient() *ethclient.Client {
	return a.ethClient
}

func (a *app) Store() *storage.Store {
	return a.store
}

func (a *app) Health() *health.Server {
	return a.health
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// Container returns the DI container for module registration.
func (a *app) Container() di.Container {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	var err error
	if a.store != nil {
		err = a.store.Close()
	}
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return err
}
