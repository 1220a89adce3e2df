// Package wallet implements the wallet bounded context: the provider session
// and its JSON-RPC bridge.
package wallet

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/dapp-bridge/business/wallet/app"
	walletDI "github.com/fd1az/dapp-bridge/business/wallet/di"
	"github.com/fd1az/dapp-bridge/business/wallet/infra/bridge"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/config"
	"github.com/fd1az/dapp-bridge/internal/di"
	"github.com/fd1az/dapp-bridge/internal/httpclient"
	"github.com/fd1az/dapp-bridge/internal/logger"
	"github.com/fd1az/dapp-bridge/internal/monolith"
	"github.com/fd1az/dapp-bridge/internal/wsconn"
)

// Module implements the wallet bounded context.
type Module struct{}

// RegisterServices registers all wallet services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register Provider (private - internal dependency)
	di.RegisterToken(c, walletDI.Provider, func(sr di.ServiceRegistry) *bridge.Provider {
		cfg := sr.Get(monolith.KeyConfig).(*config.Config)
		log := sr.Get(monolith.KeyLogger).(logger.LoggerInterface)
		node := sr.Get(monolith.KeyEthClient).(*ethclient.Client)

		caller, err := newCaller(cfg)
		if err != nil {
			panic("failed to create wallet transport: " + err.Error())
		}

		provider, err := bridge.NewProvider(caller, node, bridge.Config{
			RequestTimeout:      cfg.Wallet.RequestTimeout,
			AccountPollInterval: cfg.Wallet.AccountPollInterval,
		}, log)
		if err != nil {
			panic("failed to create wallet provider: " + err.Error())
		}
		return provider
	})

	// Register Session (public - exposed to other modules)
	di.RegisterToken(c, walletDI.Session, func(sr di.ServiceRegistry) *app.Session {
		cfg := sr.Get(monolith.KeyConfig).(*config.Config)
		log := sr.Get(monolith.KeyLogger).(logger.LoggerInterface)

		session, err := app.NewSession(walletDI.GetProvider(sr), app.SessionConfig{
			ConnectTimeout: cfg.Wallet.ConnectTimeout,
		}, log)
		if err != nil {
			panic("failed to create wallet session: " + err.Error())
		}
		return session
	})

	return nil
}

func newCaller(cfg *config.Config) (bridge.Caller, error) {
	switch cfg.Wallet.Transport {
	case config.TransportWS:
		wsCfg := wsconn.DefaultConfig(cfg.Wallet.URL, "wallet")
		if cfg.Ethereum.InitialBackoff > 0 {
			wsCfg.InitialBackoff = cfg.Ethereum.InitialBackoff
		}
		if cfg.Ethereum.MaxBackoff > 0 {
			wsCfg.MaxBackoff = cfg.Ethereum.MaxBackoff
		}
		wsCfg.MaxReconnects = cfg.Ethereum.MaxReconnects

		client, err := wsconn.New(wsCfg)
		if err != nil {
			return nil, err
		}
		return bridge.NewWSTransport(client), nil

	case config.TransportHTTP:
		hc, err := httpclient.New(
			httpclient.WithProviderName("wallet"),
			httpclient.WithRequestTimeout(cfg.Wallet.ConnectTimeout),
		)
		if err != nil {
			return nil, err
		}
		client, err := rpc.DialOptions(context.Background(), cfg.Wallet.URL, rpc.WithHTTPClient(hc))
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported wallet transport %q", cfg.Wallet.Transport)
	}
}

// Startup connects the wallet transport and resumes an authorized account
// without prompting.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()

	provider := walletDI.GetProvider(mono.Services())
	session := walletDI.GetSession(mono.Services())

	connectCtx, cancel := context.WithTimeout(ctx, cfg.Wallet.RequestTimeout)
	defer cancel()
	if err := provider.Connect(connectCtx); err != nil {
		// Don't fail - EnsureConnected surfaces ProviderUnavailable to the user
		log.Error(ctx, "failed to reach wallet", "url", cfg.Wallet.URL, "error", err)
	} else if account, ok, err := session.Resume(ctx); err != nil {
		log.Warn(ctx, "wallet resume failed", "error", err)
	} else if ok {
		log.Info(ctx, "wallet already authorized", "account", account.Short())
	}

	provider.Start(ctx)

	mono.Health().RegisterCheck("wallet", func(context.Context) (bool, string) {
		st := session.Status()
		if apperror.HasCode(st.Reason, apperror.CodeProviderUnavailable) {
			return false, st.Reason.Error()
		}
		return true, string(st.State)
	})

	log.Info(ctx, "wallet module started", "transport", cfg.Wallet.Transport)
	return nil
}
