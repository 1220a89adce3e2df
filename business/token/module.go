// Package token implements the SIM token context: balances and transfers
// of an ERC-20 token.
package token

import (
	"context"

	contractDI "github.com/fd1az/dapp-bridge/business/contract/di"
	"github.com/fd1az/dapp-bridge/business/token/app"
	tokenDI "github.com/fd1az/dapp-bridge/business/token/di"
	walletDI "github.com/fd1az/dapp-bridge/business/wallet/di"
	"github.com/fd1az/dapp-bridge/internal/config"
	"github.com/fd1az/dapp-bridge/internal/di"
	"github.com/fd1az/dapp-bridge/internal/logger"
	"github.com/fd1az/dapp-bridge/internal/monolith"
)

// Module implements the token bounded context.
type Module struct{}

// RegisterServices registers the token service with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, tokenDI.Service, func(sr di.ServiceRegistry) *app.Service {
		cfg := sr.Get(monolith.KeyConfig).(*config.Config)
		log := sr.Get(monolith.KeyLogger).(logger.LoggerInterface)

		return app.NewService(
			cfg.Contract.SIMTokenAddress,
			walletDI.GetSession(sr),
			contractDI.GetRegistry(sr),
			contractDI.GetPipeline(sr),
			log,
		)
	})

	return nil
}

// Startup loads the token metadata when a token is configured.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	svc := tokenDI.GetService(mono.Services())

	if !svc.Configured() {
		log.Info(ctx, "no SIM token configured, balance features disabled")
		return nil
	}

	if _, err := svc.Asset(ctx); err != nil {
		// Don't fail - balance reads retry the metadata
		log.Warn(ctx, "failed to read token metadata", "token", svc.Address(), "error", err)
	}

	log.Info(ctx, "token module started", "token", svc.Address())
	return nil
}
