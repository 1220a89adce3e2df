// Package eventdemo implements the EventDemo dashboard context: ping,
// setMessage, the stored message and the ActionLogged feed.
package eventdemo

import (
	"context"

	contractDI "github.com/fd1az/dapp-bridge/business/contract/di"
	"github.com/fd1az/dapp-bridge/business/eventdemo/app"
	eventdemoDI "github.com/fd1az/dapp-bridge/business/eventdemo/di"
	eventsDI "github.com/fd1az/dapp-bridge/business/events/di"
	walletDI "github.com/fd1az/dapp-bridge/business/wallet/di"
	"github.com/fd1az/dapp-bridge/internal/address"
	"github.com/fd1az/dapp-bridge/internal/config"
	"github.com/fd1az/dapp-bridge/internal/di"
	"github.com/fd1az/dapp-bridge/internal/logger"
	"github.com/fd1az/dapp-bridge/internal/monolith"
)

// Module implements the eventdemo bounded context.
type Module struct{}

// RegisterServices registers the EventDemo service with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, eventdemoDI.Service, func(sr di.ServiceRegistry) *app.Service {
		cfg := sr.Get(monolith.KeyConfig).(*config.Config)
		log := sr.Get(monolith.KeyLogger).(logger.LoggerInterface)

		return app.NewService(
			cfg.Contract.EventDemoAddress,
			walletDI.GetSession(sr),
			contractDI.GetRegistry(sr),
			contractDI.GetPipeline(sr),
			eventsDI.GetReconciler(sr),
			log,
		)
	})

	return nil
}

// Startup validates the configured address. The feed is attached by the UI.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	svc := eventdemoDI.GetService(mono.Services())

	addr := address.Normalize(svc.Address())
	if !addr.Valid() {
		// Don't fail - every call reports InvalidAddress until it is configured
		log.Warn(ctx, "EventDemo address not configured or invalid",
			"address", svc.Address(),
			"env", "DAPP_EVENT_DEMO_ADDRESS")
		return nil
	}

	log.Info(ctx, "eventdemo module started", "contract", addr.Short())
	return nil
}
