// Package events implements the event bounded context: reconciling contract
// log history with the live log stream.
package events

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/dapp-bridge/business/events/app"
	eventsDI "github.com/fd1az/dapp-bridge/business/events/di"
	"github.com/fd1az/dapp-bridge/business/events/infra/ethereum"
	"github.com/fd1az/dapp-bridge/internal/config"
	"github.com/fd1az/dapp-bridge/internal/di"
	"github.com/fd1az/dapp-bridge/internal/logger"
	"github.com/fd1az/dapp-bridge/internal/monolith"
)

// Module implements the events bounded context.
type Module struct{}

// RegisterServices registers all event services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Register LogSource (private - internal dependency)
	di.RegisterToken(c, eventsDI.LogSource, func(sr di.ServiceRegistry) *ethereum.LogSource {
		cfg := sr.Get(monolith.KeyConfig).(*config.Config)
		log := sr.Get(monolith.KeyLogger).(logger.LoggerInterface)
		node := sr.Get(monolith.KeyEthClient).(*ethclient.Client)

		source, err := ethereum.NewLogSource(node, ethereum.Config{
			HistoryBatchSize:  cfg.Events.HistoryBatchSize,
			RequestsPerMinute: cfg.Events.RequestsPerMinute,
			PollInterval:      cfg.Events.PollInterval,
		}, log)
		if err != nil {
			panic("failed to create log source: " + err.Error())
		}
		return source
	})

	// Register Reconciler (public - exposed to other modules)
	di.RegisterToken(c, eventsDI.Reconciler, func(sr di.ServiceRegistry) *app.Reconciler {
		cfg := sr.Get(monolith.KeyConfig).(*config.Config)
		log := sr.Get(monolith.KeyLogger).(logger.LoggerInterface)

		reconciler, err := app.NewReconciler(eventsDI.GetLogSource(sr), app.Config{
			FromBlock:      cfg.Events.FromBlock,
			BufferSize:     cfg.Events.BufferSize,
			ResubscribeMin: cfg.Events.ResubscribeMin,
			ResubscribeMax: cfg.Events.ResubscribeMax,
		}, log)
		if err != nil {
			panic("failed to create event reconciler: " + err.Error())
		}
		return reconciler
	})

	return nil
}

// Startup builds the reconciler. Filters are attached by their consumers.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	cfg := mono.Config()
	reconciler := eventsDI.GetReconciler(mono.Services())

	mono.Health().RegisterCheck("events", func(context.Context) (bool, string) {
		return true, fmt.Sprintf("%d filters attached", reconciler.Attached())
	})

	mono.Logger().Info(ctx, "events module started",
		"from_block", cfg.Events.FromBlock,
		"history_batch_size", cfg.Events.HistoryBatchSize)
	return nil
}
