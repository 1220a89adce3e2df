// Package contract implements the contract bounded context: the proxy
// registry, the transaction pipeline and its journal.
package contract

import (
	"context"
	"fmt"

	"github.com/fd1az/dapp-bridge/business/contract/app"
	contractDI "github.com/fd1az/dapp-bridge/business/contract/di"
	"github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/business/contract/infra/journal"
	walletDI "github.com/fd1az/dapp-bridge/business/wallet/di"
	"github.com/fd1az/dapp-bridge/internal/config"
	"github.com/fd1az/dapp-bridge/internal/di"
	"github.com/fd1az/dapp-bridge/internal/logger"
	"github.com/fd1az/dapp-bridge/internal/monolith"
	"github.com/fd1az/dapp-bridge/internal/storage"
)

// Module implements the contract bounded context.
type Module struct{}

// RegisterServices registers all contract services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, contractDI.Journal, func(sr di.ServiceRegistry) *journal.Journal {
		return journal.New(sr.Get(monolith.KeyStore).(*storage.Store))
	})

	di.RegisterToken(c, contractDI.Registry, func(sr di.ServiceRegistry) *app.Registry {
		log := sr.Get(monolith.KeyLogger).(logger.LoggerInterface)

		registry, err := app.NewRegistry(walletDI.GetSession(sr), log)
		if err != nil {
			panic("failed to create contract registry: " + err.Error())
		}
		return registry
	})

	di.RegisterToken(c, contractDI.Pipeline, func(sr di.ServiceRegistry) *app.Pipeline {
		cfg := sr.Get(monolith.KeyConfig).(*config.Config)
		log := sr.Get(monolith.KeyLogger).(logger.LoggerInterface)

		pipeline, err := app.NewPipeline(app.PipelineConfig{
			ConfirmationTimeout: cfg.Pipeline.ConfirmationTimeout,
			PollInterval:        cfg.Pipeline.PollInterval,
		}, walletDI.GetSession(sr), contractDI.GetJournal(sr), log)
		if err != nil {
			panic("failed to create transaction pipeline: " + err.Error())
		}
		return pipeline
	})

	return nil
}

// Startup reports journaled transactions left unresolved by a previous run.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	j := contractDI.GetJournal(mono.Services())

	recent, err := j.Recent(ctx, 20)
	if err != nil {
		// Don't fail - the journal is informational
		log.Error(ctx, "failed to read transaction journal", "error", err)
	}
	for _, s := range recent {
		if s.State == domain.TxSubmitted || s.State == domain.TxTimedOut {
			log.Warn(ctx, "transaction unresolved from a previous run",
				"hash", s.Hash.Hex(),
				"method", s.Method,
				"submitted_at", s.SubmittedAt)
		}
	}

	mono.Health().RegisterCheck("contracts", func(context.Context) (bool, string) {
		return true, fmt.Sprintf("%d proxies", contractDI.GetRegistry(mono.Services()).Len())
	})

	log.Info(ctx, "contract module started",
		"confirmation_timeout", mono.Config().Pipeline.ConfirmationTimeout)
	return nil
}
