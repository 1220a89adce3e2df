// Package di contains dependency injection tokens for the contract context.
package di

import (
	"github.com/fd1az/dapp-bridge/business/contract/app"
	"github.com/fd1az/dapp-bridge/business/contract/infra/journal"
	"github.com/fd1az/dapp-bridge/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Registry = di.NewToken[*app.Registry]("contract.Registry")
	Pipeline = di.NewToken[*app.Pipeline]("contract.Pipeline")
	Journal  = di.NewToken[*journal.Journal]("contract.Journal")
)

// Helper functions for type-safe access
func GetRegistry(c di.ServiceRegistry) *app.Registry {
	return di.GetToken(c, Registry)
}

func GetPipeline(c di.ServiceRegistry) *app.Pipeline {
	return di.GetToken(c, Pipeline)
}

func GetJournal(c di.ServiceRegistry) *journal.Journal {
	return di.GetToken(c, Journal)
}
