// Package di contains dependency injection tokens for the events context.
package di

import (
	"github.com/fd1az/dapp-bridge/business/events/app"
	"github.com/fd1az/dapp-bridge/business/events/infra/ethereum"
	"github.com/fd1az/dapp-bridge/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Reconciler = di.NewToken[*app.Reconciler]("events.Reconciler")
)

// Private dependency tokens - internal to events module
var (
	LogSource = di.NewToken[*ethereum.LogSource]("events:logSource")
)

// Helper functions for type-safe access
func GetReconciler(c di.ServiceRegistry) *app.Reconciler {
	return di.GetToken(c, Reconciler)
}

func GetLogSource(c di.ServiceRegistry) *ethereum.LogSource {
	return di.GetToken(c, LogSource)
}
