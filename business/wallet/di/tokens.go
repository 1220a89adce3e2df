// Package di contains dependency injection tokens for the wallet context.
package di

import (
	"github.com/fd1az/dapp-bridge/business/wallet/app"
	"github.com/fd1az/dapp-bridge/business/wallet/infra/bridge"
	"github.com/fd1az/dapp-bridge/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Session = di.NewToken[*app.Session]("wallet.Session")
)

// Private dependency tokens - internal to wallet module
var (
	Provider = di.NewToken[*bridge.Provider]("wallet:provider")
)

// Helper functions for type-safe access
func GetSession(c di.ServiceRegistry) *app.Session {
	return di.GetToken(c, Session)
}

func GetProvider(c di.ServiceRegistry) *bridge.Provider {
	return di.GetToken(c, Provider)
}
