// Package di contains dependency injection tokens for the eventdemo context.
package di

import (
	"github.com/fd1az/dapp-bridge/business/eventdemo/app"
	"github.com/fd1az/dapp-bridge/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Service = di.NewToken[*app.Service]("eventdemo.Service")
)

// Helper functions for type-safe access
func GetService(c di.ServiceRegistry) *app.Service {
	return di.GetToken(c, Service)
}
