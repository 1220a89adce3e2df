package address

import (
	"context"

	"github.com/fd1az/dapp-bridge/internal/logger"
)

// Normalizer wraps Normalize and logs every degraded result.
type Normalizer struct {
	logger logger.LoggerInterface
}

// NewNormalizer creates a Normalizer that logs degraded addresses to log.
func NewNormalizer(log logger.LoggerInterface) *Normalizer {
	return &Normalizer{logger: log}
}

// Normalize canonicalizes raw and logs a warning when the result is not canonical.
func (n *Normalizer) Normalize(ctx context.Context, raw string) Address {
	addr := Normalize(raw)
	if addr.Degraded() && n.logger != nil {
		n.logger.Warn(ctx, "address normalization degraded",
			"input", raw,
			"value", addr.String(),
			"status", addr.Status().String())
	}
	return addr
}
