package service

import (
	"time"

	"nimbus/account-api/internal/store"

	"go.uber.org/zap"
)

// TokenCleanup periodically deletes expired verification and reset tokens.
// Expired tokens are already unusable (the consume query checks expiry),
// this just keeps the table from growing forever. Runs until the process
// exits
func TokenCleanup(every time.Duration, tokens *store.Tokens) {
	ticker := time.NewTicker(every)

	zap.L().Debug("Token cleanup attached", zap.Duration("tick_every", every))

	for range ticker.C {
		n, err := tokens.DeleteExpired(time.Now().UTC())
		if err != nil {
			zap.L().Error("Failed to clean up expired tokens", zap.Error(err))
			continue
		}

		if n > 0 {
			zap.L().Debug("Cleaned up expired tokens", zap.Int64("count", n))
		}
	}
}
