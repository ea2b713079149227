package service

import (
	"time"

	"nimbus/account-api/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AccountCleanup deletes accounts that never verified their email within
// the verification window, together with their tokens and resend records.
// Runs until the process exits
func AccountCleanup(every time.Duration, db *gorm.DB) {
	ticker := time.NewTicker(every)

	zap.L().Debug("Account cleanup attached", zap.Duration("tick_every", every))

	for range ticker.C {
		var expiredIDs []string

		err := db.
			Model(&model.User{}).
			Where("expires_at < ?", time.Now().UTC()).
			Pluck("id", &expiredIDs).
			Error
		if err != nil {
			zap.L().Error("Failed to query expired accounts", zap.Error(err))
			continue
		}

		if len(expiredIDs) == 0 {
			continue
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("user_id IN ?", expiredIDs).Delete(&model.Token{}).Error; err != nil {
				return err
			}

			if err := tx.Where("user_id IN ?", expiredIDs).Delete(&model.ResendRequest{}).Error; err != nil {
				return err
			}

			return tx.Where("id IN ?", expiredIDs).Delete(&model.User{}).Error
		})
		if err != nil {
			zap.L().Error("Failed to delete expired accounts", zap.Error(err))
			continue
		}

		zap.L().Info("Removed unverified expired accounts", zap.Int("count", len(expiredIDs)))
	}
}
