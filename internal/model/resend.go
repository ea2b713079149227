package model

import "time"

// ResendRequest tracks when the last verification email went out for a
// user. The resend endpoint enforces a cooldown against this timestamp
type ResendRequest struct {
	ID       int    `gorm:"primaryKey;autoIncrement"`
	UserID   string `gorm:"uniqueIndex"`
	LastSent time.Time
}
