package model

import "time"

// Token purposes. Access tokens are stateless JWTs and never stored, so
// they have no purpose constant here
const (
	TokenPurposeVerify = "email_verify"
	TokenPurposeReset  = "password_reset"
)

// Token is a single-use, purpose-bound opaque token (email verification or
// password reset). Valid only while expires_at is in the future and used is
// still false
type Token struct {
	ID        int    `gorm:"primaryKey;autoIncrement"`
	UserID    string `gorm:"index"`
	Value     string `gorm:"column:token;uniqueIndex"`
	Purpose   string
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	CreatedAt time.Time
	CleanupAt *time.Time
}
