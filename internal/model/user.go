// Package model holds the gorm models backing the credential store
package model

import "time"

type User struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Verified     bool   `gorm:"default:false"`
	CreatedAt    time.Time

	// Unverified accounts expire and get cleaned up. Cleared on verification
	ExpiresAt *time.Time

	SubscriptionStatus string
	StripeCustomerID   string `gorm:"index"`

	Tokens        []Token        `gorm:"foreignKey:UserID"`
	ResendRequest *ResendRequest `gorm:"foreignKey:UserID"`
}

// PublicUser is the projection returned to clients. The password hash and
// internal bookkeeping never leave the server
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
	}
}
