// Package store wraps gorm access to the credential tables. The operations
// that matter for correctness under concurrent requests (duplicate
// registration, double token consumption) are pushed down to the database
// here instead of being read-then-write sequences in the service layer,
// because multiple instances of this process may share one database.
package store

import (
	"errors"

	"nimbus/account-api/internal/model"

	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateEmail = errors.New("email already registered")
)

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

// Create inserts the user and any associated rows (first verification
// token). The unique index on email is the only duplicate-registration
// guard, two racing inserts can't both pass it
func (s *Users) Create(u *model.User) error {
	if err := s.db.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateEmail
		}

		return err
	}

	return nil
}

func (s *Users) GetByEmail(email string) (*model.User, error) {
	var u model.User

	err := s.db.Where("email = ?", email).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &u, nil
}

func (s *Users) GetByID(id string) (*model.User, error) {
	var u model.User

	err := s.db.Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &u, nil
}

func (s *Users) UpdatePassword(userID, hash string) error {
	return s.db.Model(&model.User{}).
		Where("id = ?", userID).
		Update("password_hash", hash).
		Error
}

// MarkVerified flips the verified flag and clears the unverified-account
// expiry. The flag only ever goes false -> true
func (s *Users) MarkVerified(userID string) error {
	return s.db.Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"verified":   true,
			"expires_at": nil,
		}).
		Error
}

// SetSubscription records the Stripe customer mapping alongside the new
// subscription status. Later lifecycle events only carry the customer ID
func (s *Users) SetSubscription(email, customerID, status string) error {
	return s.db.Model(&model.User{}).
		Where("email = ?", email).
		Updates(map[string]any{
			"stripe_customer_id":  customerID,
			"subscription_status": status,
		}).
		Error
}

func (s *Users) SetSubscriptionStatusByCustomer(customerID, status string) error {
	return s.db.Model(&model.User{}).
		Where("stripe_customer_id = ?", customerID).
		Update("subscription_status", status).
		Error
}
