package store

import (
	"errors"
	"time"

	"nimbus/account-api/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrTokenInvalid covers every way a purpose token can fail: unknown value,
// wrong purpose, expired, or already consumed. Callers never learn which
var ErrTokenInvalid = errors.New("token invalid, expired or already used")

type Tokens struct {
	db *gorm.DB
}

func NewTokens(db *gorm.DB) *Tokens {
	return &Tokens{db: db}
}

func (s *Tokens) Create(t *model.Token) error {
	return s.db.Create(t).Error
}

// Consume marks a token used and returns it. The check and the consume are
// one conditional UPDATE so two requests racing on the same token can't
// both succeed, only the request whose UPDATE actually changed the row wins
func (s *Tokens) Consume(value, purpose string, now time.Time) (*model.Token, error) {
	r := s.db.Model(&model.Token{}).
		Where("token = ? AND purpose = ? AND used = ? AND expires_at > ?",
			value, purpose, false, now).
		Updates(map[string]any{
			"used":    true,
			"used_at": now,
		})
	if r.Error != nil {
		return nil, r.Error
	}

	if r.RowsAffected == 0 {
		return nil, ErrTokenInvalid
	}

	var t model.Token

	err := s.db.Where("token = ?", value).First(&t).Error
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// DeleteExpired removes tokens whose expiry is past, used by the periodic
// cleanup job
func (s *Tokens) DeleteExpired(now time.Time) (int64, error) {
	r := s.db.Where("expires_at < ?", now).Delete(&model.Token{})
	return r.RowsAffected, r.Error
}

type Resends struct {
	db *gorm.DB
}

func NewResends(db *gorm.DB) *Resends {
	return &Resends{db: db}
}

// LastSent returns when the last verification email went out for the user,
// or nil if none was ever recorded
func (s *Resends) LastSent(userID string) (*time.Time, error) {
	var r model.ResendRequest

	err := s.db.Where("user_id = ?", userID).First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		return nil, err
	}

	return &r.LastSent, nil
}

// Touch upserts the last-sent timestamp for the user
func (s *Resends) Touch(userID string, now time.Time) error {
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]any{"last_sent": now}),
	}).Create(&model.ResendRequest{
		UserID:   userID,
		LastSent: now,
	}).Error
}
