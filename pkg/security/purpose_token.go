package security

import (
	"errors"
	"time"

	"nimbus/account-api/internal/model"
	"nimbus/account-api/pkg/util"
)

const tokenSize = 32

type TokenOpts struct {
	UserID    string
	Purpose   string
	ExpiresAt *time.Time
	CleanupAt *time.Time
}

// MintToken creates an opaque single-use token row bound to a user and a
// purpose. The value is 32 bytes from crypto/rand, hex-encoded, so it can't
// be guessed or derived from anything the user knows
func MintToken(o *TokenOpts) (*model.Token, error) {
	if o == nil {
		return nil, errors.New("no token options provided")
	}

	if o.UserID == "" {
		return nil, errors.New("no user ID provided")
	}

	if o.Purpose == "" {
		return nil, errors.New("no token purpose provided")
	}

	if o.ExpiresAt == nil {
		return nil, errors.New("no expiry provided")
	}

	value, err := util.GenerateToken(tokenSize)
	if err != nil {
		return nil, err
	}

	return &model.Token{
		UserID:    o.UserID,
		Value:     value,
		Purpose:   o.Purpose,
		ExpiresAt: *o.ExpiresAt,
		CreatedAt: time.Now().UTC(),
		CleanupAt: o.CleanupAt,
		Used:      false,
	}, nil
}
