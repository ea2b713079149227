package service

import "errors"

// Domain errors returned by the Auth service. The handler layer is the only
// place that maps these to HTTP statuses and user-facing messages
var (
	ErrWeakPassword      = errors.New("password does not meet strength requirements")
	ErrEmailTaken        = errors.New("email already registered")
	ErrIncorrectPassword = errors.New("incorrect email or password")
	ErrSamePassword      = errors.New("new password must be different from the current password")
	ErrInvalidToken      = errors.New("token invalid, expired or already used")
	ErrUserNotFound      = errors.New("user not found")
	ErrResendCooldown    = errors.New("verification email requested too recently")
)
