package service

import (
	"errors"
	"fmt"
	"time"

	"nimbus/account-api/internal/model"
	"nimbus/account-api/internal/store"
	"nimbus/account-api/pkg/security"
	"nimbus/account-api/pkg/validators"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const userIDCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	verifyTokenTTL = 24 * time.Hour
	resetTokenTTL  = time.Hour
	tokenCleanupIn = 60 * 24 * time.Hour

	// Unverified accounts get this long before the cleanup job removes them
	unverifiedAccountTTL = 7 * 24 * time.Hour

	// Minimum interval between verification emails for one user
	ResendCooldown = 2 * time.Minute
)

// Mailer is the outbound notification gateway. Delivery failures are the
// caller's to log, none of the credential operations depend on them
type Mailer interface {
	SendVerification(to, token string) error
	SendPasswordReset(to, token string) error
}

// Auth owns every User state transition and every purpose-token mint and
// consume. Handlers call into here and translate the returned domain errors,
// they never touch the stores directly
type Auth struct {
	users   *store.Users
	tokens  *store.Tokens
	resends *store.Resends
	argon   *security.ArgonHash
	mailer  Mailer

	// Injected so tests can move the clock
	now func() time.Time
}

func NewAuth(users *store.Users, tokens *store.Tokens, resends *store.Resends, argon *security.ArgonHash, mailer Mailer) *Auth {
	return &Auth{
		users:   users,
		tokens:  tokens,
		resends: resends,
		argon:   argon,
		mailer:  mailer,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateUserWithVerification registers a new unverified user, mints a
// 24-hour verification token and dispatches the verification email. A mail
// delivery failure is logged but does not roll the registration back, the
// user can request a resend
func (a *Auth) CreateUserWithVerification(email, password string) (*model.User, error) {
	if err := validators.EmailValidator(email); err != nil {
		return nil, err
	}
	email = validators.NormalizeEmail(email)

	if err := validators.PasswordValidator(password); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	hash, err := a.argon.GenerateFromPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password, %w", err)
	}

	userID, err := gonanoid.Generate(userIDCharset, 16)
	if err != nil {
		return nil, fmt.Errorf("failed to generate user ID, %w", err)
	}

	now := a.now()
	expireAt := now.Add(verifyTokenTTL)
	cleanAt := now.Add(tokenCleanupIn)

	verifToken, err := security.MintToken(&security.TokenOpts{
		UserID:    userID,
		Purpose:   model.TokenPurposeVerify,
		ExpiresAt: &expireAt,
		CleanupAt: &cleanAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mint verification token, %w", err)
	}

	accountExpiry := now.Add(unverifiedAccountTTL)

	user := &model.User{
		ID:           userID,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		ExpiresAt:    &accountExpiry,
		Tokens:       []model.Token{*verifToken},
	}

	if err := a.users.Create(user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}

		return nil, err
	}

	if err := a.resends.Touch(userID, now); err != nil {
		zap.L().Error("Failed to record verification send time", zap.Error(err))
	}

	if err := a.mailer.SendVerification(email, verifToken.Value); err != nil {
		zap.L().Error("Failed to send verification email",
			zap.Error(err), zap.String("userID", userID))
	}

	return user, nil
}

// AuthenticateUser checks credentials and returns the user on success.
// Unknown email and wrong password are indistinguishable to the caller.
// Verification status is deliberately not checked here, an unverified user
// can log in
func (a *Auth) AuthenticateUser(email, password string) (*model.User, error) {
	user, err := a.users.GetByEmail(validators.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrIncorrectPassword
		}

		return nil, err
	}

	ok, err := a.argon.VerifyPasswd(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password, %w", err)
	}

	if !ok {
		return nil, ErrIncorrectPassword
	}

	return user, nil
}

// UpdatePassword replaces the stored hash after checking the current
// password, rejecting a reused password and applying the strength policy
func (a *Auth) UpdatePassword(userID, currentPassword, newPassword string) error {
	user, err := a.users.GetByID(userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	ok, err := a.argon.VerifyPasswd(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password, %w", err)
	}

	if !ok {
		return ErrIncorrectPassword
	}

	if newPassword == currentPassword {
		return ErrSamePassword
	}

	if err := validators.PasswordValidator(newPassword); err != nil {
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	hash, err := a.argon.GenerateFromPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password, %w", err)
	}

	return a.users.UpdatePassword(userID, hash)
}

// VerifyEmail consumes a verification token and flips the user's verified
// flag. Consumption is atomic, a second call with the same token fails
func (a *Auth) VerifyEmail(token string) error {
	t, err := a.tokens.Consume(token, model.TokenPurposeVerify, a.now())
	if err != nil {
		if errors.Is(err, store.ErrTokenInvalid) {
			return ErrInvalidToken
		}

		return err
	}

	return a.users.MarkVerified(t.UserID)
}

// LastVerificationSent returns when the last verification email went out
// for the address, or nil if none was recorded
func (a *Auth) LastVerificationSent(email string) (*time.Time, error) {
	user, err := a.users.GetByEmail(validators.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}

		return nil, err
	}

	return a.resends.LastSent(user.ID)
}

// ResendVerification mints a fresh verification token and dispatches it,
// subject to the per-user cooldown. Timestamps are normalized to UTC before
// comparison so naive and aware stored values agree
func (a *Auth) ResendVerification(email string) error {
	user, err := a.users.GetByEmail(validators.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	now := a.now()

	// Cooldown bookkeeping is best effort, a broken resend log never blocks
	// the resend itself
	lastSent, err := a.resends.LastSent(user.ID)
	if err != nil {
		zap.L().Error("Failed to read last verification send time",
			zap.Error(err), zap.String("userID", user.ID))
	}

	if lastSent != nil && now.Sub(lastSent.UTC()) < ResendCooldown {
		return ErrResendCooldown
	}

	expireAt := now.Add(verifyTokenTTL)
	cleanAt := now.Add(tokenCleanupIn)

	verifToken, err := security.MintToken(&security.TokenOpts{
		UserID:    user.ID,
		Purpose:   model.TokenPurposeVerify,
		ExpiresAt: &expireAt,
		CleanupAt: &cleanAt,
	})
	if err != nil {
		return fmt.Errorf("failed to mint verification token, %w", err)
	}

	if err := a.tokens.Create(verifToken); err != nil {
		return err
	}

	if err := a.mailer.SendVerification(user.Email, verifToken.Value); err != nil {
		zap.L().Error("Failed to send verification email",
			zap.Error(err), zap.String("userID", user.ID))
	}

	if err := a.resends.Touch(user.ID, now); err != nil {
		zap.L().Error("Failed to record verification send time",
			zap.Error(err), zap.String("userID", user.ID))
	}

	return nil
}

// SendPasswordReset mints a one-hour reset token and dispatches it. Returns
// ErrUserNotFound for unknown addresses, the forgot-password handler turns
// that into a generic success so account existence stays hidden
func (a *Auth) SendPasswordReset(email string) error {
	user, err := a.users.GetByEmail(validators.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}

		return err
	}

	now := a.now()
	expireAt := now.Add(resetTokenTTL)
	cleanAt := now.Add(tokenCleanupIn)

	resetToken, err := security.MintToken(&security.TokenOpts{
		UserID:    user.ID,
		Purpose:   model.TokenPurposeReset,
		ExpiresAt: &expireAt,
		CleanupAt: &cleanAt,
	})
	if err != nil {
		return fmt.Errorf("failed to mint reset token, %w", err)
	}

	if err := a.tokens.Create(resetToken); err != nil {
		return err
	}

	if err := a.mailer.SendPasswordReset(user.Email, resetToken.Value); err != nil {
		zap.L().Error("Failed to send password reset email",
			zap.Error(err), zap.String("userID", user.ID))
	}

	return nil
}

// ResetPassword replaces the stored hash using a reset token. The strength
// check runs first so a weak password doesn't burn the token
func (a *Auth) ResetPassword(token, newPassword string) error {
	if err := validators.PasswordValidator(newPassword); err != nil {
		return fmt.Errorf("%w: %w", ErrWeakPassword, err)
	}

	t, err := a.tokens.Consume(token, model.TokenPurposeReset, a.now())
	if err != nil {
		if errors.Is(err, store.ErrTokenInvalid) {
			return ErrInvalidToken
		}

		return err
	}

	hash, err := a.argon.GenerateFromPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password, %w", err)
	}

	return a.users.UpdatePassword(t.UserID, hash)
}
