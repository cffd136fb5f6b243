package auth

import "context"

// UserStore persists user records. Lookups return ErrNotFound when nothing
// matches; CreateUser returns ErrAlreadyExists on a duplicate email or username.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	UserByID(ctx context.Context, id string) (User, error)
	UserByEmail(ctx context.Context, email string) (User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UserByVerificationHash(ctx context.Context, hash string) (User, error)
	UserByResetHash(ctx context.Context, hash string) (User, error)

	// SetRefreshToken replaces the stored refresh hash unconditionally; an
	// empty hash revokes the session.
	SetRefreshToken(ctx context.Context, userID, hash string) error
	// SwapRefreshToken replaces oldHash with newHash only if oldHash is still
	// the stored value, otherwise it returns ErrStaleToken.
	SwapRefreshToken(ctx context.Context, userID, oldHash, newHash string) error

	// SetEmailVerification stores a new verification secret, replacing any
	// prior one. A zero secret clears it.
	SetEmailVerification(ctx context.Context, userID string, secret OneTimeSecret) error
	// ConsumeEmailVerification marks the user verified and clears the secret
	// if hash is still the stored value, otherwise it returns ErrStaleToken.
	ConsumeEmailVerification(ctx context.Context, userID, hash string) error

	SetPasswordReset(ctx context.Context, userID string, secret OneTimeSecret) error
	// ConsumePasswordReset sets a new password hash, clears the reset secret
	// and revokes the refresh token if hash is still the stored value.
	ConsumePasswordReset(ctx context.Context, userID, hash, passwordHash string) error

	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}
