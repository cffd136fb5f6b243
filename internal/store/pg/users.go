package pg

import (
	"context"
	"database/sql"
	"errors"

	"taskhub.dev/internal/auth"
)

const userColumns = `id, name, username, email, avatar, password_hash, email_verified, refresh_token_hash,
	email_verification_hash, email_verification_expires_at, password_reset_hash, password_reset_expires_at,
	created_at, updated_at`

func scanUser(row rowScanner) (auth.User, error) {
	var (
		u             auth.User
		verifyHash    sql.NullString
		verifyExpires sql.NullTime
		resetHash     sql.NullString
		resetExpires  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.Avatar, &u.PasswordHash, &u.EmailVerified,
		&u.RefreshTokenHash, &verifyHash, &verifyExpires, &resetHash, &resetExpires, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.User{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	u.EmailVerification = auth.OneTimeSecret{Hash: verifyHash.String, ExpiresAt: verifyExpires.Time}
	u.PasswordReset = auth.OneTimeSecret{Hash: resetHash.String, ExpiresAt: resetExpires.Time}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	if s.db == nil {
		return errNoDB
	}
	_, err := s.db.ExecContext(ctx, `
		insert into users (id, name, username, email, avatar, password_hash, email_verified,
			email_verification_hash, email_verification_expires_at, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, u.ID, u.Name, u.Username, u.Email, u.Avatar, u.PasswordHash, u.EmailVerified,
		nullIfEmpty(u.EmailVerification.Hash), nullTime(u.EmailVerification.ExpiresAt), u.CreatedAt, u.UpdatedAt)
	if isUniqueViolation(err) {
		return auth.ErrAlreadyExists
	}
	return err
}

func (s *Store) userBy(ctx context.Context, column, value string) (auth.User, error) {
	if s.db == nil {
		return auth.User{}, errNoDB
	}
	row := s.db.QueryRowContext(ctx, `select `+userColumns+` from users where `+column+` = $1`, value)
	return scanUser(row)
}

func (s *Store) UserByID(ctx context.Context, id string) (auth.User, error) {
	return s.userBy(ctx, "id", id)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	return s.userBy(ctx, "email", email)
}

func (s *Store) UserByUsername(ctx context.Context, username string) (auth.User, error) {
	return s.userBy(ctx, "username", username)
}

func (s *Store) UserByVerificationHash(ctx context.Context, hash string) (auth.User, error) {
	if hash == "" {
		return auth.User{}, auth.ErrNotFound
	}
	return s.userBy(ctx, "email_verification_hash", hash)
}

func (s *Store) UserByResetHash(ctx context.Context, hash string) (auth.User, error) {
	if hash == "" {
		return auth.User{}, auth.ErrNotFound
	}
	return s.userBy(ctx, "password_reset_hash", hash)
}

func (s *Store) SetRefreshToken(ctx context.Context, userID, hash string) error {
	return s.execOne(ctx, auth.ErrNotFound, `
		update users set refresh_token_hash = $2, updated_at = now() where id = $1
	`, userID, hash)
}

// SwapRefreshToken is the rotation compare-and-swap: the update matches only
// while the stored hash is still oldHash.
func (s *Store) SwapRefreshToken(ctx context.Context, userID, oldHash, newHash string) error {
	return s.execOne(ctx, auth.ErrStaleToken, `
		update users set refresh_token_hash = $3, updated_at = now()
		where id = $1 and refresh_token_hash = $2
	`, userID, oldHash, newHash)
}

func (s *Store) SetEmailVerification(ctx context.Context, userID string, secret auth.OneTimeSecret) error {
	return s.execOne(ctx, auth.ErrNotFound, `
		update users set email_verification_hash = $2, email_verification_expires_at = $3, updated_at = now()
		where id = $1
	`, userID, nullIfEmpty(secret.Hash), nullTime(secret.ExpiresAt))
}

func (s *Store) ConsumeEmailVerification(ctx context.Context, userID, hash string) error {
	return s.execOne(ctx, auth.ErrStaleToken, `
		update users set email_verified = true, email_verification_hash = null,
			email_verification_expires_at = null, updated_at = now()
		where id = $1 and email_verification_hash = $2
	`, userID, hash)
}

func (s *Store) SetPasswordReset(ctx context.Context, userID string, secret auth.OneTimeSecret) error {
	return s.execOne(ctx, auth.ErrNotFound, `
		update users set password_reset_hash = $2, password_reset_expires_at = $3, updated_at = now()
		where id = $1
	`, userID, nullIfEmpty(secret.Hash), nullTime(secret.ExpiresAt))
}

func (s *Store) ConsumePasswordReset(ctx context.Context, userID, hash, passwordHash string) error {
	return s.execOne(ctx, auth.ErrStaleToken, `
		update users set password_hash = $3, password_reset_hash = null, password_reset_expires_at = null,
			refresh_token_hash = '', updated_at = now()
		where id = $1 and password_reset_hash = $2
	`, userID, hash, passwordHash)
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.execOne(ctx, auth.ErrNotFound, `
		update users set password_hash = $2, updated_at = now() where id = $1
	`, userID, passwordHash)
}
