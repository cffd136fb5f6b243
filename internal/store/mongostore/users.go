package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"taskhub.dev/internal/auth"
)

func (s *Store) CreateUser(ctx context.Context, u *auth.User) error {
	return s.insertOne(ctx, colUsers, toUserDoc(u), auth.ErrAlreadyExists)
}

func (s *Store) userBy(ctx context.Context, filter bson.M) (auth.User, error) {
	var doc userDoc
	if err := s.findOne(ctx, colUsers, filter, &doc, auth.ErrNotFound); err != nil {
		return auth.User{}, err
	}
	return doc.user(), nil
}

func (s *Store) UserByID(ctx context.Context, id string) (auth.User, error) {
	return s.userBy(ctx, bson.M{"_id": id})
}

func (s *Store) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	return s.userBy(ctx, bson.M{"email": email})
}

func (s *Store) UserByUsername(ctx context.Context, username string) (auth.User, error) {
	return s.userBy(ctx, bson.M{"username": username})
}

func (s *Store) UserByVerificationHash(ctx context.Context, hash string) (auth.User, error) {
	if hash == "" {
		return auth.User{}, auth.ErrNotFound
	}
	return s.userBy(ctx, bson.M{"email_verification_hash": hash})
}

func (s *Store) UserByResetHash(ctx context.Context, hash string) (auth.User, error) {
	if hash == "" {
		return auth.User{}, auth.ErrNotFound
	}
	return s.userBy(ctx, bson.M{"password_reset_hash": hash})
}

func (s *Store) setUser(ctx context.Context, filter bson.M, set bson.M, noMatch error) error {
	set["updated_at"] = time.Now().UTC()
	return s.updateOne(ctx, colUsers, filter, bson.M{"$set": set}, noMatch)
}

func (s *Store) SetRefreshToken(ctx context.Context, userID, hash string) error {
	return s.setUser(ctx, bson.M{"_id": userID}, bson.M{"refresh_token_hash": hash}, auth.ErrNotFound)
}

// SwapRefreshToken matches on the old hash so a concurrent rotation that got
// there first leaves nothing to update.
func (s *Store) SwapRefreshToken(ctx context.Context, userID, oldHash, newHash string) error {
	return s.setUser(ctx,
		bson.M{"_id": userID, "refresh_token_hash": oldHash},
		bson.M{"refresh_token_hash": newHash},
		auth.ErrStaleToken)
}

func (s *Store) SetEmailVerification(ctx context.Context, userID string, secret auth.OneTimeSecret) error {
	return s.setUser(ctx, bson.M{"_id": userID}, bson.M{
		"email_verification_hash":       secret.Hash,
		"email_verification_expires_at": timePtr(secret.ExpiresAt),
	}, auth.ErrNotFound)
}

func (s *Store) ConsumeEmailVerification(ctx context.Context, userID, hash string) error {
	if hash == "" {
		return auth.ErrStaleToken
	}
	return s.setUser(ctx, bson.M{"_id": userID, "email_verification_hash": hash}, bson.M{
		"email_verified":                true,
		"email_verification_hash":       "",
		"email_verification_expires_at": nil,
	}, auth.ErrStaleToken)
}

func (s *Store) SetPasswordReset(ctx context.Context, userID string, secret auth.OneTimeSecret) error {
	return s.setUser(ctx, bson.M{"_id": userID}, bson.M{
		"password_reset_hash":       secret.Hash,
		"password_reset_expires_at": timePtr(secret.ExpiresAt),
	}, auth.ErrNotFound)
}

func (s *Store) ConsumePasswordReset(ctx context.Context, userID, hash, passwordHash string) error {
	if hash == "" {
		return auth.ErrStaleToken
	}
	return s.setUser(ctx, bson.M{"_id": userID, "password_reset_hash": hash}, bson.M{
		"password_hash":             passwordHash,
		"password_reset_hash":       "",
		"password_reset_expires_at": nil,
		"refresh_token_hash":        "",
	}, auth.ErrStaleToken)
}

func (s *Store) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.setUser(ctx, bson.M{"_id": userID}, bson.M{"password_hash": passwordHash}, auth.ErrNotFound)
}
