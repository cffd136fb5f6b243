package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"regexp"
	"strings"

	"taskhub.dev/internal/ids"
	"taskhub.dev/internal/mail"
	"taskhub.dev/internal/obs"
)

const (
	verifyEmailPath   = "/v1/auth/verify-email/"
	resetPasswordPath = "/v1/auth/reset-password/"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9._-]{3,32}$`)

// Service implements the account flows on top of a UserStore and a TokenService.
type Service struct {
	users   UserStore
	tokens  *TokenService
	mailer  mail.Sender
	log     *slog.Logger
	baseURL string
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithMailer sets the outbound mail sender for verification and reset links.
func WithMailer(m mail.Sender) ServiceOption {
	return func(s *Service) error {
		s.mailer = m
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) error {
		if l != nil {
			s.log = l
		}
		return nil
	}
}

// WithBaseURL sets the public URL that verification and reset links point at.
func WithBaseURL(u string) ServiceOption {
	return func(s *Service) error {
		s.baseURL = strings.TrimRight(strings.TrimSpace(u), "/")
		return nil
	}
}

// NewService constructs Service with optional configuration.
func NewService(users UserStore, tokens *TokenService, opts ...ServiceOption) (*Service, error) {
	if users == nil || tokens == nil {
		return nil, errors.New("auth: user store and token service are required")
	}
	svc := &Service{
		users:   users,
		tokens:  tokens,
		log:     obs.Discard(),
		baseURL: "http://localhost:8080",
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Tokens exposes the token service.
func (s *Service) Tokens() *TokenService { return s.tokens }

// Register creates an unverified account and mails its verification link.
// A mail failure is logged; the account can ask for a new link.
func (s *Service) Register(ctx context.Context, in Registration) (User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return User{}, err
	}
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return User{}, err
	}
	if err := validatePassword(in.Password); err != nil {
		return User{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = username
	}
	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	tok, err := s.tokens.GenerateOneTimeToken()
	if err != nil {
		return User{}, err
	}
	now := s.tokens.Now().UTC()
	u := &User{
		ID:                ids.New(),
		Name:              name,
		Username:          username,
		Email:             email,
		PasswordHash:      hash,
		EmailVerification: tok.Secret,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return User{}, err
	}
	s.log.InfoContext(ctx, "user registered", slog.String("user_id", u.ID))

	msg := mail.VerificationMessage(u.Email, u.Username, s.link(verifyEmailPath, tok.Plain))
	if err := s.send(ctx, msg); err != nil {
		s.log.WarnContext(ctx, "verification mail not sent", slog.String("user_id", u.ID), slog.Any("error", err))
	}
	return *u, nil
}

// Login authenticates by email or username and starts a new session,
// replacing any refresh token issued before.
func (s *Service) Login(ctx context.Context, credential, password string) (Session, error) {
	credential = strings.ToLower(strings.TrimSpace(credential))
	if credential == "" || password == "" {
		return Session{}, fmt.Errorf("%w: credential and password are required", ErrInvalidInput)
	}
	var (
		user User
		err  error
	)
	if strings.Contains(credential, "@") {
		user, err = s.users.UserByEmail(ctx, credential)
	} else {
		user, err = s.users.UserByUsername(ctx, credential)
	}
	if errors.Is(err, ErrNotFound) {
		return Session{}, s.reject(ctx, "login", unauthorized(ErrBadCredentials))
	}
	if err != nil {
		return Session{}, err
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return Session{}, s.reject(ctx, "login", unauthorized(ErrBadCredentials))
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return Session{}, err
	}
	refreshHash := HashToken(pair.RefreshToken)
	if err := s.users.SetRefreshToken(ctx, user.ID, refreshHash); err != nil {
		return Session{}, err
	}
	user.RefreshTokenHash = refreshHash
	s.log.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID))
	return Session{User: user, Tokens: pair}, nil
}

// Refresh rotates a refresh token. The stored hash is swapped only if it
// still equals the presented token's hash, so of two concurrent calls with
// the same token exactly one succeeds.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return Session{}, s.reject(ctx, "refresh", err)
	}
	user, err := s.users.UserByID(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return Session{}, s.reject(ctx, "refresh", unauthorized(ErrUnknownSubject))
	}
	if err != nil {
		return Session{}, err
	}
	if !TokenMatches(user.RefreshTokenHash, strings.TrimSpace(refreshToken)) {
		return Session{}, s.reject(ctx, "refresh", unauthorized(ErrTokenRevoked))
	}

	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return Session{}, err
	}
	newHash := HashToken(pair.RefreshToken)
	err = s.users.SwapRefreshToken(ctx, user.ID, user.RefreshTokenHash, newHash)
	if errors.Is(err, ErrStaleToken) || errors.Is(err, ErrNotFound) {
		return Session{}, s.reject(ctx, "refresh", unauthorized(ErrTokenRevoked))
	}
	if err != nil {
		return Session{}, err
	}
	user.RefreshTokenHash = newHash
	return Session{User: user, Tokens: pair}, nil
}

// Logout revokes the user's refresh token.
func (s *Service) Logout(ctx context.Context, userID string) error {
	if err := s.users.SetRefreshToken(ctx, userID, ""); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user logged out", slog.String("user_id", userID))
	return nil
}

// Authenticate verifies an access token and resolves it to a live user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (Identity, error) {
	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		return Identity{}, s.reject(ctx, "access", err)
	}
	user, err := s.users.UserByID(ctx, claims.Subject)
	if errors.Is(err, ErrNotFound) {
		return Identity{}, s.reject(ctx, "access", unauthorized(ErrUnknownSubject))
	}
	if err != nil {
		return Identity{}, err
	}
	return Identity{
		UserID:        user.ID,
		Email:         user.Email,
		Username:      user.Username,
		EmailVerified: user.EmailVerified,
	}, nil
}

// VerifyEmail redeems an email verification token.
func (s *Service) VerifyEmail(ctx context.Context, plain string) (User, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return User{}, s.reject(ctx, "verify_email", unauthorized(ErrTokenMalformed))
	}
	hash := HashToken(plain)
	user, err := s.users.UserByVerificationHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return User{}, s.reject(ctx, "verify_email", unauthorized(ErrTokenRevoked))
	}
	if err != nil {
		return User{}, err
	}
	if user.EmailVerification.Expired(s.tokens.Now()) {
		if err := s.users.SetEmailVerification(ctx, user.ID, OneTimeSecret{}); err != nil {
			s.log.WarnContext(ctx, "clear expired verification token", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		return User{}, s.reject(ctx, "verify_email", unauthorized(ErrTokenExpired))
	}
	if !TokenMatches(user.EmailVerification.Hash, plain) {
		return User{}, s.reject(ctx, "verify_email", unauthorized(ErrTokenRevoked))
	}
	err = s.users.ConsumeEmailVerification(ctx, user.ID, hash)
	if errors.Is(err, ErrStaleToken) {
		return User{}, s.reject(ctx, "verify_email", unauthorized(ErrTokenRevoked))
	}
	if err != nil {
		return User{}, err
	}
	user.EmailVerified = true
	user.EmailVerification = OneTimeSecret{}
	s.log.InfoContext(ctx, "email verified", slog.String("user_id", user.ID))
	return user, nil
}

// ResendVerification issues a new verification token, invalidating the
// previous one, and mails it.
func (s *Service) ResendVerification(ctx context.Context, userID string) error {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.EmailVerified {
		return ErrAlreadyVerified
	}
	tok, err := s.tokens.GenerateOneTimeToken()
	if err != nil {
		return err
	}
	if err := s.users.SetEmailVerification(ctx, user.ID, tok.Secret); err != nil {
		return err
	}
	if err := s.send(ctx, mail.VerificationMessage(user.Email, user.Username, s.link(verifyEmailPath, tok.Plain))); err != nil {
		return fmt.Errorf("auth: send verification mail: %w", err)
	}
	return nil
}

// ChangePassword replaces the password after checking the current one and
// revokes the refresh token, as ResetPassword does.
func (s *Service) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return err
	}
	if err := VerifyPassword(user.PasswordHash, current); err != nil {
		return fmt.Errorf("%w: current password is incorrect", ErrInvalidInput)
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	if next == current {
		return fmt.Errorf("%w: new password must differ from the current one", ErrInvalidInput)
	}
	hash, err := HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	// the current refresh token dies with the old password
	if err := s.users.SetRefreshToken(ctx, user.ID, ""); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "password changed", slog.String("user_id", user.ID))
	return nil
}

// ForgotPassword mails a reset link. Unknown addresses succeed silently so
// the endpoint cannot be used to probe for accounts.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	user, err := s.users.UserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		s.log.DebugContext(ctx, "password reset for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	tok, err := s.tokens.GenerateOneTimeToken()
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordReset(ctx, user.ID, tok.Secret); err != nil {
		return err
	}
	if err := s.send(ctx, mail.PasswordResetMessage(user.Email, user.Username, s.link(resetPasswordPath, tok.Plain))); err != nil {
		return fmt.Errorf("auth: send reset mail: %w", err)
	}
	return nil
}

// ResetPassword redeems a reset token, sets the new password and ends the
// current session.
func (s *Service) ResetPassword(ctx context.Context, plain, next string) error {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return s.reject(ctx, "reset_password", unauthorized(ErrTokenMalformed))
	}
	if err := validatePassword(next); err != nil {
		return err
	}
	hash := HashToken(plain)
	user, err := s.users.UserByResetHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		return s.reject(ctx, "reset_password", unauthorized(ErrTokenRevoked))
	}
	if err != nil {
		return err
	}
	if user.PasswordReset.Expired(s.tokens.Now()) {
		if err := s.users.SetPasswordReset(ctx, user.ID, OneTimeSecret{}); err != nil {
			s.log.WarnContext(ctx, "clear expired reset token", slog.String("user_id", user.ID), slog.Any("error", err))
		}
		return s.reject(ctx, "reset_password", unauthorized(ErrTokenExpired))
	}
	if !TokenMatches(user.PasswordReset.Hash, plain) {
		return s.reject(ctx, "reset_password", unauthorized(ErrTokenRevoked))
	}
	passwordHash, err := HashPassword(next)
	if err != nil {
		return err
	}
	err = s.users.ConsumePasswordReset(ctx, user.ID, hash, passwordHash)
	if errors.Is(err, ErrStaleToken) {
		return s.reject(ctx, "reset_password", unauthorized(ErrTokenRevoked))
	}
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "password reset", slog.String("user_id", user.ID))
	return nil
}

// CurrentUser loads the user record.
func (s *Service) CurrentUser(ctx context.Context, userID string) (User, error) {
	return s.users.UserByID(ctx, userID)
}

// UserIDByEmail resolves an email address to a user id.
func (s *Service) UserIDByEmail(ctx context.Context, email string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", err
	}
	user, err := s.users.UserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (s *Service) reject(ctx context.Context, kind string, err error) error {
	reason := FailureReason(err)
	obs.ObserveTokenFailure(kind, reason)
	s.log.InfoContext(ctx, "credential rejected", slog.String("kind", kind), slog.String("reason", reason))
	return err
}

func (s *Service) send(ctx context.Context, msg mail.Message) error {
	if s.mailer == nil {
		s.log.WarnContext(ctx, "no mailer configured", slog.String("to", msg.To), slog.String("subject", msg.Subject))
		return nil
	}
	return s.mailer.Send(ctx, msg)
}

func (s *Service) link(path, token string) string {
	return s.baseURL + path + token
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := netmail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	return email, nil
}

func normalizeUsername(raw string) (string, error) {
	username := strings.ToLower(strings.TrimSpace(raw))
	if !usernamePattern.MatchString(username) {
		return "", fmt.Errorf("%w: username must be 3-32 characters of a-z, 0-9, '.', '_' or '-'", ErrInvalidInput)
	}
	return username, nil
}
