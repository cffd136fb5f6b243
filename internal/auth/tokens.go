package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 24 * time.Hour * 10
	defaultOneTimeTTL = 20 * time.Minute

	minSecretBytes  = 32
	oneTimeTokenLen = 20

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenService mints and verifies access and refresh JWTs and one-time tokens.
// Access and refresh tokens are signed with separate HS256 secrets.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	oneTimeTTL    time.Duration
	now           func() time.Time
}

// AccessClaims are the verified contents of an access token.
type AccessClaims struct {
	Subject   string
	Email     string
	Username  string
	ID        string
	ExpiresAt time.Time
}

// RefreshClaims are the verified contents of a refresh token.
type RefreshClaims struct {
	Subject   string
	ID        string
	ExpiresAt time.Time
}

type accessTokenClaims struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

type refreshTokenClaims struct {
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenOption configures TokenService behavior.
type TokenOption func(*TokenService) error

// WithIssuer sets the iss claim; verification then requires it.
func WithIssuer(issuer string) TokenOption {
	return func(s *TokenService) error {
		s.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
		return nil
	}
}

// WithOneTimeTTL configures the email verification / password reset window.
func WithOneTimeTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) error {
		if ttl > 0 {
			s.oneTimeTTL = ttl
		}
		return nil
	}
}

// WithClock overrides time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// NewTokenService constructs a TokenService. Both secrets must be at least 32
// bytes and must differ.
func NewTokenService(accessSecret, refreshSecret string, opts ...TokenOption) (*TokenService, error) {
	if len(accessSecret) < minSecretBytes || len(refreshSecret) < minSecretBytes {
		return nil, fmt.Errorf("auth: token secrets must be at least %d bytes", minSecretBytes)
	}
	if accessSecret == refreshSecret {
		return nil, errors.New("auth: access and refresh secrets must differ")
	}
	svc := &TokenService{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     defaultAccessTTL,
		refreshTTL:    defaultRefreshTTL,
		oneTimeTTL:    defaultOneTimeTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Now returns the service clock.
func (s *TokenService) Now() time.Time { return s.now() }

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// IssueAccessToken signs {sub, email, username} with the access secret. It is
// not persisted.
func (s *TokenService) IssueAccessToken(u User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := accessTokenClaims{
		Email:            u.Email,
		Username:         u.Username,
		TokenType:        tokenTypeAccess,
		RegisteredClaims: s.registered(u.ID, now, exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.accessSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign access token: %w", err)
	}
	return token, exp, nil
}

// IssueRefreshToken signs {sub} with the refresh secret. The caller persists
// its hash on the user record, replacing the previous one.
func (s *TokenService) IssueRefreshToken(u User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.refreshTTL)
	claims := refreshTokenClaims{
		TokenType:        tokenTypeRefresh,
		RegisteredClaims: s.registered(u.ID, now, exp),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign refresh token: %w", err)
	}
	return token, exp, nil
}

// IssuePair mints an access and a refresh token for u.
func (s *TokenService) IssuePair(u User) (TokenPair, error) {
	access, accessExp, err := s.IssueAccessToken(u)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.IssueRefreshToken(u)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (s *TokenService) registered(subject string, now, exp time.Time) jwt.RegisteredClaims {
	rc := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
		// jti keeps two tokens minted in the same second distinct.
		ID: uuid.NewString(),
	}
	if s.issuer != "" {
		rc.Issuer = s.issuer
	}
	return rc
}

// VerifyAccessToken checks signature, expiry, issuer and token type. Every
// failure wraps ErrUnauthorized plus one internal reason.
func (s *TokenService) VerifyAccessToken(raw string) (AccessClaims, error) {
	var claims accessTokenClaims
	if err := s.parse(raw, &claims, s.accessSecret); err != nil {
		return AccessClaims{}, err
	}
	if claims.TokenType != tokenTypeAccess || strings.TrimSpace(claims.Subject) == "" {
		return AccessClaims{}, unauthorized(ErrTokenMalformed)
	}
	return AccessClaims{
		Subject:   claims.Subject,
		Email:     claims.Email,
		Username:  claims.Username,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// VerifyRefreshToken checks a refresh token's signature, expiry and type. It
// does not consult the store.
func (s *TokenService) VerifyRefreshToken(raw string) (RefreshClaims, error) {
	var claims refreshTokenClaims
	if err := s.parse(raw, &claims, s.refreshSecret); err != nil {
		return RefreshClaims{}, err
	}
	if claims.TokenType != tokenTypeRefresh || strings.TrimSpace(claims.Subject) == "" {
		return RefreshClaims{}, unauthorized(ErrTokenMalformed)
	}
	return RefreshClaims{
		Subject:   claims.Subject,
		ID:        claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *TokenService) parse(raw string, claims jwt.Claims, secret []byte) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return unauthorized(ErrTokenMalformed)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return unauthorized(ErrTokenExpired)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return unauthorized(ErrTokenSignature)
	default:
		return unauthorized(ErrTokenMalformed)
	}
}

// GenerateOneTimeToken returns a random plain token for out-of-band delivery
// together with its hash and absolute expiry for storage.
func (s *TokenService) GenerateOneTimeToken() (OneTimeToken, error) {
	buf := make([]byte, oneTimeTokenLen)
	if _, err := rand.Read(buf); err != nil {
		return OneTimeToken{}, fmt.Errorf("auth: generate one-time token: %w", err)
	}
	plain := hex.EncodeToString(buf)
	return OneTimeToken{
		Plain: plain,
		Secret: OneTimeSecret{
			Hash:      HashToken(plain),
			ExpiresAt: s.now().Add(s.oneTimeTTL),
		},
	}, nil
}

// HashToken is the deterministic one-way hash used for every stored token.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// TokenMatches compares a stored hash against a presented plain token in
// constant time.
func TokenMatches(storedHash, plain string) bool {
	if storedHash == "" || plain == "" {
		return false
	}
	actual := HashToken(plain)
	if len(storedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(storedHash), []byte(actual)) == 1
}

func unauthorized(reason error) error {
	return fmt.Errorf("%w: %w", ErrUnauthorized, reason)
}
