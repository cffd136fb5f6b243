package auth

import "time"

// User is a persisted account. Token fields only ever hold hashes.
type User struct {
	ID                string
	Name              string
	Username          string
	Email             string
	Avatar            string
	PasswordHash      string
	EmailVerified     bool
	RefreshTokenHash  string
	EmailVerification OneTimeSecret
	PasswordReset     OneTimeSecret
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OneTimeSecret is the stored half of a one-time token.
type OneTimeSecret struct {
	Hash      string
	ExpiresAt time.Time
}

// Empty reports whether no token is outstanding.
func (s OneTimeSecret) Empty() bool { return s.Hash == "" }

// Expired reports whether the token window has closed at now.
func (s OneTimeSecret) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// Profile is the client-facing view of a user.
type Profile struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Avatar        string    `json:"avatar,omitempty"`
	EmailVerified bool      `json:"is_email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

func (u User) Profile() Profile {
	return Profile{
		ID:            u.ID,
		Name:          u.Name,
		Username:      u.Username,
		Email:         u.Email,
		Avatar:        u.Avatar,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}

// Identity is what an authenticated request carries.
type Identity struct {
	UserID        string
	Email         string
	Username      string
	EmailVerified bool
}

// TokenPair represents access and refresh tokens along with their expirations.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Session is the result of a login or refresh.
type Session struct {
	User   User
	Tokens TokenPair
}

// OneTimeToken is a freshly minted out-of-band token. Plain goes to the user,
// only Secret is stored.
type OneTimeToken struct {
	Plain  string
	Secret OneTimeSecret
}

// Registration is the input to Service.Register.
type Registration struct {
	Name     string
	Email    string
	Username string
	Password string
}
