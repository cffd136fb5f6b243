package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"taskhub.dev/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "

	accessCookie  = "access-token"
	refreshCookie = "refresh-token"
)

// authenticated resolves the caller from the access token. Any verification
// failure clears the session cookies before the 401.
func (a *API) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r)
		if token == "" {
			a.rejectSession(w, r)
			return
		}
		id, err := a.auth.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, auth.ErrUnauthorized) {
				a.rejectSession(w, r)
				return
			}
			a.handleError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.ContextWithIdentity(r.Context(), id)))
	})
}

// verified is authenticated plus the verified-email requirement.
func (a *API) verified(next http.HandlerFunc) http.Handler {
	return a.authenticated(func(w http.ResponseWriter, r *http.Request) {
		id, _ := auth.IdentityFromContext(r.Context())
		if a.requireVerified && !id.EmailVerified {
			writeError(w, r, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	})
}

func (a *API) rejectSession(w http.ResponseWriter, r *http.Request) {
	a.clearSessionCookies(w)
	writeError(w, r, http.StatusUnauthorized, "unauthorized")
}

// callerID is only called behind authenticated.
func callerID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// accessToken picks the first non-empty of the access cookie and the bearer
// header, in that order. A blank cookie does not shadow the header.
func accessToken(r *http.Request) string {
	return firstNonEmpty(cookieValue(r, accessCookie), bearerToken(r))
}

// refreshToken picks the first non-empty of the refresh cookie, the body
// field and the bearer header.
func refreshToken(r *http.Request, fromBody string) string {
	return firstNonEmpty(cookieValue(r, refreshCookie), fromBody, bearerToken(r))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(c.Value)
}

func bearerToken(r *http.Request) string {
	token, err := extractBearerToken(r.Header.Get(authHeader))
	if err != nil {
		return ""
	}
	return token
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if len(header) < len(bearer) || !strings.EqualFold(header[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func (a *API) setSessionCookies(w http.ResponseWriter, pair auth.TokenPair) {
	http.SetCookie(w, a.sessionCookie(accessCookie, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, a.sessionCookie(refreshCookie, pair.RefreshToken, pair.RefreshExpiresAt))
}

func (a *API) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{accessCookie, refreshCookie} {
		c := a.sessionCookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (a *API) sessionCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   a.cookieDomain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   a.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
