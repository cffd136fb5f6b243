package auth

import "errors"

var (
	ErrNotFound        = errors.New("auth: not found")
	ErrAlreadyExists   = errors.New("auth: already exists")
	ErrInvalidInput    = errors.New("auth: invalid input")
	ErrUnauthorized    = errors.New("auth: unauthorized")
	ErrAlreadyVerified = errors.New("auth: email already verified")
	// ErrStaleToken is returned by stores when a compare-and-swap on a token
	// hash finds a different value than expected.
	ErrStaleToken = errors.New("auth: stale token")
)

// Reasons for rejecting a credential. They are wrapped together with
// ErrUnauthorized, logged and counted, and never written to a response.
var (
	ErrTokenExpired   = errors.New("expired")
	ErrTokenMalformed = errors.New("malformed")
	ErrTokenSignature = errors.New("signature")
	ErrTokenRevoked   = errors.New("revoked")
	ErrUnknownSubject = errors.New("unknown_subject")
	ErrBadCredentials = errors.New("bad_credentials")
)

var failureReasons = []error{
	ErrTokenExpired,
	ErrTokenMalformed,
	ErrTokenSignature,
	ErrTokenRevoked,
	ErrUnknownSubject,
	ErrBadCredentials,
}

// FailureReason returns the internal reason label carried by err, or "other".
func FailureReason(err error) string {
	for _, reason := range failureReasons {
		if errors.Is(err, reason) {
			return reason.Error()
		}
	}
	return "other"
}
