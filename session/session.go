package session

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// User is the cached profile snapshot carried inside a session. It is refreshed
// opportunistically from /me and never used for authorization decisions.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
}

// Session is the authenticated state of the client. A Session is an immutable
// value: every mutation replaces it wholesale, so any reader holding a previous
// copy is unaffected.
type Session struct {
	// TokenType is the credential scheme, e.g. "Bearer".
	TokenType string `json:"tokenType"`

	// AccessToken is the short-lived credential attached to each API call.
	AccessToken string `json:"accessToken"`

	// RefreshToken is the long-lived credential exchanged for a new access
	// token. The backend rotates it: each value is usable exactly once.
	RefreshToken string `json:"refreshToken"`

	// ExpiresAt is the epoch-millisecond instant after which AccessToken must
	// not be used.
	ExpiresAt int64 `json:"expiresAt"`

	User User `json:"user"`
}

// Valid reports whether the session carries both credentials. A session with
// only one of the two tokens is treated as no session at all.
func (s Session) Valid() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// Expired reports whether the access token has passed its expiry at the given
// instant. A zero ExpiresAt counts as expired.
func (s Session) Expired(now time.Time) bool {
	return s.ExpiresAt <= now.UnixMilli()
}

// ExpiryTime returns ExpiresAt as a time.Time.
func (s Session) ExpiryTime() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}

// recoverExpiry fills in a missing ExpiresAt from the access token's exp claim.
// Records written by older builds stored no expiry; the JWT still carries it.
// The token is not verified here - the backend is the authority, this value only
// drives the proactive refresh schedule.
func (s *Session) recoverExpiry() {
	if s.ExpiresAt != 0 || s.AccessToken == "" {
		return
	}
	var claims jwtlib.RegisteredClaims
	parser := jwtlib.NewParser()
	if _, _, err := parser.ParseUnverified(s.AccessToken, &claims); err != nil {
		return
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time.UnixMilli()
	}
}
