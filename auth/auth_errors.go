package auth

import "errors"

var (
	// NoRefreshTokenErr means a refresh was requested while no session, or a
	// session without a refresh token, was live.
	NoRefreshTokenErr = errors.New("no refresh token available")

	// InvalidCredentialsErr is returned by Login when the backend rejects the
	// email/password pair.
	InvalidCredentialsErr = errors.New("invalid credentials")
)
