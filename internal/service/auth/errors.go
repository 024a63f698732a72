package auth

import "errors"

// Common authentication service errors
var (
	// ErrInvalidToken indicates the token format is invalid, the signature
	// doesn't match, or the issuer or audience is wrong
	ErrInvalidToken = errors.New("invalid authentication token")

	// ErrExpiredToken indicates the token has expired
	ErrExpiredToken = errors.New("authentication token has expired")

	// ErrTokenNotYetValid indicates the token is not yet valid (nbf claim in the future)
	ErrTokenNotYetValid = errors.New("authentication token not yet valid")

	// ErrMissingToken indicates a token was expected but not provided
	ErrMissingToken = errors.New("authentication token is missing")

	// ErrTokenRevoked indicates the token was explicitly revoked before its expiry
	ErrTokenRevoked = errors.New("authentication token has been revoked")

	// ErrStaleTokenVersion indicates the token was issued before the user's
	// sessions were invalidated and is no longer acceptable
	ErrStaleTokenVersion = errors.New("authentication token version is stale")

	// ErrInvalidCredentials indicates a login attempt with a wrong email or password.
	// Both cases map to the same error so responses don't reveal which one failed.
	ErrInvalidCredentials = errors.New("invalid email or password")
)
