// Package token issues, verifies, and rotates the realm-scoped credentials
// that the gateway hands out as cookies. Access tokens are short-lived signed
// claims and never touch storage; refresh tokens are persisted per family so
// a replayed token can be distinguished from a merely invalid one.
package token

import "errors"

var (
	// ErrInvalidToken covers bad signature, expiry, wrong token type, and
	// realm/tenant mismatch. Callers must fail closed on it.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenReuse reports a refresh token presented after it was already
	// consumed. The whole family is revoked before this is returned.
	ErrTokenReuse = errors.New("refresh token reuse detected")

	// Store-level outcomes for ConsumeAndReplace.
	ErrRecordNotFound = errors.New("refresh record not found")
	ErrRecordConsumed = errors.New("refresh record already consumed")
)
