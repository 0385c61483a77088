// Package common defines shared constants and sentinel errors used across
// the math teacher backend. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// User-management errors.
	ErrorDuplicateEmail     = errors.New("email already registered")
	ErrorInvalidCredentials = errors.New("invalid email or password")
	ErrorAccountInactive    = errors.New("account is deactivated")

	// Ownership errors.
	ErrorAccessDenied = errors.New("access denied")

	// Auth token errors (invalid, malformed, or wrong-typed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrResetTokenInvalid   = errors.New("invalid or expired reset token")

	// Durable storage unreachable; reads fall back to cache-only semantics,
	// writes are best-effort.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Conversation engine collaborator failure.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)
