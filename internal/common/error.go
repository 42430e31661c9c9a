// Package common defines shared constants and sentinel errors used across
// the portal's layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Validation errors (bad or duplicate input at signup/update).
	ErrorValidation    = errors.New("validation error")
	ErrorAlreadyExists = errors.New("already exists")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// External-account errors: the portal user has not connected a Google
	// account, or the consented scopes no longer match what we need.
	ErrNotConnected = errors.New("google account not connected")
	ErrScopeChanged = errors.New("oauth scopes changed, reconnect required")
)
