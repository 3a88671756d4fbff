package services

import "errors"

// Common service-level errors
var (
	// Auth errors
	ErrInvalidAuthCode    = errors.New("invalid authorization code")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidUserInfo    = errors.New("invalid user information")
	ErrSessionNotFound    = errors.New("session not found")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrNoRefreshToken     = errors.New("no refresh token available")
	ErrTokenRefreshFailed = errors.New("token refresh failed")

	// Storage errors
	ErrProviderUnavailable = errors.New("storage provider not available")
	ErrNotConnected        = errors.New("no storage provider connected")

	// World errors
	ErrWorldNotFound = errors.New("world not found")

	// ErrOperationInProgress means a mutating operation was attempted while
	// another is in flight. Callers treat it as a no-op, not a failure:
	// it almost always means a double-click or duplicate event.
	ErrOperationInProgress = errors.New("operation already in progress")
)
