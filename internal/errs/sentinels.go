// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrValidation indicates bad or missing input. Never retried, always a 4xx.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrLocked indicates an account that exhausted its login attempts.
	ErrLocked = errors.New("account locked")

	// ErrRateLimited indicates a request rejected by the rate limiter.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotReady indicates a file that is still being written.
	ErrNotReady = errors.New("file not ready")

	// ErrCorruptedState indicates a crash leftover (disk marker without an
	// in-process owner) that could not be cleaned up.
	ErrCorruptedState = errors.New("corrupted state")

	// ErrAlreadyExists indicates a unique constraint violation or an existing target file.
	ErrAlreadyExists = errors.New("already exists")
)
