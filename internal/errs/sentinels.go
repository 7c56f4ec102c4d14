// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates an authorization failure (wrong owner,
	// insufficient role, or a self-protection violation).
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState indicates the operation is not legal for the
	// entity's current status.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidAmount indicates a non-positive transfer amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds indicates the source card cannot cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidOperation indicates a structurally invalid request
	// (e.g. transferring to the same card).
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrUnauthenticated indicates a missing or invalid actor identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrConflict indicates a concurrent modification lost the race.
	ErrConflict = errors.New("conflict")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")
)
