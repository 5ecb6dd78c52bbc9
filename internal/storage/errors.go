package storage

import "errors"

// Storage errors shared by all backends.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an insert collides with an existing
	// key on a store that does not upsert (open liquidation orders).
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvariant is returned when a write would violate a domain
	// invariant, such as a position delta driving a balance below zero.
	// The write is rejected and the stored state is left untouched.
	ErrInvariant = errors.New("invariant violation")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
