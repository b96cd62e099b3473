package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a record does not exist or has been
	// soft-deleted.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when a uniqueness constraint is violated,
	// such as a duplicate username or a duplicate active alias for the
	// same owner.
	ErrConflict = errors.New("record already exists")
)
