package types

import "errors"

var (
	// ErrNotFound means the requested character has no matching row.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable means a backing store could not be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrValidation marks a rejected request.
	ErrValidation = errors.New("validation error")
)
