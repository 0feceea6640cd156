package identity

import "errors"

var (
	// ErrNotFound is returned by Load when no record exists for a name.
	ErrNotFound = errors.New("identity not found")
	// ErrPersistence wraps filesystem and encoding failures.
	ErrPersistence = errors.New("identity persistence failed")
	// ErrInvalidName rejects names that cannot be used as a record file name.
	ErrInvalidName = errors.New("invalid identity name")
)
