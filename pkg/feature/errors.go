package feature

import "errors"

// Predefined errors for the feature package.
var (
	// ErrNotFound indicates that the requested feature does not exist.
	ErrNotFound = errors.New("feature not found")

	// ErrNameTaken indicates that a feature with the same name already exists.
	ErrNameTaken = errors.New("feature name already taken")

	// ErrValidation indicates that the provided feature parameters are invalid.
	ErrValidation = errors.New("invalid feature parameters")

	// ErrVersionMismatch indicates a concurrent modification: the stored
	// version differs from the one the caller last read. Re-read and retry.
	ErrVersionMismatch = errors.New("feature version mismatch")

	// ErrStorageFailure indicates the underlying store failed. The full
	// cause is logged internally; callers only see this generic failure.
	ErrStorageFailure = errors.New("feature storage failure")
)
