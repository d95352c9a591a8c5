package audit

import "errors"

var (
	// ErrEntryValidation indicates the entry is missing required fields.
	ErrEntryValidation = errors.New("audit entry validation failed")

	// ErrStorageFailure indicates the underlying storage rejected an
	// append or query. The triggering mutation must fail together with it.
	ErrStorageFailure = errors.New("audit storage failure")
)
