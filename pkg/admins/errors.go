package admins

import "errors"

// Predefined errors for the admins package.
var (
	// ErrNotFound indicates the admin user does not exist.
	ErrNotFound = errors.New("admin user not found")

	// ErrValidation indicates malformed input parameters.
	ErrValidation = errors.New("invalid admin user parameters")

	// ErrAlreadyAssigned indicates the person already holds a non-removed
	// admin assignment; a person binds to exactly one role at a time.
	ErrAlreadyAssigned = errors.New("user already has an admin assignment")

	// ErrRoleUnavailable indicates the target role is unknown or inactive.
	// Inactive roles cannot receive new assignments.
	ErrRoleUnavailable = errors.New("role unknown or inactive")

	// ErrRoleCapacityExceeded indicates the role's maxAdmins cap would be
	// exceeded. Capacity is checked atomically before commit.
	ErrRoleCapacityExceeded = errors.New("role admin capacity exceeded")

	// ErrRemoved indicates the admin user has reached the terminal removed
	// state; the id is no longer assignable or mutable.
	ErrRemoved = errors.New("admin user already removed")

	// ErrVersionMismatch indicates a concurrent modification of the admin
	// user record.
	ErrVersionMismatch = errors.New("admin user version mismatch")

	// ErrStorageFailure indicates the underlying store failed; the cause
	// is logged internally.
	ErrStorageFailure = errors.New("admin user storage failure")
)
