package rbac

import "errors"

// Domain errors for RBAC operations.
var (
	// ErrRoleNotFound is returned when a role does not exist.
	ErrRoleNotFound = errors.New("rbac.role_not_found")

	// ErrRoleNameTaken is returned when a role name is already in use.
	ErrRoleNameTaken = errors.New("rbac.role_name_taken")

	// ErrValidation is returned for malformed role parameters, including
	// permission tokens outside the known vocabulary.
	ErrValidation = errors.New("rbac.invalid_role")

	// ErrInsufficientPermissions is returned when an actor may not perform
	// an operation. The message is deliberately generic: it never reveals
	// which permission was missing.
	ErrInsufficientPermissions = errors.New("rbac.insufficient_permissions")

	// ErrRoleInUse is returned when deleting a role that still has admin
	// user assignments. Reassign or remove those users first.
	ErrRoleInUse = errors.New("rbac.role_in_use")

	// ErrVersionMismatch indicates a concurrent modification of the role.
	ErrVersionMismatch = errors.New("rbac.role_version_mismatch")

	// ErrStorageFailure indicates the underlying store failed; the cause
	// is logged internally.
	ErrStorageFailure = errors.New("rbac.storage_failure")
)
