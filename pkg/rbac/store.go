package rbac

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
)

// Store is the persistence contract for role records.
//
// Write methods persist the audit entry in the same logical transaction as
// the role write. Update and Delete enforce optimistic concurrency against
// expectedVersion and fail with ErrVersionMismatch on a stale read.
type Store interface {
	Create(ctx context.Context, role Role, entry audit.Entry) error
	Update(ctx context.Context, role Role, expectedVersion int64, entry audit.Entry) error
	Delete(ctx context.Context, id uuid.UUID, expectedVersion int64, entry audit.Entry) error

	GetByID(ctx context.Context, id uuid.UUID) (Role, error)
	GetByName(ctx context.Context, name string) (Role, error)

	// List returns roles ordered by level (highest authority first), then
	// name, with the exact total count. Level ordering is display-only.
	List(ctx context.Context, page pagination.Page) ([]Role, int, error)
}

// AssignmentSource is the seam to the admin user directory. It answers the
// two questions authorization and the role-deletion guard need without
// pulling directory types into this package.
type AssignmentSource interface {
	// Assignment resolves an actor to their current role. The active flag
	// reports whether the admin user's own status permits acting.
	Assignment(ctx context.Context, userRef string) (roleID uuid.UUID, active bool, err error)

	// AssigneeCount counts non-removed admin users bound to the role.
	AssigneeCount(ctx context.Context, roleID uuid.UUID) (int, error)
}
