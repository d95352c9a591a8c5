package admins

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
)

// Filter narrows List results. Status and RoleID are exact-match; Search
// is a case-insensitive substring match over the user reference. Removed
// admin users are included only when explicitly filtered by status.
type Filter struct {
	Search string
	Status Status
	RoleID uuid.UUID
}

// Store is the persistence contract for admin user records.
//
// Write methods persist the audit entry in the same logical transaction as
// the entity write, and capacity is enforced atomically inside the store:
// the count-and-insert (or count-and-move on reassignment) happens under
// the same lock or transaction, so concurrent assignments can never
// overshoot a role's maxAdmins cap.
//
// capacity is the maxAdmins of the record's role; rbac.UnlimitedAdmins
// disables the check. On Update the check applies only when the stored
// role reference actually changes.
type Store interface {
	Create(ctx context.Context, user AdminUser, capacity int, entry audit.Entry) error
	Update(ctx context.Context, user AdminUser, expectedVersion int64, capacity int, entry audit.Entry) error

	GetByID(ctx context.Context, id uuid.UUID) (AdminUser, error)

	// GetByUserRef resolves a person to their current non-removed
	// assignment. Removed records never match.
	GetByUserRef(ctx context.Context, userRef string) (AdminUser, error)

	// CountByRole counts non-removed admin users bound to the role.
	CountByRole(ctx context.Context, roleID uuid.UUID) (int, error)

	// List returns matching admin users in insertion order with the exact
	// total count.
	List(ctx context.Context, filter Filter, page pagination.Page) ([]AdminUser, int, error)
}
