package admins

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/rbac"
)

// assignmentSource adapts a Store to the rbac.AssignmentSource contract so
// the authorization service can resolve actors without importing this
// package.
type assignmentSource struct {
	store Store
}

// NewAssignmentSource exposes the admin user store as the assignment
// lookup used by rbac.Service.
func NewAssignmentSource(store Store) rbac.AssignmentSource {
	if store == nil {
		panic("admins: store cannot be nil")
	}
	return &assignmentSource{store: store}
}

// Assignment resolves a person to their current role binding. A person
// without a non-removed assignment reports active=false with no error, so
// authorization treats them as a plain denial rather than a failure.
func (a *assignmentSource) Assignment(ctx context.Context, userRef string) (uuid.UUID, bool, error) {
	user, err := a.store.GetByUserRef(ctx, userRef)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, err
	}
	return user.RoleID, user.Status == StatusActive, nil
}

// AssigneeCount counts non-removed admin users bound to the role.
// Suspended users still count: they hold the binding even while paused.
func (a *assignmentSource) AssigneeCount(ctx context.Context, roleID uuid.UUID) (int, error) {
	return a.store.CountByRole(ctx, roleID)
}
