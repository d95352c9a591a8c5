package rbac

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/permissions"
)

// UnlimitedAdmins disables the concurrent-assignee cap on a role.
const UnlimitedAdmins = -1

// Role is a named bundle of permissions plus a privilege level.
//
// Level is a pure display and sorting attribute (0 = highest authority,
// increasing = less). It is never consulted by authorization: permissions
// are always explicit per role and never inherited by level.
type Role struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"` // unique machine key
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	Level       int       `json:"level"` // fixed at creation

	Permissions []string `json:"permissions"`

	// IsActive gates new assignments and authorization checks. Existing
	// assignments are not auto-revoked when a role is deactivated, but
	// actors holding an inactive role are denied.
	IsActive bool `json:"is_active"`

	// MaxAdmins caps concurrent assignees; UnlimitedAdmins means no cap.
	MaxAdmins int `json:"max_admins"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Can checks if the role explicitly holds the permission.
func (r Role) Can(permission string) bool {
	return permissions.Has(r.Permissions, permission)
}

// Validate checks the role record invariants, including that the
// permission set is a subset of the known vocabulary.
func (r *Role) Validate() error {
	if r.Name == "" {
		return errors.Join(ErrValidation, errors.New("name is required"))
	}
	if r.Level < 0 {
		return errors.Join(ErrValidation, errors.New("level cannot be negative"))
	}
	if r.MaxAdmins < UnlimitedAdmins {
		return errors.Join(ErrValidation, errors.New("max admins cannot be below -1"))
	}
	if unknown := permissions.Unknown(r.Permissions, permissions.Vocabulary()); unknown != nil {
		return errors.Join(ErrValidation,
			fmt.Errorf("unknown permission tokens: %v", unknown))
	}
	return nil
}

func (r Role) clone() Role {
	r.Permissions = slices.Clone(r.Permissions)
	return r
}
