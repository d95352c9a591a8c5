package admins

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
	"github.com/dmitrymomot/coopkit/pkg/permissions"
	"github.com/dmitrymomot/coopkit/pkg/rbac"
)

// Audit actions written by the directory.
const (
	ActionAssigned   = "admin_assigned"
	ActionReassigned = "admin_reassigned"
	ActionSuspended  = "admin_suspended"
	ActionActivated  = "admin_activated"
	ActionRemoved    = "admin_removed"
)

// RoleSource resolves role records for assignment checks. Satisfied by
// *rbac.Service.
type RoleSource interface {
	GetRole(ctx context.Context, id uuid.UUID) (rbac.Role, error)
}

// Authorizer decides whether an actor may invoke a mutating operation.
// Satisfied by *rbac.Service.
type Authorizer interface {
	Authorize(ctx context.Context, actor, permission string) error
}

// Directory manages the set of admin users: who is an admin, which single
// role each one holds, and where each sits in the lifecycle.
type Directory struct {
	store Store
	roles RoleSource
	authz Authorizer
	log   *slog.Logger
}

// Option configures a Directory.
type Option func(*Directory)

// WithLogger sets the logger used for internal storage failure details.
func WithLogger(log *slog.Logger) Option {
	return func(d *Directory) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDirectory creates the admin user directory.
func NewDirectory(store Store, roles RoleSource, authz Authorizer, opts ...Option) *Directory {
	if store == nil {
		panic("admins: store cannot be nil")
	}
	if roles == nil {
		panic("admins: role source cannot be nil")
	}
	if authz == nil {
		panic("admins: authorizer cannot be nil")
	}

	d := &Directory{
		store: store,
		roles: roles,
		authz: authz,
		log:   slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Assign binds a person to a role as a new active admin user. Requires
// "manage_admins". Fails when the person already holds a non-removed
// assignment, when the role is unknown or inactive, or when the role's
// maxAdmins cap is already reached.
func (d *Directory) Assign(ctx context.Context, actor, userRef string, roleID uuid.UUID) (AdminUser, error) {
	if err := d.authz.Authorize(ctx, actor, permissions.ManageAdmins); err != nil {
		return AdminUser{}, err
	}
	if userRef == "" {
		return AdminUser{}, errors.Join(ErrValidation, errors.New("user reference is required"))
	}

	role, err := d.assignableRole(ctx, roleID)
	if err != nil {
		return AdminUser{}, err
	}

	now := time.Now().UTC()
	user := AdminUser{
		ID:         uuid.New(),
		UserRef:    userRef,
		RoleID:     role.ID,
		Status:     StatusActive,
		AssignedBy: actor,
		Version:    1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	entry := audit.NewEntry(audit.EntityAdminUser, user.ID, ActionAssigned, actor, audit.Changes{
		"user_ref": {New: user.UserRef},
		"role_id":  {New: role.ID.String()},
		"status":   {New: string(StatusActive)},
	})
	if err := d.store.Create(ctx, user, role.MaxAdmins, entry); err != nil {
		return AdminUser{}, d.storeErr(ctx, "assign", err)
	}

	return user, nil
}

// Reassign moves an admin user to a different role, keeping their status.
// Requires "manage_admins". Reassigning to the current role is a no-op
// without an audit write; a removed admin user cannot be reassigned.
func (d *Directory) Reassign(ctx context.Context, actor string, id, roleID uuid.UUID) (AdminUser, error) {
	if err := d.authz.Authorize(ctx, actor, permissions.ManageAdmins); err != nil {
		return AdminUser{}, err
	}

	user, err := d.store.GetByID(ctx, id)
	if err != nil {
		return AdminUser{}, d.storeErr(ctx, "reassign", err)
	}
	if user.Status == StatusRemoved {
		return AdminUser{}, ErrRemoved
	}
	if user.RoleID == roleID {
		return user, nil
	}

	role, err := d.assignableRole(ctx, roleID)
	if err != nil {
		return AdminUser{}, err
	}

	entry := audit.NewEntry(audit.EntityAdminUser, user.ID, ActionReassigned, actor, audit.Changes{
		"role_id": {Old: user.RoleID.String(), New: role.ID.String()},
	})
	user.RoleID = role.ID
	return d.commit(ctx, "reassign", user, role.MaxAdmins, entry)
}

// Suspend pauses an admin user's authority without dropping the role
// binding. Requires "manage_admins". Suspending an already suspended user
// is a no-op without an audit write.
func (d *Directory) Suspend(ctx context.Context, actor string, id uuid.UUID) (AdminUser, error) {
	return d.transition(ctx, actor, id, StatusSuspended, ActionSuspended)
}

// Activate restores a suspended admin user. Requires "manage_admins".
// Activating an already active user is a no-op without an audit write.
func (d *Directory) Activate(ctx context.Context, actor string, id uuid.UUID) (AdminUser, error) {
	return d.transition(ctx, actor, id, StatusActive, ActionActivated)
}

// Remove moves an admin user to the terminal removed state. Requires
// "manage_admins". The person may later be assigned again under a fresh
// record; this one stays for the audit history.
func (d *Directory) Remove(ctx context.Context, actor string, id uuid.UUID) (AdminUser, error) {
	return d.transition(ctx, actor, id, StatusRemoved, ActionRemoved)
}

// Get returns an admin user record by id, including removed ones.
func (d *Directory) Get(ctx context.Context, id uuid.UUID) (AdminUser, error) {
	user, err := d.store.GetByID(ctx, id)
	if err != nil {
		return AdminUser{}, d.storeErr(ctx, "get", err)
	}
	return user, nil
}

// GetByUserRef resolves a person to their current non-removed assignment.
func (d *Directory) GetByUserRef(ctx context.Context, userRef string) (AdminUser, error) {
	user, err := d.store.GetByUserRef(ctx, userRef)
	if err != nil {
		return AdminUser{}, d.storeErr(ctx, "get_by_user_ref", err)
	}
	return user, nil
}

// List returns a filtered page of admin users. Removed users appear only
// when the filter asks for them by status.
func (d *Directory) List(ctx context.Context, filter Filter, page pagination.Page) (pagination.Result[AdminUser], error) {
	page = page.Normalize()
	items, total, err := d.store.List(ctx, filter, page)
	if err != nil {
		return pagination.Result[AdminUser]{}, d.storeErr(ctx, "list", err)
	}
	return pagination.NewResult(items, total, page), nil
}

// ListRoleUsers returns the non-removed admin users currently bound to the
// role.
func (d *Directory) ListRoleUsers(ctx context.Context, roleID uuid.UUID, page pagination.Page) (pagination.Result[AdminUser], error) {
	return d.List(ctx, Filter{RoleID: roleID}, page)
}

func (d *Directory) transition(ctx context.Context, actor string, id uuid.UUID, to Status, action string) (AdminUser, error) {
	if err := d.authz.Authorize(ctx, actor, permissions.ManageAdmins); err != nil {
		return AdminUser{}, err
	}

	user, err := d.store.GetByID(ctx, id)
	if err != nil {
		return AdminUser{}, d.storeErr(ctx, "transition", err)
	}
	if user.Status == to {
		return user, nil
	}
	if !user.Status.CanTransition(to) {
		return AdminUser{}, ErrRemoved
	}

	entry := audit.NewEntry(audit.EntityAdminUser, user.ID, action, actor, audit.Changes{
		"status": {Old: string(user.Status), New: string(to)},
	})
	user.Status = to
	return d.commit(ctx, "transition", user, rbac.UnlimitedAdmins, entry)
}

// assignableRole loads the role and checks it can receive new assignments.
func (d *Directory) assignableRole(ctx context.Context, roleID uuid.UUID) (rbac.Role, error) {
	role, err := d.roles.GetRole(ctx, roleID)
	if err != nil {
		if errors.Is(err, rbac.ErrRoleNotFound) {
			return rbac.Role{}, ErrRoleUnavailable
		}
		return rbac.Role{}, d.storeErr(ctx, "role_lookup", err)
	}
	if !role.IsActive {
		return rbac.Role{}, ErrRoleUnavailable
	}
	return role, nil
}

func (d *Directory) commit(ctx context.Context, op string, user AdminUser, capacity int, entry audit.Entry) (AdminUser, error) {
	user.UpdatedAt = time.Now().UTC()

	if err := d.store.Update(ctx, user, user.Version, capacity, entry); err != nil {
		return AdminUser{}, d.storeErr(ctx, op, err)
	}
	user.Version++
	return user, nil
}

func (d *Directory) storeErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAlreadyAssigned),
		errors.Is(err, ErrRoleCapacityExceeded),
		errors.Is(err, ErrRoleUnavailable),
		errors.Is(err, ErrRemoved),
		errors.Is(err, ErrVersionMismatch),
		errors.Is(err, ErrValidation):
		return err
	}
	d.log.ErrorContext(ctx, "admin user store operation failed", "op", op, "error", err)
	return errors.Join(ErrStorageFailure, errors.New(op))
}
