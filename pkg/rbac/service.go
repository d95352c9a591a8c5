package rbac

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
	"github.com/dmitrymomot/coopkit/pkg/permissions"
)

// Audit actions written by the service.
const (
	ActionRoleCreated       = "role_created"
	ActionRoleUpdated       = "role_updated"
	ActionRoleDeleted       = "role_deleted"
	ActionPermissionAdded   = "permission_added"
	ActionPermissionRemoved = "permission_removed"
)

// Service owns admin roles and enforces permission checks for every
// mutating operation in the control plane.
type Service struct {
	store       Store
	assignments AssignmentSource
	log         *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for internal storage failure details.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService creates the role authorization service.
func NewService(store Store, assignments AssignmentSource, opts ...Option) *Service {
	if store == nil {
		panic("rbac: store cannot be nil")
	}
	if assignments == nil {
		panic("rbac: assignment source cannot be nil")
	}

	s := &Service{
		store:       store,
		assignments: assignments,
		log:         slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Authorize checks that the actor holds the required permission: the actor
// must resolve to an active admin user whose role is active and explicitly
// grants the permission. Every failure mode (unknown actor, suspended
// user, inactive role, missing permission) surfaces as the same
// ErrInsufficientPermissions so the authorization structure never leaks.
func (s *Service) Authorize(ctx context.Context, actor, permission string) error {
	if actor == "" || permission == "" {
		return ErrInsufficientPermissions
	}

	roleID, active, err := s.assignments.Assignment(ctx, actor)
	if err != nil {
		s.log.ErrorContext(ctx, "rbac assignment lookup failed", "error", err)
		return ErrInsufficientPermissions
	}
	if !active {
		return ErrInsufficientPermissions
	}

	role, err := s.store.GetByID(ctx, roleID)
	if err != nil {
		if !errors.Is(err, ErrRoleNotFound) {
			s.log.ErrorContext(ctx, "rbac role lookup failed", "error", err)
		}
		return ErrInsufficientPermissions
	}

	if !role.IsActive || !role.Can(permission) {
		return ErrInsufficientPermissions
	}
	return nil
}

// CreateRoleInput describes a new role. Level and Name are fixed after
// creation. A zero MaxAdmins is normalized to UnlimitedAdmins.
type CreateRoleInput struct {
	Name        string
	DisplayName string
	Description string
	Level       int
	Permissions []string
	MaxAdmins   int
}

// CreateRole inserts a new active role. Requires "manage_admins".
func (s *Service) CreateRole(ctx context.Context, actor string, in CreateRoleInput) (Role, error) {
	if err := s.Authorize(ctx, actor, permissions.ManageAdmins); err != nil {
		return Role{}, err
	}

	if in.MaxAdmins == 0 {
		in.MaxAdmins = UnlimitedAdmins
	}

	now := time.Now().UTC()
	role := Role{
		ID:          uuid.New(),
		Name:        in.Name,
		DisplayName: in.DisplayName,
		Description: in.Description,
		Level:       in.Level,
		Permissions: permissions.Normalize(in.Permissions),
		IsActive:    true,
		MaxAdmins:   in.MaxAdmins,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := role.Validate(); err != nil {
		return Role{}, err
	}

	entry := audit.NewEntry(audit.EntityRole, role.ID, ActionRoleCreated, actor, audit.Changes{
		"name":        {New: role.Name},
		"level":       {New: role.Level},
		"permissions": {New: role.Permissions},
		"max_admins":  {New: role.MaxAdmins},
		"is_active":   {New: role.IsActive},
	})
	if err := s.store.Create(ctx, role, entry); err != nil {
		return Role{}, s.storeErr(ctx, "create_role", err)
	}

	return role, nil
}

// UpdateRoleInput is a partial update of the mutable role fields. Name and
// Level are deliberately absent: both are fixed at creation.
type UpdateRoleInput struct {
	DisplayName *string
	Description *string
	Permissions []string
	IsActive    *bool
	MaxAdmins   *int
}

// UpdateRole applies a partial update. Requires "manage_admins". When no
// field actually changes, the call is a no-op without an audit write.
func (s *Service) UpdateRole(ctx context.Context, actor string, id uuid.UUID, in UpdateRoleInput) (Role, error) {
	if err := s.Authorize(ctx, actor, permissions.ManageAdmins); err != nil {
		return Role{}, err
	}

	role, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Role{}, s.storeErr(ctx, "update_role", err)
	}

	changes := audit.Changes{}
	if in.DisplayName != nil && *in.DisplayName != role.DisplayName {
		changes["display_name"] = audit.Change{Old: role.DisplayName, New: *in.DisplayName}
		role.DisplayName = *in.DisplayName
	}
	if in.Description != nil && *in.Description != role.Description {
		changes["description"] = audit.Change{Old: role.Description, New: *in.Description}
		role.Description = *in.Description
	}
	if in.Permissions != nil {
		next := permissions.Normalize(in.Permissions)
		if !permissions.Equal(role.Permissions, next) {
			changes["permissions"] = audit.Change{Old: role.Permissions, New: next}
			role.Permissions = next
		}
	}
	if in.IsActive != nil && *in.IsActive != role.IsActive {
		changes["is_active"] = audit.Change{Old: role.IsActive, New: *in.IsActive}
		role.IsActive = *in.IsActive
	}
	if in.MaxAdmins != nil && *in.MaxAdmins != role.MaxAdmins {
		changes["max_admins"] = audit.Change{Old: role.MaxAdmins, New: *in.MaxAdmins}
		role.MaxAdmins = *in.MaxAdmins
	}

	if len(changes) == 0 {
		return role, nil
	}
	if err := role.Validate(); err != nil {
		return Role{}, err
	}

	return s.commit(ctx, role, audit.NewEntry(audit.EntityRole, role.ID, ActionRoleUpdated, actor, changes))
}

// DeleteRole removes a role. Requires "manage_admins". A role that still
// has non-removed admin user assignments cannot be deleted: reassign or
// remove those users first.
//
// The assignee count and the delete are two separate store calls, so an
// assignment racing between them can survive the role on the in-memory
// stores. Authorize fails closed on a missing role, and the Postgres
// store rejects the delete itself through the role foreign key, mapping
// the violation to ErrRoleInUse.
func (s *Service) DeleteRole(ctx context.Context, actor string, id uuid.UUID) error {
	if err := s.Authorize(ctx, actor, permissions.ManageAdmins); err != nil {
		return err
	}

	role, err := s.store.GetByID(ctx, id)
	if err != nil {
		return s.storeErr(ctx, "delete_role", err)
	}

	count, err := s.assignments.AssigneeCount(ctx, id)
	if err != nil {
		return s.storeErr(ctx, "delete_role", err)
	}
	if count > 0 {
		return ErrRoleInUse
	}

	entry := audit.NewEntry(audit.EntityRole, id, ActionRoleDeleted, actor, audit.Changes{
		"name": {Old: role.Name},
	})
	if err := s.store.Delete(ctx, id, role.Version, entry); err != nil {
		return s.storeErr(ctx, "delete_role", err)
	}
	return nil
}

// AddPermission grants a single vocabulary token to the role. Requires
// "manage_admins". Granting an already-held permission is a no-op.
func (s *Service) AddPermission(ctx context.Context, actor string, id uuid.UUID, permission string) (Role, error) {
	if err := s.Authorize(ctx, actor, permissions.ManageAdmins); err != nil {
		return Role{}, err
	}
	if !permissions.Valid([]string{permission}, permissions.Vocabulary()) {
		return Role{}, errors.Join(ErrValidation, errors.New("unknown permission token"))
	}

	role, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Role{}, s.storeErr(ctx, "add_permission", err)
	}
	if role.Can(permission) {
		return role, nil
	}

	before := role.Permissions
	role.Permissions = permissions.Normalize(append(slices.Clone(before), permission))

	entry := audit.NewEntry(audit.EntityRole, role.ID, ActionPermissionAdded, actor, audit.Changes{
		"permissions": {Old: before, New: role.Permissions},
	})
	return s.commit(ctx, role, entry)
}

// RemovePermission revokes a single token from the role. Requires
// "manage_admins". Revoking a permission the role does not hold is a no-op.
func (s *Service) RemovePermission(ctx context.Context, actor string, id uuid.UUID, permission string) (Role, error) {
	if err := s.Authorize(ctx, actor, permissions.ManageAdmins); err != nil {
		return Role{}, err
	}

	role, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Role{}, s.storeErr(ctx, "remove_permission", err)
	}
	if !role.Can(permission) {
		return role, nil
	}

	before := role.Permissions
	next := make([]string, 0, len(before))
	for _, p := range before {
		if p != permission {
			next = append(next, p)
		}
	}
	role.Permissions = next

	entry := audit.NewEntry(audit.EntityRole, role.ID, ActionPermissionRemoved, actor, audit.Changes{
		"permissions": {Old: before, New: next},
	})
	return s.commit(ctx, role, entry)
}

// GetRole returns a role by id.
func (s *Service) GetRole(ctx context.Context, id uuid.UUID) (Role, error) {
	role, err := s.store.GetByID(ctx, id)
	if err != nil {
		return Role{}, s.storeErr(ctx, "get_role", err)
	}
	return role, nil
}

// GetRoleByName returns a role by its machine key.
func (s *Service) GetRoleByName(ctx context.Context, name string) (Role, error) {
	role, err := s.store.GetByName(ctx, name)
	if err != nil {
		return Role{}, s.storeErr(ctx, "get_role_by_name", err)
	}
	return role, nil
}

// ListRoles returns a page of roles ordered by level, highest authority
// first. The ordering is display-only and carries no permission semantics.
func (s *Service) ListRoles(ctx context.Context, page pagination.Page) (pagination.Result[Role], error) {
	page = page.Normalize()
	items, total, err := s.store.List(ctx, page)
	if err != nil {
		return pagination.Result[Role]{}, s.storeErr(ctx, "list_roles", err)
	}
	return pagination.NewResult(items, total, page), nil
}

func (s *Service) commit(ctx context.Context, role Role, entry audit.Entry) (Role, error) {
	role.UpdatedAt = time.Now().UTC()

	if err := s.store.Update(ctx, role, role.Version, entry); err != nil {
		return Role{}, s.storeErr(ctx, "commit", err)
	}
	role.Version++
	return role, nil
}

func (s *Service) storeErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, ErrRoleNotFound),
		errors.Is(err, ErrRoleNameTaken),
		errors.Is(err, ErrVersionMismatch),
		errors.Is(err, ErrValidation):
		return err
	}
	s.log.ErrorContext(ctx, "rbac store operation failed", "op", op, "error", err)
	return errors.Join(ErrStorageFailure, errors.New(op))
}
