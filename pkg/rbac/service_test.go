package rbac_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
	"github.com/dmitrymomot/coopkit/pkg/permissions"
	"github.com/dmitrymomot/coopkit/pkg/rbac"
)

// fakeAssignments is a hand-rolled AssignmentSource so role tests do not
// depend on the admin directory package.
type fakeAssignments struct {
	roles    map[string]uuid.UUID
	inactive map[string]bool
	counts   map[uuid.UUID]int
	err      error
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{
		roles:    make(map[string]uuid.UUID),
		inactive: make(map[string]bool),
		counts:   make(map[uuid.UUID]int),
	}
}

func (f *fakeAssignments) Assignment(ctx context.Context, userRef string) (uuid.UUID, bool, error) {
	if f.err != nil {
		return uuid.Nil, false, f.err
	}
	roleID, ok := f.roles[userRef]
	if !ok {
		return uuid.Nil, false, nil
	}
	return roleID, !f.inactive[userRef], nil
}

func (f *fakeAssignments) AssigneeCount(ctx context.Context, roleID uuid.UUID) (int, error) {
	return f.counts[roleID], nil
}

// seedRole writes a role directly into the store, bypassing the service,
// so tests can bootstrap an actor that is allowed to manage roles.
func seedRole(t *testing.T, store rbac.Store, name string, level int, perms []string) rbac.Role {
	t.Helper()
	now := time.Now().UTC()
	role := rbac.Role{
		ID:          uuid.New(),
		Name:        name,
		DisplayName: name,
		Level:       level,
		Permissions: permissions.Normalize(perms),
		IsActive:    true,
		MaxAdmins:   rbac.UnlimitedAdmins,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	entry := audit.NewEntry(audit.EntityRole, role.ID, "role_created", "system", nil)
	require.NoError(t, store.Create(context.Background(), role, entry))
	return role
}

func newService(t *testing.T) (*rbac.Service, rbac.Store, *fakeAssignments, *audit.MemoryStorage) {
	t.Helper()
	trail := audit.NewMemoryStorage()
	store := rbac.NewMemoryStore(trail)
	assignments := newFakeAssignments()
	return rbac.NewService(store, assignments), store, assignments, trail
}

// rootActor seeds a super admin role and binds the "root" actor to it.
func rootActor(t *testing.T, store rbac.Store, assignments *fakeAssignments) {
	t.Helper()
	super := seedRole(t, store, "super_admin", 0, permissions.Vocabulary())
	assignments.roles["root"] = super.ID
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, _ := newService(t)

	viewer := seedRole(t, store, "viewer", 3, []string{permissions.Read})
	assignments.roles["alice"] = viewer.ID

	t.Run("granted", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, svc.Authorize(ctx, "alice", permissions.Read))
	})

	t.Run("missing permission", func(t *testing.T) {
		t.Parallel()
		err := svc.Authorize(ctx, "alice", permissions.ManageFeatures)
		assert.ErrorIs(t, err, rbac.ErrInsufficientPermissions)
	})

	t.Run("unknown actor", func(t *testing.T) {
		t.Parallel()
		err := svc.Authorize(ctx, "nobody", permissions.Read)
		assert.ErrorIs(t, err, rbac.ErrInsufficientPermissions)
	})

	t.Run("empty actor", func(t *testing.T) {
		t.Parallel()
		err := svc.Authorize(ctx, "", permissions.Read)
		assert.ErrorIs(t, err, rbac.ErrInsufficientPermissions)
	})
}

func TestAuthorizeAssignmentSourceFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, _ := newService(t)

	viewer := seedRole(t, store, "viewer", 3, []string{permissions.Read})
	assignments.roles["alice"] = viewer.ID
	assignments.err = errors.New("directory unavailable")

	// A broken assignment source fails closed with the same opaque denial.
	err := svc.Authorize(ctx, "alice", permissions.Read)
	assert.ErrorIs(t, err, rbac.ErrInsufficientPermissions)
}

func TestAuthorizeSuspendedActor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, _ := newService(t)

	viewer := seedRole(t, store, "viewer", 3, []string{permissions.Read})
	assignments.roles["alice"] = viewer.ID
	assignments.inactive["alice"] = true

	err := svc.Authorize(ctx, "alice", permissions.Read)
	assert.ErrorIs(t, err, rbac.ErrInsufficientPermissions)
}

func TestAuthorizeInactiveRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, _ := newService(t)
	rootActor(t, store, assignments)

	role, err := svc.CreateRole(ctx, "root", rbac.CreateRoleInput{
		Name:        "dormant",
		Level:       2,
		Permissions: []string{permissions.Read},
	})
	require.NoError(t, err)
	assignments.roles["bob"] = role.ID
	require.NoError(t, svc.Authorize(ctx, "bob", permissions.Read))

	inactive := false
	_, err = svc.UpdateRole(ctx, "root", role.ID, rbac.UpdateRoleInput{IsActive: &inactive})
	require.NoError(t, err)

	err = svc.Authorize(ctx, "bob", permissions.Read)
	assert.ErrorIs(t, err, rbac.ErrInsufficientPermissions)
}

func TestAuthorizeLevelGrantsNothing(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, _ := newService(t)

	// Level 0 is the highest authority for display purposes, but carries
	// no permissions by itself.
	top := seedRole(t, store, "figurehead", 0, nil)
	assignments.roles["ceo"] = top.ID

	err := svc.Authorize(ctx, "ceo", permissions.Read)
	assert.ErrorIs(t, err, rbac.ErrInsufficientPermissions)
}

func TestCreateRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, trail := newService(t)
	rootActor(t, store, assignments)

	role, err := svc.CreateRole(ctx, "root", rbac.CreateRoleInput{
		Name:        "finance",
		DisplayName: "Finance Officer",
		Level:       2,
		Permissions: []string{permissions.Approve, permissions.Read, permissions.Read},
	})
	require.NoError(t, err)
	assert.True(t, role.IsActive)
	assert.Equal(t, rbac.UnlimitedAdmins, role.MaxAdmins)
	assert.Equal(t, []string{permissions.Approve, permissions.Read}, role.Permissions)
	assert.EqualValues(t, 1, role.Version)

	entries, total, err := trail.Query(ctx, audit.Criteria{EntityID: role.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, rbac.ActionRoleCreated, entries[0].Action)
}

func TestCreateRoleRejectsUnknownPermission(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, _ := newService(t)
	rootActor(t, store, assignments)

	_, err := svc.CreateRole(ctx, "root", rbac.CreateRoleInput{
		Name:        "odd",
		Permissions: []string{"teleport"},
	})
	assert.ErrorIs(t, err, rbac.ErrValidation)
}

func TestCreateRoleNameTaken(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, _ := newService(t)
	rootActor(t, store, assignments)

	_, err := svc.CreateRole(ctx, "root", rbac.CreateRoleInput{Name: "dup"})
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "root", rbac.CreateRoleInput{Name: "dup"})
	assert.ErrorIs(t, err, rbac.ErrRoleNameTaken)
}

func TestCreateRoleUnauthorized(t *testing.T) {
	t.Parallel()

	svc, store, assignments, _ := newService(t)

	viewer := seedRole(t, store, "viewer", 3, []string{permissions.Read})
	assignments.roles["alice"] = viewer.ID

	_, err := svc.CreateRole(context.Background(), "alice", rbac.CreateRoleInput{Name: "nope"})
	assert.ErrorIs(t, err, rbac.ErrInsufficientPermissions)
}

func TestUpdateRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, trail := newService(t)
	rootActor(t, store, assignments)

	role, err := svc.CreateRole(ctx, "root", rbac.CreateRoleInput{Name: "support", MaxAdmins: 3})
	require.NoError(t, err)

	display := "Support Agent"
	maxAdmins := 5
	updated, err := svc.UpdateRole(ctx, "root", role.ID, rbac.UpdateRoleInput{
		DisplayName: &display,
		MaxAdmins:   &maxAdmins,
	})
	require.NoError(t, err)
	assert.Equal(t, "Support Agent", updated.DisplayName)
	assert.Equal(t, 5, updated.MaxAdmins)
	assert.EqualValues(t, 2, updated.Version)

	entries, _, err := trail.Query(ctx, audit.Criteria{EntityID: role.ID, Action: rbac.ActionRoleUpdated})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Changes, "max_admins")

	// No-change update writes nothing.
	_, err = svc.UpdateRole(ctx, "root", role.ID, rbac.UpdateRoleInput{DisplayName: &display})
	require.NoError(t, err)
	_, total, err := trail.Query(ctx, audit.Criteria{EntityID: role.ID, Action: rbac.ActionRoleUpdated})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestDeleteRole(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, trail := newService(t)
	rootActor(t, store, assignments)

	role, err := svc.CreateRole(ctx, "root", rbac.CreateRoleInput{Name: "ephemeral"})
	require.NoError(t, err)

	t.Run("role in use cannot be deleted", func(t *testing.T) {
		assignments.counts[role.ID] = 2
		err := svc.DeleteRole(ctx, "root", role.ID)
		assert.ErrorIs(t, err, rbac.ErrRoleInUse)
	})

	t.Run("unassigned role is deleted", func(t *testing.T) {
		assignments.counts[role.ID] = 0
		require.NoError(t, svc.DeleteRole(ctx, "root", role.ID))

		_, err := svc.GetRole(ctx, role.ID)
		assert.ErrorIs(t, err, rbac.ErrRoleNotFound)

		// The trail survives the role.
		entries, _, err := trail.Query(ctx, audit.Criteria{EntityID: role.ID, Action: rbac.ActionRoleDeleted})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}

func TestAddRemovePermission(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, trail := newService(t)
	rootActor(t, store, assignments)

	role, err := svc.CreateRole(ctx, "root", rbac.CreateRoleInput{
		Name:        "ops",
		Permissions: []string{permissions.Read},
	})
	require.NoError(t, err)

	added, err := svc.AddPermission(ctx, "root", role.ID, permissions.ViewReports)
	require.NoError(t, err)
	assert.True(t, added.Can(permissions.ViewReports))

	// Adding an already-held permission is a no-op.
	same, err := svc.AddPermission(ctx, "root", role.ID, permissions.ViewReports)
	require.NoError(t, err)
	assert.Equal(t, added.Version, same.Version)

	_, err = svc.AddPermission(ctx, "root", role.ID, "fly")
	assert.ErrorIs(t, err, rbac.ErrValidation)

	removed, err := svc.RemovePermission(ctx, "root", role.ID, permissions.Read)
	require.NoError(t, err)
	assert.False(t, removed.Can(permissions.Read))
	assert.True(t, removed.Can(permissions.ViewReports))

	// Removing an absent permission is a no-op.
	same, err = svc.RemovePermission(ctx, "root", role.ID, permissions.Read)
	require.NoError(t, err)
	assert.Equal(t, removed.Version, same.Version)

	addEntries, _, err := trail.Query(ctx, audit.Criteria{EntityID: role.ID, Action: rbac.ActionPermissionAdded})
	require.NoError(t, err)
	require.Len(t, addEntries, 1)
	assert.Contains(t, addEntries[0].Changes, "permissions")

	_, removeTotal, err := trail.Query(ctx, audit.Criteria{EntityID: role.ID, Action: rbac.ActionPermissionRemoved})
	require.NoError(t, err)
	assert.Equal(t, 1, removeTotal)
}

func TestListRolesOrderedByLevel(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, _ := newService(t)
	rootActor(t, store, assignments)

	_, err := svc.CreateRole(ctx, "root", rbac.CreateRoleInput{Name: "viewer", Level: 3})
	require.NoError(t, err)
	_, err = svc.CreateRole(ctx, "root", rbac.CreateRoleInput{Name: "manager", Level: 1})
	require.NoError(t, err)

	result, err := svc.ListRoles(ctx, pagination.Page{})
	require.NoError(t, err)
	require.Equal(t, 3, result.Total)
	assert.Equal(t, "super_admin", result.Items[0].Name) // seeded at level 0
	assert.Equal(t, "manager", result.Items[1].Name)
	assert.Equal(t, "viewer", result.Items[2].Name)
}

func TestGetRoleByName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	svc, store, assignments, _ := newService(t)
	rootActor(t, store, assignments)

	created, err := svc.CreateRole(ctx, "root", rbac.CreateRoleInput{Name: "named"})
	require.NoError(t, err)

	got, err := svc.GetRoleByName(ctx, "named")
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.GetRoleByName(ctx, "ghost")
	assert.ErrorIs(t, err, rbac.ErrRoleNotFound)
}
