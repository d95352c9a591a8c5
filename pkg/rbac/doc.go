// Package rbac implements role-based authorization for the control plane:
// it owns admin role records and decides whether an actor may invoke a
// mutating operation anywhere in the system.
//
// Authorization is an explicit membership check: the actor resolves to an
// active admin user, the user's single role must be active, and the role's
// permission set must contain the required token verbatim. The numeric role
// level exists purely for display and sorting ("Super Admin" = level 0);
// it is never an implicit permission-inheritance mechanism.
//
// # Usage
//
//	trail := audit.NewMemoryStorage()
//	store := rbac.NewMemoryStore(trail)
//	svc := rbac.NewService(store, assignments) // assignments from pkg/admins
//
//	if err := svc.Authorize(ctx, actor, permissions.ManageFeatures); err != nil {
//	    // errors.Is(err, rbac.ErrInsufficientPermissions)
//	}
//
//	role, err := svc.CreateRole(ctx, actor, rbac.CreateRoleInput{
//	    Name:        "finance",
//	    DisplayName: "Finance Officer",
//	    Level:       2,
//	    Permissions: []string{permissions.Read, permissions.Approve},
//	    MaxAdmins:   5,
//	})
//
// # Error Semantics
//
// Every authorization failure (unknown actor, suspended admin, inactive
// role, missing permission) returns the same ErrInsufficientPermissions.
// The denial never states which permission was missing, so callers cannot
// probe the authorization structure through error messages.
//
// Deleting a role that still has admin user assignments fails with
// ErrRoleInUse; all assignees must be reassigned or removed first.
package rbac
