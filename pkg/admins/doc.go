// Package admins manages the directory of admin users: who holds admin
// access, which single role each person is bound to, and where each record
// sits in the active/suspended/removed lifecycle.
//
// A person (identified by an opaque user reference) holds at most one
// non-removed assignment at a time. Removal is terminal and keeps the
// record around for the audit history; re-granting access later creates a
// fresh record with a new id.
//
// # Usage
//
//	trail := audit.NewMemoryStorage()
//	roleStore := rbac.NewMemoryStore(trail)
//	adminStore := admins.NewMemoryStore(trail)
//
//	svc := rbac.NewService(roleStore, admins.NewAssignmentSource(adminStore))
//	dir := admins.NewDirectory(adminStore, svc, svc)
//
//	user, err := dir.Assign(ctx, actor, "user-42", financeRoleID)
//
// # Capacity
//
// Roles may cap how many admin users they accept (maxAdmins). The cap is
// enforced atomically inside the store, in the same transaction as the
// insert, so concurrent assignments cannot overshoot it. Suspended users
// still occupy a slot; removed ones do not.
//
// # Lifecycle
//
// Suspend pauses a person's authority without dropping the role binding;
// Activate restores it. Both are no-ops when the record is already in the
// target state. Any mutation of a removed record fails with ErrRemoved.
package admins
