// Package permissions provides helpers for working with flat permission
// token sets: parsing, canonical normalization, containment checks, and
// validation against a known vocabulary.
//
// Tokens are opaque strings (e.g. "read", "manage_features"). There is
// deliberately no wildcard or inheritance mechanism: authorization in the
// control plane is always an explicit membership check, so a role can never
// acquire a permission that was not granted to it verbatim.
//
// # Usage
//
//	perms := permissions.Parse("read write manage_features")
//
//	if permissions.Has(perms, "manage_features") {
//	    // allowed
//	}
//
//	if bad := permissions.Unknown(perms, rbac.Vocabulary()); bad != nil {
//	    // reject: tokens outside the known vocabulary
//	}
//
// Normalize produces a sorted, de-duplicated canonical form, which keeps
// set comparison (Equal) and audit diffs stable regardless of input order.
package permissions
