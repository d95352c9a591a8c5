// Package audit provides the append-only change trail for the control
// plane: every mutation to a feature, role, or admin user produces exactly
// one entry recording who changed what and when, with a per-field
// before/after diff.
//
// The package is a pure contract plus reference implementations. Entity
// stores build entries with NewEntry and persist them through Storage in
// the same logical transaction as the entity write, so no mutation can
// succeed without its audit record and no record can exist for a mutation
// that did not complete.
//
// # Architecture
//
//   - Entry   - immutable record: entity, action, actor, field diffs
//   - Storage - pluggable append/query backend
//   - Reader  - newest-first, paginated query side
//
// # Usage
//
//	storage := audit.NewMemoryStorage()
//
//	entry := audit.NewEntry(audit.EntityFeature, featureID, "enabled", "admin-1",
//	    audit.Changes{"enabled": {Old: false, New: true}})
//	if err := storage.Append(ctx, entry); err != nil {
//	    // the mutation this entry describes must fail too
//	}
//
//	reader := audit.NewReader(storage)
//	trail, err := reader.Changelog(ctx, audit.EntityFeature, featureID,
//	    pagination.Page{Page: 1, Limit: 20})
//
// # Storage Implementations
//
// MemoryStorage holds entries in process for tests and single-node use.
// MongoStorage persists the trail in an append-only document collection.
// The Postgres-backed stores in pkg/pgstore write entries in the same
// database transaction as the entity row they describe.
//
// # Immutability
//
// There is deliberately no update or delete operation on the trail, in any
// implementation. Retention is an operational concern handled outside this
// package.
package audit
