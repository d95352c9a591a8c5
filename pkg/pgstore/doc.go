// Package pgstore provides the PostgreSQL persistence layer for the
// control plane: pgx-backed implementations of feature.Store, rbac.Store,
// admins.Store, and audit.Storage, plus the embedded goose migrations that
// create their schema.
//
// Every mutating store method writes the entity change and its audit entry
// in a single transaction, so a committed mutation always has its trail
// record and a failed one leaves neither behind. Updates use optimistic
// concurrency: the UPDATE is conditioned on the expected version and a
// zero-row result maps to the domain's version mismatch error.
//
// # Usage
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations(), cfg, log); err != nil {
//		return err
//	}
//
//	features := pgstore.NewFeatureStore(pool)
//	roles := pgstore.NewRoleStore(pool)
//	adminUsers := pgstore.NewAdminStore(pool)
//	trail := pgstore.NewAuditStorage(pool)
package pgstore
