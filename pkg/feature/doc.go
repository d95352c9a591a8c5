// Package feature implements the feature flag half of the control plane: a
// registry owning feature records and a pure, deterministic rollout
// evaluator deciding per request whether a named capability is active for
// a given identity on a given platform.
//
// # Architecture
//
// The package separates the two traffic classes the system serves:
//
//  1. Evaluation (read-heavy): Evaluate is a pure function over a feature
//     snapshot; IsEnabled on the Registry resolves the snapshot (optionally
//     through a Redis cache) and evaluates it. No authorization, no locks.
//  2. Administration (write-light): every mutation on the Registry is
//     permission-gated ("manage_features"), validated, written with an
//     optimistic version check, and paired with exactly one audit entry in
//     the same logical transaction.
//
// Storage is pluggable through the Store interface. MemoryStore is the
// in-process reference implementation; pkg/pgstore provides the
// Postgres-backed one.
//
// # Usage
//
//	trail := audit.NewMemoryStorage()
//	store := feature.NewMemoryStore(trail)
//	registry := feature.NewRegistry(store, audit.NewReader(trail), authorizer)
//
//	f, err := registry.Create(ctx, "admin-1", feature.CreateInput{
//	    Name:      "new_loan_ui",
//	    Category:  feature.CategoryLending,
//	    Platforms: []feature.Platform{feature.PlatformWeb},
//	})
//	if err != nil {
//	    // handle error
//	}
//
//	_, _ = registry.Enable(ctx, "admin-1", f.ID)
//	_, _ = registry.UpdateRollout(ctx, "admin-1", f.ID, 25)
//
//	on, err := registry.IsEnabled(ctx, "new_loan_ui", feature.PlatformWeb, "member-42")
//
// # Rollout Determinism
//
// Percentage rollouts bucket identities with FNV-1a over
// "name:targetKey", a hash with no per-process seed, so a given identity
// receives the same decision on every node and across restarts. Because the
// comparison is bucket < percentage against a fixed bucket, raising the
// percentage only ever adds identities to the "on" set. Evaluation with an
// empty target key degrades to a request-scoped probability check and is
// explicitly non-deterministic.
//
// # Config Values
//
// Feature-specific configuration is a map of keys to ConfigValue, a tagged
// union of bool, number, and string. This keeps update and validation logic
// on a type switch instead of runtime reflection.
//
// # Error Handling
//
// The package uses sentinel errors checked with errors.Is: ErrNotFound,
// ErrNameTaken, ErrValidation, ErrVersionMismatch (concurrent modification;
// re-read and retry), and ErrStorageFailure (cause logged internally,
// surfaced generically).
package feature
