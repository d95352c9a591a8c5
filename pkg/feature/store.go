package feature

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
)

// Filter narrows List results. Category, Status, Enabled, and Platform are
// exact-match; Search is a case-insensitive substring match over name,
// display name, and description. Retired features are excluded unless
// IncludeRetired is set.
type Filter struct {
	Category       Category
	Status         Status
	Enabled        *bool
	Platform       Platform
	Search         string
	IncludeRetired bool
}

// Store is the persistence contract for feature records.
//
// Write methods take the audit entry describing the mutation and must
// persist it in the same logical transaction as the entity write: if either
// side fails, neither is committed.
//
// Update enforces optimistic concurrency: it fails with ErrVersionMismatch
// when the stored version differs from expectedVersion, and increments the
// version on success. Concurrent read-modify-write cycles on the same id
// therefore never interleave partial field writes.
type Store interface {
	Create(ctx context.Context, f Feature, entry audit.Entry) error
	Update(ctx context.Context, f Feature, expectedVersion int64, entry audit.Entry) error

	GetByID(ctx context.Context, id uuid.UUID) (Feature, error)
	GetByName(ctx context.Context, name string) (Feature, error)

	// List returns matching features in insertion order together with the
	// exact total count. It never blocks on per-entity write locks.
	List(ctx context.Context, filter Filter, page pagination.Page) ([]Feature, int, error)
}
