package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/pagination"
)

// Criteria narrows a trail query. Zero values mean "any".
type Criteria struct {
	EntityType EntityType
	EntityID   uuid.UUID
	Action     string
	Actor      string
	Page       pagination.Page
}

// Storage is the pluggable persistence interface for audit entries.
//
// Append must be atomic with respect to the entity mutation it accompanies:
// entity stores call it inside the same lock or database transaction that
// commits the entity write, so a failed append fails the whole mutation.
//
// Query returns entries newest first along with the exact total count of
// matches, bounded by the page in the criteria.
type Storage interface {
	Append(ctx context.Context, entry Entry) error
	Query(ctx context.Context, criteria Criteria) ([]Entry, int, error)
}
