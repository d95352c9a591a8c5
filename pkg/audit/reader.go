package audit

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/pagination"
)

// Reader provides the query side of the audit trail.
type Reader struct {
	storage Storage
}

// NewReader creates a new audit reader.
func NewReader(storage Storage) *Reader {
	if storage == nil {
		panic("audit: storage cannot be nil")
	}
	return &Reader{storage: storage}
}

// Find retrieves entries matching the criteria, newest first.
func (r *Reader) Find(ctx context.Context, criteria Criteria) (pagination.Result[Entry], error) {
	criteria.Page = criteria.Page.Normalize()

	entries, total, err := r.storage.Query(ctx, criteria)
	if err != nil {
		return pagination.Result[Entry]{}, errors.Join(ErrStorageFailure, err)
	}

	return pagination.NewResult(entries, total, criteria.Page), nil
}

// Changelog retrieves the trail for a single entity, newest first. This is
// the backing call for the per-feature changelog exposed by the registry.
func (r *Reader) Changelog(ctx context.Context, entityType EntityType, entityID uuid.UUID, page pagination.Page) (pagination.Result[Entry], error) {
	return r.Find(ctx, Criteria{
		EntityType: entityType,
		EntityID:   entityID,
		Page:       page,
	})
}
