package audit

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EntityType identifies which kind of control-plane record an entry refers to.
type EntityType string

const (
	EntityFeature   EntityType = "feature"
	EntityRole      EntityType = "role"
	EntityAdminUser EntityType = "admin_user"
)

// Change captures a single field transition as part of a mutation.
type Change struct {
	Old any `json:"old"`
	New any `json:"new"`
}

// Changes maps field names to their before/after values. A mutation that
// produced an entry changed exactly the fields listed here, nothing else.
type Changes map[string]Change

// Entry is a single audit log record. Entries are append-only and immutable
// once written: there is no update or delete path anywhere in the package.
type Entry struct {
	ID         uuid.UUID  `json:"id"`
	EntityType EntityType `json:"entity_type"`
	EntityID   uuid.UUID  `json:"entity_id"`
	Action     string     `json:"action"`
	Actor      string     `json:"actor"`
	Changes    Changes    `json:"changes,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Validate checks that the entry carries everything required to be useful
// as an audit record.
func (e *Entry) Validate() error {
	if e.EntityType == "" {
		return fmt.Errorf("%w: entity type is required", ErrEntryValidation)
	}
	if e.EntityID == uuid.Nil {
		return fmt.Errorf("%w: entity id is required", ErrEntryValidation)
	}
	if e.Action == "" {
		return fmt.Errorf("%w: action is required", ErrEntryValidation)
	}
	if e.Actor == "" {
		return fmt.Errorf("%w: actor is required", ErrEntryValidation)
	}
	return nil
}

// NewEntry builds an entry with a fresh id and a UTC timestamp. The entry is
// not persisted; entity stores write it in the same logical transaction as
// the mutation it describes.
func NewEntry(entityType EntityType, entityID uuid.UUID, action, actor string, changes Changes) Entry {
	return Entry{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Actor:      actor,
		Changes:    changes,
		CreatedAt:  time.Now().UTC(),
	}
}
