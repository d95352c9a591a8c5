package audit

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/pagination"
)

// MemoryStorage is an in-memory Storage implementation. It is the reference
// backend for tests and single-process deployments; entries are held in
// insertion order and never mutated after append.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStorage creates an empty in-memory audit storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Append validates and stores a single entry.
func (s *MemoryStorage) Append(ctx context.Context, entry Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, copyEntry(entry))
	return nil
}

// Query returns matching entries newest first with the exact total count.
func (s *MemoryStorage) Query(ctx context.Context, criteria Criteria) ([]Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Walk backwards so results come out newest first.
	matched := make([]Entry, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		if matches(s.entries[i], criteria) {
			matched = append(matched, copyEntry(s.entries[i]))
		}
	}

	window, total := pagination.Slice(matched, criteria.Page)
	return window, total, nil
}

func matches(e Entry, c Criteria) bool {
	if c.EntityType != "" && e.EntityType != c.EntityType {
		return false
	}
	if c.EntityID != uuid.Nil && e.EntityID != c.EntityID {
		return false
	}
	if c.Action != "" && e.Action != c.Action {
		return false
	}
	if c.Actor != "" && e.Actor != c.Actor {
		return false
	}
	return true
}

// copyEntry clones the entry including its Changes map so callers can never
// reach the stored record.
func copyEntry(e Entry) Entry {
	if e.Changes != nil {
		e.Changes = maps.Clone(e.Changes)
	}
	return e
}
