package feature

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
)

// MemoryStore is an in-memory Store implementation, the reference backend
// for tests and single-process deployments. A single mutex serializes
// writes, which gives the required per-entity read-modify-write atomicity;
// the audit append happens under the same lock before the entity commit,
// making the two a single logical transaction.
type MemoryStore struct {
	mu       sync.RWMutex
	features map[uuid.UUID]Feature
	byName   map[string]uuid.UUID
	order    []uuid.UUID // insertion order for List
	trail    audit.Storage
}

// NewMemoryStore creates an empty in-memory feature store writing audit
// entries through the given storage.
func NewMemoryStore(trail audit.Storage) *MemoryStore {
	if trail == nil {
		panic("feature: audit storage cannot be nil")
	}
	return &MemoryStore{
		features: make(map[uuid.UUID]Feature),
		byName:   make(map[string]uuid.UUID),
		trail:    trail,
	}
}

// Create inserts a new feature and its audit entry atomically.
func (s *MemoryStore) Create(ctx context.Context, f Feature, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[f.Name]; exists {
		return ErrNameTaken
	}

	// Audit first: a failed append must fail the whole mutation, and the
	// in-memory commit below cannot fail once the entry is written.
	if err := s.trail.Append(ctx, entry); err != nil {
		return err
	}

	s.features[f.ID] = f.clone()
	s.byName[f.Name] = f.ID
	s.order = append(s.order, f.ID)
	return nil
}

// Update replaces the stored record if the version matches, bumping the
// version and writing the audit entry in the same critical section.
func (s *MemoryStore) Update(ctx context.Context, f Feature, expectedVersion int64, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.features[f.ID]
	if !exists {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionMismatch
	}

	if err := s.trail.Append(ctx, entry); err != nil {
		return err
	}

	f.Version = expectedVersion + 1
	s.features[f.ID] = f.clone()
	return nil
}

// GetByID returns a copy of the feature, retired or not.
func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.features[id]
	if !exists {
		return Feature{}, ErrNotFound
	}
	return f.clone(), nil
}

// GetByName returns a copy of the feature by its machine key.
func (s *MemoryStore) GetByName(ctx context.Context, name string) (Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byName[name]
	if !exists {
		return Feature{}, ErrNotFound
	}
	return s.features[id].clone(), nil
}

// List returns matching features in insertion order plus the exact total.
func (s *MemoryStore) List(ctx context.Context, filter Filter, page pagination.Page) ([]Feature, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]Feature, 0, len(s.order))
	for _, id := range s.order {
		f := s.features[id]
		if matchesFilter(f, filter) {
			matched = append(matched, f.clone())
		}
	}

	window, total := pagination.Slice(matched, page)
	return window, total, nil
}

func matchesFilter(f Feature, filter Filter) bool {
	if f.Retired && !filter.IncludeRetired {
		return false
	}
	if filter.Category != "" && f.Category != filter.Category {
		return false
	}
	if filter.Status != "" && f.Status != filter.Status {
		return false
	}
	if filter.Enabled != nil && f.Enabled != *filter.Enabled {
		return false
	}
	if filter.Platform != "" && !f.HasPlatform(filter.Platform) {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(f.Name), needle) &&
			!strings.Contains(strings.ToLower(f.DisplayName), needle) &&
			!strings.Contains(strings.ToLower(f.Description), needle) {
			return false
		}
	}
	return true
}
