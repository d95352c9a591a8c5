package rbac

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
)

// MemoryStore is the in-memory reference Store implementation. A single
// mutex serializes writes and the audit append happens under the same lock
// before the role commit, so mutation and audit entry form one logical
// transaction.
type MemoryStore struct {
	mu     sync.RWMutex
	roles  map[uuid.UUID]Role
	byName map[string]uuid.UUID
	trail  audit.Storage
}

// NewMemoryStore creates an empty in-memory role store writing audit
// entries through the given storage.
func NewMemoryStore(trail audit.Storage) *MemoryStore {
	if trail == nil {
		panic("rbac: audit storage cannot be nil")
	}
	return &MemoryStore{
		roles:  make(map[uuid.UUID]Role),
		byName: make(map[string]uuid.UUID),
		trail:  trail,
	}
}

// Create inserts a new role and its audit entry atomically.
func (s *MemoryStore) Create(ctx context.Context, role Role, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[role.Name]; exists {
		return ErrRoleNameTaken
	}

	if err := s.trail.Append(ctx, entry); err != nil {
		return err
	}

	s.roles[role.ID] = role.clone()
	s.byName[role.Name] = role.ID
	return nil
}

// Update replaces the stored role if the version matches.
func (s *MemoryStore) Update(ctx context.Context, role Role, expectedVersion int64, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.roles[role.ID]
	if !exists {
		return ErrRoleNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionMismatch
	}

	if err := s.trail.Append(ctx, entry); err != nil {
		return err
	}

	role.Version = expectedVersion + 1
	s.roles[role.ID] = role.clone()
	return nil
}

// Delete removes the role if the version matches. The audit trail for the
// role id is retained.
func (s *MemoryStore) Delete(ctx context.Context, id uuid.UUID, expectedVersion int64, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.roles[id]
	if !exists {
		return ErrRoleNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionMismatch
	}

	if err := s.trail.Append(ctx, entry); err != nil {
		return err
	}

	delete(s.roles, id)
	delete(s.byName, current.Name)
	return nil
}

// GetByID returns a copy of the role.
func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, exists := s.roles[id]
	if !exists {
		return Role{}, ErrRoleNotFound
	}
	return role.clone(), nil
}

// GetByName returns a copy of the role by its machine key.
func (s *MemoryStore) GetByName(ctx context.Context, name string) (Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byName[name]
	if !exists {
		return Role{}, ErrRoleNotFound
	}
	return s.roles[id].clone(), nil
}

// List returns roles ordered by level then name with the exact total.
func (s *MemoryStore) List(ctx context.Context, page pagination.Page) ([]Role, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Role, 0, len(s.roles))
	for _, role := range s.roles {
		all = append(all, role.clone())
	}

	slices.SortFunc(all, func(a, b Role) int {
		if a.Level != b.Level {
			return a.Level - b.Level
		}
		return strings.Compare(a.Name, b.Name)
	})

	window, total := pagination.Slice(all, page)
	return window, total, nil
}
