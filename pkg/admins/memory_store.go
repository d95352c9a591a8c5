package admins

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
	"github.com/dmitrymomot/coopkit/pkg/rbac"
)

// MemoryStore is an in-memory Store implementation. It is the reference
// implementation for tests and single-process deployments; the audit entry
// and the entity write commit under one lock, so a stored record always
// has its matching trail entry.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[uuid.UUID]AdminUser
	order []uuid.UUID
	trail audit.Storage
}

// NewMemoryStore creates an empty in-memory admin user store writing audit
// entries to trail.
func NewMemoryStore(trail audit.Storage) *MemoryStore {
	if trail == nil {
		panic("admins: audit storage cannot be nil")
	}
	return &MemoryStore{
		users: make(map[uuid.UUID]AdminUser),
		trail: trail,
	}
}

// Create inserts a new admin user record after checking the one-assignment
// rule and the role capacity under the same lock.
func (s *MemoryStore) Create(ctx context.Context, user AdminUser, capacity int, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return ErrAlreadyAssigned
	}
	for _, existing := range s.users {
		if existing.UserRef == user.UserRef && existing.Status != StatusRemoved {
			return ErrAlreadyAssigned
		}
	}
	if capacity != rbac.UnlimitedAdmins && s.countByRoleLocked(user.RoleID) >= capacity {
		return ErrRoleCapacityExceeded
	}

	if err := s.trail.Append(ctx, entry); err != nil {
		return err
	}
	s.users[user.ID] = user
	s.order = append(s.order, user.ID)
	return nil
}

// Update replaces the stored record when the expected version matches.
// Capacity applies only when the role reference changes.
func (s *MemoryStore) Update(ctx context.Context, user AdminUser, expectedVersion int64, capacity int, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if current.Version != expectedVersion {
		return ErrVersionMismatch
	}
	if current.RoleID != user.RoleID && user.Status != StatusRemoved &&
		capacity != rbac.UnlimitedAdmins && s.countByRoleLocked(user.RoleID) >= capacity {
		return ErrRoleCapacityExceeded
	}

	if err := s.trail.Append(ctx, entry); err != nil {
		return err
	}
	user.Version = expectedVersion + 1
	s.users[user.ID] = user
	return nil
}

// GetByID returns the admin user record, including removed ones.
func (s *MemoryStore) GetByID(ctx context.Context, id uuid.UUID) (AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return AdminUser{}, ErrNotFound
	}
	return user, nil
}

// GetByUserRef resolves a person to their current non-removed assignment.
func (s *MemoryStore) GetByUserRef(ctx context.Context, userRef string) (AdminUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.UserRef == userRef && user.Status != StatusRemoved {
			return user, nil
		}
	}
	return AdminUser{}, ErrNotFound
}

// CountByRole counts non-removed admin users bound to the role.
func (s *MemoryStore) CountByRole(ctx context.Context, roleID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countByRoleLocked(roleID), nil
}

// List returns matching admin users in insertion order.
func (s *MemoryStore) List(ctx context.Context, filter Filter, page pagination.Page) ([]AdminUser, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]AdminUser, 0, len(s.order))
	for _, id := range s.order {
		user := s.users[id]
		if matchesFilter(user, filter) {
			matched = append(matched, user)
		}
	}

	items, total := pagination.Slice(matched, page)
	return items, total, nil
}

func (s *MemoryStore) countByRoleLocked(roleID uuid.UUID) int {
	count := 0
	for _, user := range s.users {
		if user.RoleID == roleID && user.Status != StatusRemoved {
			count++
		}
	}
	return count
}

func matchesFilter(user AdminUser, f Filter) bool {
	if f.Status != "" {
		if user.Status != f.Status {
			return false
		}
	} else if user.Status == StatusRemoved {
		return false
	}
	if f.RoleID != uuid.Nil && user.RoleID != f.RoleID {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(user.UserRef), strings.ToLower(f.Search)) {
		return false
	}
	return true
}
