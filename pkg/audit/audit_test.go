package audit_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
)

func TestEntryValidate(t *testing.T) {
	t.Parallel()

	valid := audit.NewEntry(audit.EntityFeature, uuid.New(), "created", "admin-1", nil)
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*audit.Entry)
	}{
		{"missing entity type", func(e *audit.Entry) { e.EntityType = "" }},
		{"missing entity id", func(e *audit.Entry) { e.EntityID = uuid.Nil }},
		{"missing action", func(e *audit.Entry) { e.Action = "" }},
		{"missing actor", func(e *audit.Entry) { e.Actor = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			entry := audit.NewEntry(audit.EntityFeature, uuid.New(), "created", "admin-1", nil)
			tt.mutate(&entry)
			assert.ErrorIs(t, entry.Validate(), audit.ErrEntryValidation)
		})
	}
}

func TestMemoryStorageQueryNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := audit.NewMemoryStorage()
	entityID := uuid.New()

	actions := []string{"created", "enabled", "rollout_updated"}
	for _, action := range actions {
		entry := audit.NewEntry(audit.EntityFeature, entityID, action, "admin-1", nil)
		require.NoError(t, storage.Append(ctx, entry))
	}

	entries, total, err := storage.Query(ctx, audit.Criteria{
		EntityType: audit.EntityFeature,
		EntityID:   entityID,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, entries, 3)
	assert.Equal(t, "rollout_updated", entries[0].Action)
	assert.Equal(t, "enabled", entries[1].Action)
	assert.Equal(t, "created", entries[2].Action)
}

func TestMemoryStorageQueryFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := audit.NewMemoryStorage()
	featureID := uuid.New()
	roleID := uuid.New()

	require.NoError(t, storage.Append(ctx, audit.NewEntry(audit.EntityFeature, featureID, "created", "alice", nil)))
	require.NoError(t, storage.Append(ctx, audit.NewEntry(audit.EntityRole, roleID, "role_created", "bob", nil)))
	require.NoError(t, storage.Append(ctx, audit.NewEntry(audit.EntityFeature, featureID, "enabled", "bob", nil)))

	t.Run("by entity", func(t *testing.T) {
		t.Parallel()
		entries, total, err := storage.Query(ctx, audit.Criteria{
			EntityType: audit.EntityFeature,
			EntityID:   featureID,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Len(t, entries, 2)
	})

	t.Run("by actor", func(t *testing.T) {
		t.Parallel()
		entries, total, err := storage.Query(ctx, audit.Criteria{Actor: "alice"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, entries, 1)
		assert.Equal(t, "created", entries[0].Action)
	})

	t.Run("by action", func(t *testing.T) {
		t.Parallel()
		_, total, err := storage.Query(ctx, audit.Criteria{Action: "enabled"})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})

	t.Run("no match", func(t *testing.T) {
		t.Parallel()
		entries, total, err := storage.Query(ctx, audit.Criteria{Actor: "nobody"})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, entries)
	})
}

func TestMemoryStoragePagination(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := audit.NewMemoryStorage()
	entityID := uuid.New()

	for range 5 {
		require.NoError(t, storage.Append(ctx, audit.NewEntry(audit.EntityFeature, entityID, "updated", "admin-1", nil)))
	}

	entries, total, err := storage.Query(ctx, audit.Criteria{
		EntityID: entityID,
		Page:     pagination.Page{Page: 2, Limit: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, entries, 2)
}

func TestMemoryStorageRejectsInvalidEntry(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	entry := audit.NewEntry(audit.EntityFeature, uuid.New(), "created", "", nil)
	assert.ErrorIs(t, storage.Append(context.Background(), entry), audit.ErrEntryValidation)
}

func TestMemoryStorageCopiesChanges(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := audit.NewMemoryStorage()
	entityID := uuid.New()

	changes := audit.Changes{"enabled": {Old: false, New: true}}
	require.NoError(t, storage.Append(ctx, audit.NewEntry(audit.EntityFeature, entityID, "enabled", "admin-1", changes)))

	changes["enabled"] = audit.Change{Old: true, New: false}

	entries, _, err := storage.Query(ctx, audit.Criteria{EntityID: entityID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.Change{Old: false, New: true}, entries[0].Changes["enabled"])
}

func TestReaderChangelog(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	storage := audit.NewMemoryStorage()
	reader := audit.NewReader(storage)
	entityID := uuid.New()

	require.NoError(t, storage.Append(ctx, audit.NewEntry(audit.EntityFeature, entityID, "created", "admin-1", nil)))
	require.NoError(t, storage.Append(ctx, audit.NewEntry(audit.EntityFeature, entityID, "enabled", "admin-2", nil)))
	require.NoError(t, storage.Append(ctx, audit.NewEntry(audit.EntityFeature, uuid.New(), "created", "admin-1", nil)))

	result, err := reader.Changelog(ctx, audit.EntityFeature, entityID, pagination.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "enabled", result.Items[0].Action)
	assert.Equal(t, "created", result.Items[1].Action)
}
