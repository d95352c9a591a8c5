package feature_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/feature"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
)

type authorizerFunc func(ctx context.Context, actor, permission string) error

func (f authorizerFunc) Authorize(ctx context.Context, actor, permission string) error {
	return f(ctx, actor, permission)
}

var errDenied = errors.New("insufficient permissions")

func allowAll() authorizerFunc {
	return func(ctx context.Context, actor, permission string) error { return nil }
}

func denyAll() authorizerFunc {
	return func(ctx context.Context, actor, permission string) error { return errDenied }
}

func newRegistry(t *testing.T, authz feature.Authorizer) (*feature.Registry, *audit.MemoryStorage) {
	t.Helper()
	trail := audit.NewMemoryStorage()
	store := feature.NewMemoryStore(trail)
	return feature.NewRegistry(store, audit.NewReader(trail), authz), trail
}

func createFeature(t *testing.T, r *feature.Registry, name string) feature.Feature {
	t.Helper()
	f, err := r.Create(context.Background(), "admin-1", feature.CreateInput{
		Name:        name,
		DisplayName: name,
		Category:    feature.CategoryLending,
		Platforms:   []feature.Platform{feature.PlatformWeb, feature.PlatformMobile},
	})
	require.NoError(t, err)
	return f
}

func TestRegistryCreate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, trail := newRegistry(t, allowAll())

	f, err := registry.Create(ctx, "admin-1", feature.CreateInput{
		Name:        "new_loan_ui",
		DisplayName: "New Loan UI",
		Category:    feature.CategoryLending,
		Platforms:   []feature.Platform{feature.PlatformWeb},
	})
	require.NoError(t, err)
	assert.Equal(t, "new_loan_ui", f.Name)
	assert.Equal(t, feature.StatusPlanning, f.Status)
	assert.False(t, f.Enabled)
	assert.EqualValues(t, 1, f.Version)

	entries, total, err := trail.Query(ctx, audit.Criteria{EntityID: f.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, feature.ActionCreated, entries[0].Action)
	assert.Equal(t, "admin-1", entries[0].Actor)
}

func TestRegistryCreateDetachesInput(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, _ := newRegistry(t, allowAll())

	in := feature.CreateInput{
		Name:        "isolated",
		DisplayName: "Isolated",
		Category:    feature.CategoryLending,
		Platforms:   []feature.Platform{feature.PlatformWeb},
		Config:      map[string]feature.ConfigValue{"limit": feature.NumberValue(10)},
	}
	f, err := registry.Create(ctx, "admin-1", in)
	require.NoError(t, err)

	// Mutating the caller's input after Create must not reach the
	// returned snapshot or the stored record.
	in.Config["limit"] = feature.NumberValue(99)
	in.Platforms[0] = feature.PlatformMobile

	assert.Equal(t, feature.NumberValue(10), f.Config["limit"])
	assert.Equal(t, feature.PlatformWeb, f.Platforms[0])

	stored, err := registry.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, feature.NumberValue(10), stored.Config["limit"])
}

func TestRegistryCreateNameTaken(t *testing.T) {
	t.Parallel()

	registry, _ := newRegistry(t, allowAll())
	createFeature(t, registry, "dup")

	_, err := registry.Create(context.Background(), "admin-1", feature.CreateInput{
		Name:      "dup",
		Category:  feature.CategoryOther,
		Platforms: []feature.Platform{feature.PlatformWeb},
	})
	assert.ErrorIs(t, err, feature.ErrNameTaken)
}

func TestRegistryCreateValidation(t *testing.T) {
	t.Parallel()

	registry, _ := newRegistry(t, allowAll())
	ctx := context.Background()

	t.Run("missing name", func(t *testing.T) {
		t.Parallel()
		_, err := registry.Create(ctx, "admin-1", feature.CreateInput{
			Platforms: []feature.Platform{feature.PlatformWeb},
		})
		assert.ErrorIs(t, err, feature.ErrValidation)
	})

	t.Run("missing platforms", func(t *testing.T) {
		t.Parallel()
		_, err := registry.Create(ctx, "admin-1", feature.CreateInput{Name: "x"})
		assert.ErrorIs(t, err, feature.ErrValidation)
	})

	t.Run("rollout out of range", func(t *testing.T) {
		t.Parallel()
		_, err := registry.Create(ctx, "admin-1", feature.CreateInput{
			Name:              "x",
			Platforms:         []feature.Platform{feature.PlatformWeb},
			RolloutPercentage: 120,
		})
		assert.ErrorIs(t, err, feature.ErrValidation)
	})
}

func TestRegistryMutationsRequireAuthorization(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	allowed, _ := newRegistry(t, allowAll())
	f := createFeature(t, allowed, "guarded")

	// Same backing state is irrelevant here; a denied actor must not get
	// past any mutating entry point.
	denied, _ := newRegistry(t, denyAll())

	_, err := denied.Create(ctx, "intruder", feature.CreateInput{
		Name:      "nope",
		Platforms: []feature.Platform{feature.PlatformWeb},
	})
	assert.ErrorIs(t, err, errDenied)

	_, err = denied.Enable(ctx, "intruder", f.ID)
	assert.ErrorIs(t, err, errDenied)

	_, err = denied.UpdateRollout(ctx, "intruder", f.ID, 10)
	assert.ErrorIs(t, err, errDenied)

	_, err = denied.Retire(ctx, "intruder", f.ID)
	assert.ErrorIs(t, err, errDenied)
}

func TestRegistryEmptyActor(t *testing.T) {
	t.Parallel()

	registry, _ := newRegistry(t, allowAll())
	_, err := registry.Create(context.Background(), "", feature.CreateInput{
		Name:      "x",
		Platforms: []feature.Platform{feature.PlatformWeb},
	})
	assert.ErrorIs(t, err, feature.ErrValidation)
}

func TestRegistryUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, trail := newRegistry(t, allowAll())
	f := createFeature(t, registry, "update_me")

	display := "Renamed"
	status := feature.StatusTesting
	updated, err := registry.Update(ctx, "admin-2", f.ID, feature.UpdateInput{
		DisplayName: &display,
		Status:      &status,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.DisplayName)
	assert.Equal(t, feature.StatusTesting, updated.Status)
	assert.EqualValues(t, 2, updated.Version)

	entries, _, err := trail.Query(ctx, audit.Criteria{EntityID: f.ID, Action: feature.ActionUpdated})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Changes, "display_name")
	assert.Contains(t, entries[0].Changes, "status")
	assert.NotContains(t, entries[0].Changes, "description")
}

func TestRegistryUpdateNoChangeSkipsAudit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, trail := newRegistry(t, allowAll())
	f := createFeature(t, registry, "same")

	display := f.DisplayName
	updated, err := registry.Update(ctx, "admin-1", f.ID, feature.UpdateInput{DisplayName: &display})
	require.NoError(t, err)
	assert.Equal(t, f.Version, updated.Version)

	_, total, err := trail.Query(ctx, audit.Criteria{EntityID: f.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, total) // only the creation entry
}

func TestRegistryEnableDisableToggle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, trail := newRegistry(t, allowAll())
	f := createFeature(t, registry, "switch")

	enabled, err := registry.Enable(ctx, "admin-1", f.ID)
	require.NoError(t, err)
	assert.True(t, enabled.Enabled)

	// Enabling again is a no-op without a second audit entry.
	again, err := registry.Enable(ctx, "admin-1", f.ID)
	require.NoError(t, err)
	assert.Equal(t, enabled.Version, again.Version)

	_, total, err := trail.Query(ctx, audit.Criteria{EntityID: f.ID, Action: feature.ActionEnabled})
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	toggled, err := registry.Toggle(ctx, "admin-1", f.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Enabled)

	entries, _, err := trail.Query(ctx, audit.Criteria{EntityID: f.ID, Action: feature.ActionDisabled})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.Change{Old: true, New: false}, entries[0].Changes["enabled"])
}

func TestRegistryUpdateRollout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, trail := newRegistry(t, allowAll())
	f := createFeature(t, registry, "gradual")

	updated, err := registry.UpdateRollout(ctx, "admin-1", f.ID, 25)
	require.NoError(t, err)
	assert.Equal(t, 25, updated.RolloutPercentage)

	_, err = registry.UpdateRollout(ctx, "admin-1", f.ID, 101)
	assert.ErrorIs(t, err, feature.ErrValidation)

	_, err = registry.UpdateRollout(ctx, "admin-1", f.ID, -1)
	assert.ErrorIs(t, err, feature.ErrValidation)

	// Same value is a no-op without a second audit entry.
	_, err = registry.UpdateRollout(ctx, "admin-1", f.ID, 25)
	require.NoError(t, err)

	_, total, err := trail.Query(ctx, audit.Criteria{EntityID: f.ID, Action: feature.ActionRolloutUpdated})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestRegistryUpdateConfig(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, trail := newRegistry(t, allowAll())
	f := createFeature(t, registry, "configurable")

	updated, err := registry.UpdateConfig(ctx, "admin-1", f.ID, map[string]feature.ConfigValue{
		"max_amount": feature.NumberValue(5000),
		"banner":     feature.StringValue("hello"),
	})
	require.NoError(t, err)
	assert.Len(t, updated.Config, 2)

	// Patch one key with a new value, one with the same value.
	updated, err = registry.UpdateConfig(ctx, "admin-1", f.ID, map[string]feature.ConfigValue{
		"max_amount": feature.NumberValue(9000),
		"banner":     feature.StringValue("hello"),
	})
	require.NoError(t, err)

	entries, _, err := trail.Query(ctx, audit.Criteria{EntityID: f.ID, Action: feature.ActionConfigUpdated})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// The newest diff lists only the key whose value actually changed.
	latest := entries[0]
	require.Len(t, latest.Changes, 1)
	assert.Equal(t, audit.Change{Old: float64(5000), New: float64(9000)}, latest.Changes["config.max_amount"])

	// Merging preserves untouched keys.
	got, err := registry.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, feature.StringValue("hello"), got.Config["banner"])
}

func TestRegistryRetire(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, trail := newRegistry(t, allowAll())
	f := createFeature(t, registry, "sunset")

	_, err := registry.Enable(ctx, "admin-1", f.ID)
	require.NoError(t, err)

	retired, err := registry.Retire(ctx, "admin-1", f.ID)
	require.NoError(t, err)
	assert.True(t, retired.Retired)

	// Evaluation is off after retirement even though Enabled is true.
	on, err := registry.IsEnabled(ctx, "sunset", feature.PlatformWeb, "user-1")
	require.NoError(t, err)
	assert.False(t, on)

	// Record and trail are retained.
	got, err := registry.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, got.Enabled)

	// Retiring again is a no-op.
	_, err = registry.Retire(ctx, "admin-1", f.ID)
	require.NoError(t, err)
	_, total, err := trail.Query(ctx, audit.Criteria{EntityID: f.ID, Action: feature.ActionRetired})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestRegistryList(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, _ := newRegistry(t, allowAll())

	a := createFeature(t, registry, "alpha")
	createFeature(t, registry, "beta")
	_, err := registry.Enable(ctx, "admin-1", a.ID)
	require.NoError(t, err)

	t.Run("all", func(t *testing.T) {
		t.Parallel()
		result, err := registry.List(ctx, feature.Filter{}, pagination.Page{})
		require.NoError(t, err)
		assert.Equal(t, 2, result.Total)
	})

	t.Run("by enabled", func(t *testing.T) {
		t.Parallel()
		enabled := true
		result, err := registry.List(ctx, feature.Filter{Enabled: &enabled}, pagination.Page{})
		require.NoError(t, err)
		require.Equal(t, 1, result.Total)
		assert.Equal(t, "alpha", result.Items[0].Name)
	})

	t.Run("search", func(t *testing.T) {
		t.Parallel()
		result, err := registry.List(ctx, feature.Filter{Search: "BET"}, pagination.Page{})
		require.NoError(t, err)
		require.Equal(t, 1, result.Total)
		assert.Equal(t, "beta", result.Items[0].Name)
	})
}

func TestRegistryListExcludesRetired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, _ := newRegistry(t, allowAll())

	f := createFeature(t, registry, "gone")
	createFeature(t, registry, "here")
	_, err := registry.Retire(ctx, "admin-1", f.ID)
	require.NoError(t, err)

	result, err := registry.List(ctx, feature.Filter{}, pagination.Page{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)

	result, err = registry.List(ctx, feature.Filter{IncludeRetired: true}, pagination.Page{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
}

func TestRegistryChangelogSequence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, _ := newRegistry(t, allowAll())

	f, err := registry.Create(ctx, "admin-1", feature.CreateInput{
		Name:      "new_loan_ui",
		Category:  feature.CategoryLending,
		Platforms: []feature.Platform{feature.PlatformWeb},
	})
	require.NoError(t, err)

	_, err = registry.Enable(ctx, "admin-1", f.ID)
	require.NoError(t, err)
	_, err = registry.UpdateRollout(ctx, "admin-2", f.ID, 25)
	require.NoError(t, err)
	_, err = registry.UpdateRollout(ctx, "admin-2", f.ID, 75)
	require.NoError(t, err)

	log, err := registry.Changelog(ctx, f.ID, pagination.Page{})
	require.NoError(t, err)
	assert.Equal(t, 4, log.Total)
	require.Len(t, log.Items, 4)

	assert.Equal(t, feature.ActionRolloutUpdated, log.Items[0].Action)
	assert.Equal(t, audit.Change{Old: 25, New: 75}, log.Items[0].Changes["rollout_percentage"])
	assert.Equal(t, feature.ActionRolloutUpdated, log.Items[1].Action)
	assert.Equal(t, audit.Change{Old: 0, New: 25}, log.Items[1].Changes["rollout_percentage"])
	assert.Equal(t, feature.ActionEnabled, log.Items[2].Action)
	assert.Equal(t, feature.ActionCreated, log.Items[3].Action)
	assert.Equal(t, "admin-2", log.Items[0].Actor)
	assert.Equal(t, "admin-1", log.Items[3].Actor)
}

func TestRegistryChangelogUnknownFeature(t *testing.T) {
	t.Parallel()

	registry, _ := newRegistry(t, allowAll())
	_, err := registry.Changelog(context.Background(), uuid.New(), pagination.Page{})
	assert.ErrorIs(t, err, feature.ErrNotFound)
}

func TestRegistryIsEnabled(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry, _ := newRegistry(t, allowAll())

	f, err := registry.Create(ctx, "admin-1", feature.CreateInput{
		Name:              "flag",
		DisplayName:       "flag",
		Category:          feature.CategoryLending,
		Platforms:         []feature.Platform{feature.PlatformWeb},
		RolloutPercentage: 100,
	})
	require.NoError(t, err)

	_, err = registry.Enable(ctx, "admin-1", f.ID)
	require.NoError(t, err)

	on, err := registry.IsEnabled(ctx, "flag", feature.PlatformWeb, "user-1")
	require.NoError(t, err)
	assert.True(t, on)

	// Dropping the rollout to zero turns the flag off for everyone even
	// though the master switch stays on.
	_, err = registry.UpdateRollout(ctx, "admin-1", f.ID, 0)
	require.NoError(t, err)
	on, err = registry.IsEnabled(ctx, "flag", feature.PlatformWeb, "user-1")
	require.NoError(t, err)
	assert.False(t, on)

	_, err = registry.IsEnabled(ctx, "missing", feature.PlatformWeb, "user-1")
	assert.ErrorIs(t, err, feature.ErrNotFound)
}
