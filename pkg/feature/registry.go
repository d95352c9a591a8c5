package feature

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
	"github.com/dmitrymomot/coopkit/pkg/permissions"
)

// Audit actions written by the registry.
const (
	ActionCreated        = "created"
	ActionUpdated        = "updated"
	ActionEnabled        = "enabled"
	ActionDisabled       = "disabled"
	ActionRolloutUpdated = "rollout_updated"
	ActionConfigUpdated  = "config_updated"
	ActionRetired        = "retired"
)

// Authorizer gates mutating registry operations. Satisfied by rbac.Service.
type Authorizer interface {
	Authorize(ctx context.Context, actor, permission string) error
}

// Source is the read side used by the evaluation path. Store satisfies it
// directly; Cache wraps a Store with a Redis snapshot layer.
type Source interface {
	GetByName(ctx context.Context, name string) (Feature, error)
}

// Invalidator drops a cached snapshot after a mutation so evaluation
// observes writes immediately (read-your-writes).
type Invalidator interface {
	Invalidate(ctx context.Context, name string) error
}

// Registry owns feature records: every mutation is authorized, validated,
// written with optimistic concurrency, and paired with exactly one audit
// entry. The evaluation path (IsEnabled) bypasses authorization entirely
// and only ever reads a feature snapshot.
type Registry struct {
	store       Store
	trail       *audit.Reader
	authz       Authorizer
	source      Source
	invalidator Invalidator
	log         *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for internal storage failure details.
func WithLogger(log *slog.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// WithCache routes the evaluation read path through the given cache and
// registers it for invalidation on every mutation.
func WithCache(c *Cache) Option {
	return func(r *Registry) {
		if c != nil {
			r.source = c
			r.invalidator = c
		}
	}
}

// NewRegistry creates a feature registry over the given store, audit
// reader, and authorizer.
func NewRegistry(store Store, trail *audit.Reader, authz Authorizer, opts ...Option) *Registry {
	if store == nil {
		panic("feature: store cannot be nil")
	}
	if trail == nil {
		panic("feature: audit reader cannot be nil")
	}
	if authz == nil {
		panic("feature: authorizer cannot be nil")
	}

	r := &Registry{
		store:  store,
		trail:  trail,
		authz:  authz,
		source: store,
		log:    slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// CreateInput describes a new feature. Enabled defaults to false and Status
// to planning unless set explicitly.
type CreateInput struct {
	Name              string
	DisplayName       string
	Description       string
	Category          Category
	Platforms         []Platform
	Status            Status
	Enabled           bool
	RolloutPercentage int
	Config            map[string]ConfigValue
}

// Create validates the input and inserts a new feature, writing a "created"
// audit entry in the same transaction.
func (r *Registry) Create(ctx context.Context, actor string, in CreateInput) (Feature, error) {
	if err := r.authorize(ctx, actor); err != nil {
		return Feature{}, err
	}

	if in.Status == "" {
		in.Status = StatusPlanning
	}
	if in.Category == "" {
		in.Category = CategoryOther
	}

	now := time.Now().UTC()
	f := Feature{
		ID:                uuid.New(),
		Name:              in.Name,
		DisplayName:       in.DisplayName,
		Description:       in.Description,
		Category:          in.Category,
		Platforms:         slices.Clone(in.Platforms),
		Status:            in.Status,
		Enabled:           in.Enabled,
		RolloutPercentage: in.RolloutPercentage,
		Config:            maps.Clone(in.Config),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := f.Validate(); err != nil {
		return Feature{}, err
	}

	entry := audit.NewEntry(audit.EntityFeature, f.ID, ActionCreated, actor, audit.Changes{
		"name":               {New: f.Name},
		"category":           {New: f.Category},
		"platforms":          {New: f.Platforms},
		"status":             {New: f.Status},
		"enabled":            {New: f.Enabled},
		"rollout_percentage": {New: f.RolloutPercentage},
	})
	if err := r.store.Create(ctx, f, entry); err != nil {
		return Feature{}, r.storeErr(ctx, "create", err)
	}

	return f, nil
}

// Get returns a feature by id, retired or not.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (Feature, error) {
	f, err := r.store.GetByID(ctx, id)
	if err != nil {
		return Feature{}, r.storeErr(ctx, "get", err)
	}
	return f, nil
}

// GetByName returns a feature by its machine key.
func (r *Registry) GetByName(ctx context.Context, name string) (Feature, error) {
	f, err := r.store.GetByName(ctx, name)
	if err != nil {
		return Feature{}, r.storeErr(ctx, "get_by_name", err)
	}
	return f, nil
}

// UpdateInput is a partial update of the mutable feature fields. The
// machine key (Name) is deliberately absent: it is immutable after
// creation. Nil fields are left unchanged.
type UpdateInput struct {
	DisplayName *string
	Description *string
	Category    *Category
	Platforms   []Platform
	Status      *Status
}

// Update applies a partial update. When no field actually changes, the call
// is a no-op and no audit entry is written, keeping the trail meaningful.
func (r *Registry) Update(ctx context.Context, actor string, id uuid.UUID, in UpdateInput) (Feature, error) {
	if err := r.authorize(ctx, actor); err != nil {
		return Feature{}, err
	}

	f, err := r.store.GetByID(ctx, id)
	if err != nil {
		return Feature{}, r.storeErr(ctx, "update", err)
	}

	changes := audit.Changes{}
	if in.DisplayName != nil && *in.DisplayName != f.DisplayName {
		changes["display_name"] = audit.Change{Old: f.DisplayName, New: *in.DisplayName}
		f.DisplayName = *in.DisplayName
	}
	if in.Description != nil && *in.Description != f.Description {
		changes["description"] = audit.Change{Old: f.Description, New: *in.Description}
		f.Description = *in.Description
	}
	if in.Category != nil && *in.Category != f.Category {
		changes["category"] = audit.Change{Old: f.Category, New: *in.Category}
		f.Category = *in.Category
	}
	if in.Platforms != nil && !slices.Equal(in.Platforms, f.Platforms) {
		changes["platforms"] = audit.Change{Old: f.Platforms, New: in.Platforms}
		f.Platforms = slices.Clone(in.Platforms)
	}
	if in.Status != nil && *in.Status != f.Status {
		changes["status"] = audit.Change{Old: f.Status, New: *in.Status}
		f.Status = *in.Status
	}

	if len(changes) == 0 {
		return f, nil
	}
	if err := f.Validate(); err != nil {
		return Feature{}, err
	}

	return r.commit(ctx, f, audit.NewEntry(audit.EntityFeature, f.ID, ActionUpdated, actor, changes))
}

// Enable turns the master switch on. Enabling an already-enabled feature is
// a no-op without an audit write.
func (r *Registry) Enable(ctx context.Context, actor string, id uuid.UUID) (Feature, error) {
	return r.setEnabled(ctx, actor, id, true)
}

// Disable turns the master switch off; the feature is then off for
// everyone regardless of rollout percentage or platform.
func (r *Registry) Disable(ctx context.Context, actor string, id uuid.UUID) (Feature, error) {
	return r.setEnabled(ctx, actor, id, false)
}

// Toggle flips the master switch.
func (r *Registry) Toggle(ctx context.Context, actor string, id uuid.UUID) (Feature, error) {
	if err := r.authorize(ctx, actor); err != nil {
		return Feature{}, err
	}

	f, err := r.store.GetByID(ctx, id)
	if err != nil {
		return Feature{}, r.storeErr(ctx, "toggle", err)
	}

	return r.applyEnabled(ctx, actor, f, !f.Enabled)
}

func (r *Registry) setEnabled(ctx context.Context, actor string, id uuid.UUID, enabled bool) (Feature, error) {
	if err := r.authorize(ctx, actor); err != nil {
		return Feature{}, err
	}

	f, err := r.store.GetByID(ctx, id)
	if err != nil {
		return Feature{}, r.storeErr(ctx, "set_enabled", err)
	}
	if f.Enabled == enabled {
		return f, nil
	}

	return r.applyEnabled(ctx, actor, f, enabled)
}

func (r *Registry) applyEnabled(ctx context.Context, actor string, f Feature, enabled bool) (Feature, error) {
	action := ActionDisabled
	if enabled {
		action = ActionEnabled
	}

	entry := audit.NewEntry(audit.EntityFeature, f.ID, action, actor, audit.Changes{
		"enabled": {Old: f.Enabled, New: enabled},
	})
	f.Enabled = enabled

	return r.commit(ctx, f, entry)
}

// UpdateRollout sets the rollout percentage, validating the [0,100] range.
func (r *Registry) UpdateRollout(ctx context.Context, actor string, id uuid.UUID, percentage int) (Feature, error) {
	if err := r.authorize(ctx, actor); err != nil {
		return Feature{}, err
	}
	if percentage < 0 || percentage > 100 {
		return Feature{}, errors.Join(ErrValidation,
			errors.New("rollout percentage out of range [0,100]"))
	}

	f, err := r.store.GetByID(ctx, id)
	if err != nil {
		return Feature{}, r.storeErr(ctx, "update_rollout", err)
	}
	if f.RolloutPercentage == percentage {
		return f, nil
	}

	entry := audit.NewEntry(audit.EntityFeature, f.ID, ActionRolloutUpdated, actor, audit.Changes{
		"rollout_percentage": {Old: f.RolloutPercentage, New: percentage},
	})
	f.RolloutPercentage = percentage

	return r.commit(ctx, f, entry)
}

// UpdateConfig merges the patch into the feature config: unknown keys are
// added, existing keys overwritten. The audit diff lists exactly the keys
// whose value actually changed.
func (r *Registry) UpdateConfig(ctx context.Context, actor string, id uuid.UUID, patch map[string]ConfigValue) (Feature, error) {
	if err := r.authorize(ctx, actor); err != nil {
		return Feature{}, err
	}
	for key, value := range patch {
		if key == "" {
			return Feature{}, errors.Join(ErrValidation, errors.New("config key cannot be empty"))
		}
		if err := value.Validate(); err != nil {
			return Feature{}, err
		}
	}

	f, err := r.store.GetByID(ctx, id)
	if err != nil {
		return Feature{}, r.storeErr(ctx, "update_config", err)
	}

	changes := audit.Changes{}
	for key, value := range patch {
		old, exists := f.Config[key]
		if exists && old.Equal(value) {
			continue
		}

		change := audit.Change{New: value.Value()}
		if exists {
			change.Old = old.Value()
		}
		changes["config."+key] = change

		if f.Config == nil {
			f.Config = make(map[string]ConfigValue, len(patch))
		}
		f.Config[key] = value
	}

	if len(changes) == 0 {
		return f, nil
	}

	return r.commit(ctx, f, audit.NewEntry(audit.EntityFeature, f.ID, ActionConfigUpdated, actor, changes))
}

// Retire marks the feature as logically deleted. The record and its audit
// trail are retained; evaluation always yields "off" afterwards. Retiring
// an already-retired feature is a no-op.
func (r *Registry) Retire(ctx context.Context, actor string, id uuid.UUID) (Feature, error) {
	if err := r.authorize(ctx, actor); err != nil {
		return Feature{}, err
	}

	f, err := r.store.GetByID(ctx, id)
	if err != nil {
		return Feature{}, r.storeErr(ctx, "retire", err)
	}
	if f.Retired {
		return f, nil
	}

	entry := audit.NewEntry(audit.EntityFeature, f.ID, ActionRetired, actor, audit.Changes{
		"retired": {Old: false, New: true},
	})
	f.Retired = true

	return r.commit(ctx, f, entry)
}

// List returns a page of features matching the filter, in insertion order,
// with the exact total count. Reads are unrestricted.
func (r *Registry) List(ctx context.Context, filter Filter, page pagination.Page) (pagination.Result[Feature], error) {
	page = page.Normalize()
	items, total, err := r.store.List(ctx, filter, page)
	if err != nil {
		return pagination.Result[Feature]{}, r.storeErr(ctx, "list", err)
	}
	return pagination.NewResult(items, total, page), nil
}

// Changelog returns the audit trail for a feature, most recent first.
func (r *Registry) Changelog(ctx context.Context, id uuid.UUID, page pagination.Page) (pagination.Result[audit.Entry], error) {
	if _, err := r.store.GetByID(ctx, id); err != nil {
		return pagination.Result[audit.Entry]{}, r.storeErr(ctx, "changelog", err)
	}
	return r.trail.Changelog(ctx, audit.EntityFeature, id, page)
}

// IsEnabled is the hot read path: it resolves the feature snapshot by name
// and evaluates it for the identity. No authorization, no locks, no
// configuration values leaked: just the boolean decision.
func (r *Registry) IsEnabled(ctx context.Context, name string, platform Platform, targetKey string) (bool, error) {
	f, err := r.source.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, ErrNotFound
		}
		return false, r.storeErr(ctx, "is_enabled", err)
	}
	return Evaluate(f, platform, targetKey), nil
}

// commit writes the feature with a version check, pairs it with the audit
// entry, and invalidates any cached snapshot on success.
func (r *Registry) commit(ctx context.Context, f Feature, entry audit.Entry) (Feature, error) {
	f.UpdatedAt = time.Now().UTC()

	if err := r.store.Update(ctx, f, f.Version, entry); err != nil {
		return Feature{}, r.storeErr(ctx, "commit", err)
	}
	f.Version++

	if r.invalidator != nil {
		if err := r.invalidator.Invalidate(ctx, f.Name); err != nil {
			// Stale reads self-heal when the cache TTL expires; the write
			// itself already succeeded.
			r.log.WarnContext(ctx, "feature cache invalidation failed",
				"feature", f.Name, "error", err)
		}
	}

	return f, nil
}

func (r *Registry) authorize(ctx context.Context, actor string) error {
	if actor == "" {
		return errors.Join(ErrValidation, errors.New("actor is required"))
	}
	return r.authz.Authorize(ctx, actor, permissions.ManageFeatures)
}

// storeErr passes through the domain sentinels and converts anything else
// into a generic storage failure, logging the cause internally.
func (r *Registry) storeErr(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrNameTaken),
		errors.Is(err, ErrVersionMismatch),
		errors.Is(err, ErrValidation):
		return err
	}
	r.log.ErrorContext(ctx, "feature store operation failed", "op", op, "error", err)
	return errors.Join(ErrStorageFailure, errors.New(op))
}
