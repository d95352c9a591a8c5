package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/feature"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
	"github.com/dmitrymomot/coopkit/pkg/pg"
)

const featureColumns = "id, name, display_name, description, category, platforms, status, enabled, rollout_percentage, config, retired, version, created_at, updated_at"

// FeatureStore is a PostgreSQL-backed feature.Store. Every write commits
// the entity change and its audit entry in one transaction.
type FeatureStore struct {
	pool *pgxpool.Pool
}

// NewFeatureStore creates a feature store over the given pool.
func NewFeatureStore(pool *pgxpool.Pool) *FeatureStore {
	if pool == nil {
		panic("pgstore: pool cannot be nil")
	}
	return &FeatureStore{pool: pool}
}

// Create inserts a new feature together with its audit entry.
func (s *FeatureStore) Create(ctx context.Context, f feature.Feature, entry audit.Entry) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		config, err := json.Marshal(f.Config)
		if err != nil {
			return fmt.Errorf("marshal feature config: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO features (`+featureColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			f.ID, f.Name, f.DisplayName, f.Description, string(f.Category),
			platformStrings(f.Platforms), string(f.Status), f.Enabled,
			f.RolloutPercentage, config, f.Retired, f.Version, f.CreatedAt, f.UpdatedAt,
		)
		if err != nil {
			if pg.IsDuplicateKeyError(err) {
				return feature.ErrNameTaken
			}
			return fmt.Errorf("insert feature: %w", err)
		}

		return appendEntry(ctx, tx, entry)
	})
}

// Update replaces the mutable columns when the stored version matches
// expectedVersion, bumping the version, and writes the audit entry in the
// same transaction.
func (s *FeatureStore) Update(ctx context.Context, f feature.Feature, expectedVersion int64, entry audit.Entry) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		config, err := json.Marshal(f.Config)
		if err != nil {
			return fmt.Errorf("marshal feature config: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE features
			 SET display_name = $1, description = $2, category = $3, platforms = $4,
			     status = $5, enabled = $6, rollout_percentage = $7, config = $8,
			     retired = $9, version = version + 1, updated_at = $10
			 WHERE id = $11 AND version = $12`,
			f.DisplayName, f.Description, string(f.Category), platformStrings(f.Platforms),
			string(f.Status), f.Enabled, f.RolloutPercentage, config,
			f.Retired, f.UpdatedAt, f.ID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update feature: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return s.versionConflict(ctx, tx, f.ID)
		}

		return appendEntry(ctx, tx, entry)
	})
}

// GetByID returns a feature by id.
func (s *FeatureStore) GetByID(ctx context.Context, id uuid.UUID) (feature.Feature, error) {
	return s.get(ctx, "id = $1", id)
}

// GetByName returns a feature by its unique machine key.
func (s *FeatureStore) GetByName(ctx context.Context, name string) (feature.Feature, error) {
	return s.get(ctx, "name = $1", name)
}

// List returns matching features in creation order with the exact total.
func (s *FeatureStore) List(ctx context.Context, filter feature.Filter, page pagination.Page) ([]feature.Feature, int, error) {
	where := make([]string, 0, 6)
	args := make([]any, 0, 8)

	add := func(cond string, vals ...any) {
		placeholders := make([]any, len(vals))
		for i, v := range vals {
			args = append(args, v)
			placeholders[i] = len(args)
		}
		where = append(where, fmt.Sprintf(cond, placeholders...))
	}

	if !filter.IncludeRetired {
		where = append(where, "NOT retired")
	}
	if filter.Category != "" {
		add("category = $%d", string(filter.Category))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if filter.Enabled != nil {
		add("enabled = $%d", *filter.Enabled)
	}
	if filter.Platform != "" {
		add("$%d = ANY(platforms)", string(filter.Platform))
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		add("(name ILIKE $%d OR display_name ILIKE $%d OR description ILIKE $%d)", pattern, pattern, pattern)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM features"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count features: %w", err)
	}

	page = page.Normalize()
	query := fmt.Sprintf(
		"SELECT "+featureColumns+" FROM features%s ORDER BY created_at, id LIMIT $%d OFFSET $%d",
		clause, len(args)+1, len(args)+2,
	)
	args = append(args, page.Limit, page.Offset())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query features: %w", err)
	}
	defer rows.Close()

	features := make([]feature.Feature, 0, page.Limit)
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, 0, err
		}
		features = append(features, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate features: %w", err)
	}

	return features, total, nil
}

func (s *FeatureStore) get(ctx context.Context, cond string, arg any) (feature.Feature, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+featureColumns+" FROM features WHERE "+cond, arg)
	if err != nil {
		return feature.Feature{}, fmt.Errorf("query feature: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return feature.Feature{}, fmt.Errorf("query feature: %w", err)
		}
		return feature.Feature{}, feature.ErrNotFound
	}
	return scanFeature(rows)
}

// versionConflict distinguishes a stale version from a missing row after a
// zero-row UPDATE.
func (s *FeatureStore) versionConflict(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM features WHERE id = $1)", id).Scan(&exists); err != nil {
		return fmt.Errorf("check feature existence: %w", err)
	}
	if !exists {
		return feature.ErrNotFound
	}
	return feature.ErrVersionMismatch
}

func scanFeature(rows pgx.Rows) (feature.Feature, error) {
	var (
		f         feature.Feature
		category  string
		platforms []string
		status    string
		config    []byte
	)
	if err := rows.Scan(
		&f.ID, &f.Name, &f.DisplayName, &f.Description, &category,
		&platforms, &status, &f.Enabled, &f.RolloutPercentage, &config,
		&f.Retired, &f.Version, &f.CreatedAt, &f.UpdatedAt,
	); err != nil {
		return feature.Feature{}, fmt.Errorf("scan feature: %w", err)
	}

	f.Category = feature.Category(category)
	f.Status = feature.Status(status)
	f.Platforms = make([]feature.Platform, len(platforms))
	for i, p := range platforms {
		f.Platforms[i] = feature.Platform(p)
	}
	if err := json.Unmarshal(config, &f.Config); err != nil {
		return feature.Feature{}, fmt.Errorf("unmarshal feature config: %w", err)
	}
	return f, nil
}

func platformStrings(platforms []feature.Platform) []string {
	out := make([]string, len(platforms))
	for i, p := range platforms {
		out[i] = string(p)
	}
	return out
}
