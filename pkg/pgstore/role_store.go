package pgstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
	"github.com/dmitrymomot/coopkit/pkg/pg"
	"github.com/dmitrymomot/coopkit/pkg/rbac"
)

const roleColumns = "id, name, display_name, description, level, permissions, is_active, max_admins, version, created_at, updated_at"

// RoleStore is a PostgreSQL-backed rbac.Store. Every write commits the
// role change and its audit entry in one transaction.
type RoleStore struct {
	pool *pgxpool.Pool
}

// NewRoleStore creates a role store over the given pool.
func NewRoleStore(pool *pgxpool.Pool) *RoleStore {
	if pool == nil {
		panic("pgstore: pool cannot be nil")
	}
	return &RoleStore{pool: pool}
}

// Create inserts a new role together with its audit entry.
func (s *RoleStore) Create(ctx context.Context, role rbac.Role, entry audit.Entry) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO roles (`+roleColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			role.ID, role.Name, role.DisplayName, role.Description, role.Level,
			role.Permissions, role.IsActive, role.MaxAdmins, role.Version,
			role.CreatedAt, role.UpdatedAt,
		)
		if err != nil {
			if pg.IsDuplicateKeyError(err) {
				return rbac.ErrRoleNameTaken
			}
			return fmt.Errorf("insert role: %w", err)
		}

		return appendEntry(ctx, tx, entry)
	})
}

// Update replaces the mutable columns when the stored version matches
// expectedVersion and writes the audit entry in the same transaction.
func (s *RoleStore) Update(ctx context.Context, role rbac.Role, expectedVersion int64, entry audit.Entry) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE roles
			 SET display_name = $1, description = $2, permissions = $3, is_active = $4,
			     max_admins = $5, version = version + 1, updated_at = $6
			 WHERE id = $7 AND version = $8`,
			role.DisplayName, role.Description, role.Permissions, role.IsActive,
			role.MaxAdmins, role.UpdatedAt, role.ID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return s.versionConflict(ctx, tx, role.ID)
		}

		return appendEntry(ctx, tx, entry)
	})
}

// Delete removes a role when the stored version matches expectedVersion
// and writes the audit entry in the same transaction. The foreign key from
// admin_users backs up the service-level assignee guard.
func (s *RoleStore) Delete(ctx context.Context, id uuid.UUID, expectedVersion int64, entry audit.Entry) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM roles WHERE id = $1 AND version = $2", id, expectedVersion)
		if err != nil {
			if pg.IsForeignKeyViolationError(err) {
				return rbac.ErrRoleInUse
			}
			return fmt.Errorf("delete role: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return s.versionConflict(ctx, tx, id)
		}

		return appendEntry(ctx, tx, entry)
	})
}

// GetByID returns a role by id.
func (s *RoleStore) GetByID(ctx context.Context, id uuid.UUID) (rbac.Role, error) {
	return s.get(ctx, "id = $1", id)
}

// GetByName returns a role by its unique machine key.
func (s *RoleStore) GetByName(ctx context.Context, name string) (rbac.Role, error) {
	return s.get(ctx, "name = $1", name)
}

// List returns roles ordered by level, then name, with the exact total.
func (s *RoleStore) List(ctx context.Context, page pagination.Page) ([]rbac.Role, int, error) {
	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM roles").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count roles: %w", err)
	}

	page = page.Normalize()
	rows, err := s.pool.Query(ctx,
		"SELECT "+roleColumns+" FROM roles ORDER BY level, name LIMIT $1 OFFSET $2",
		page.Limit, page.Offset(),
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	roles := make([]rbac.Role, 0, page.Limit)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate roles: %w", err)
	}

	return roles, total, nil
}

func (s *RoleStore) get(ctx context.Context, cond string, arg any) (rbac.Role, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+roleColumns+" FROM roles WHERE "+cond, arg)
	if err != nil {
		return rbac.Role{}, fmt.Errorf("query role: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return rbac.Role{}, fmt.Errorf("query role: %w", err)
		}
		return rbac.Role{}, rbac.ErrRoleNotFound
	}
	return scanRole(rows)
}

func (s *RoleStore) versionConflict(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	var exists bool
	if err := tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)", id).Scan(&exists); err != nil {
		return fmt.Errorf("check role existence: %w", err)
	}
	if !exists {
		return rbac.ErrRoleNotFound
	}
	return rbac.ErrVersionMismatch
}

func scanRole(rows pgx.Rows) (rbac.Role, error) {
	var role rbac.Role
	if err := rows.Scan(
		&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.Level,
		&role.Permissions, &role.IsActive, &role.MaxAdmins, &role.Version,
		&role.CreatedAt, &role.UpdatedAt,
	); err != nil {
		return rbac.Role{}, fmt.Errorf("scan role: %w", err)
	}
	return role, nil
}

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
