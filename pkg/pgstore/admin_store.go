package pgstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/coopkit/pkg/admins"
	"github.com/dmitrymomot/coopkit/pkg/audit"
	"github.com/dmitrymomot/coopkit/pkg/pagination"
	"github.com/dmitrymomot/coopkit/pkg/pg"
	"github.com/dmitrymomot/coopkit/pkg/rbac"
)

const adminColumns = "id, user_ref, role_id, status, assigned_by, version, created_at, updated_at"

// AdminStore is a PostgreSQL-backed admins.Store. Every write commits the
// record change and its audit entry in one transaction; role capacity is
// enforced under a row lock on the role so concurrent assignments cannot
// overshoot maxAdmins.
type AdminStore struct {
	pool *pgxpool.Pool
}

// NewAdminStore creates an admin user store over the given pool.
func NewAdminStore(pool *pgxpool.Pool) *AdminStore {
	if pool == nil {
		panic("pgstore: pool cannot be nil")
	}
	return &AdminStore{pool: pool}
}

// Create inserts a new admin user together with its audit entry. The
// partial unique index on user_ref enforces the one-assignment rule.
func (s *AdminStore) Create(ctx context.Context, user admins.AdminUser, capacity int, entry audit.Entry) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.reserveCapacity(ctx, tx, user.RoleID, capacity); err != nil {
			return err
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO admin_users (`+adminColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			user.ID, user.UserRef, user.RoleID, string(user.Status), user.AssignedBy,
			user.Version, user.CreatedAt, user.UpdatedAt,
		)
		if err != nil {
			if pg.IsDuplicateKeyError(err) {
				return admins.ErrAlreadyAssigned
			}
			return fmt.Errorf("insert admin user: %w", err)
		}

		return appendEntry(ctx, tx, entry)
	})
}

// Update replaces the stored record when the version matches. Capacity is
// checked only when the role reference actually changes.
func (s *AdminStore) Update(ctx context.Context, user admins.AdminUser, expectedVersion int64, capacity int, entry audit.Entry) error {
	return withTx(ctx, s.pool, func(tx pgx.Tx) error {
		var currentRole uuid.UUID
		err := tx.QueryRow(ctx, "SELECT role_id FROM admin_users WHERE id = $1 FOR UPDATE", user.ID).Scan(&currentRole)
		if err != nil {
			if pg.IsNotFoundError(err) {
				return admins.ErrNotFound
			}
			return fmt.Errorf("lock admin user: %w", err)
		}

		if currentRole != user.RoleID && user.Status != admins.StatusRemoved {
			if err := s.reserveCapacity(ctx, tx, user.RoleID, capacity); err != nil {
				return err
			}
		}

		tag, err := tx.Exec(ctx,
			`UPDATE admin_users
			 SET role_id = $1, status = $2, version = version + 1, updated_at = $3
			 WHERE id = $4 AND version = $5`,
			user.RoleID, string(user.Status), user.UpdatedAt, user.ID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("update admin user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return admins.ErrVersionMismatch
		}

		return appendEntry(ctx, tx, entry)
	})
}

// GetByID returns an admin user record, including removed ones.
func (s *AdminStore) GetByID(ctx context.Context, id uuid.UUID) (admins.AdminUser, error) {
	return s.get(ctx, "id = $1", id)
}

// GetByUserRef resolves a person to their current non-removed assignment.
func (s *AdminStore) GetByUserRef(ctx context.Context, userRef string) (admins.AdminUser, error) {
	return s.get(ctx, "user_ref = $1 AND status <> 'removed'", userRef)
}

// CountByRole counts non-removed admin users bound to the role.
func (s *AdminStore) CountByRole(ctx context.Context, roleID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		"SELECT count(*) FROM admin_users WHERE role_id = $1 AND status <> 'removed'", roleID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count admin users: %w", err)
	}
	return count, nil
}

// List returns matching admin users in creation order with the exact
// total. Removed records appear only when the filter asks for them.
func (s *AdminStore) List(ctx context.Context, filter admins.Filter, page pagination.Page) ([]admins.AdminUser, int, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 5)

	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	} else {
		where = append(where, "status <> 'removed'")
	}
	if filter.RoleID != uuid.Nil {
		add("role_id = $%d", filter.RoleID)
	}
	if filter.Search != "" {
		add("user_ref ILIKE $%d", "%"+filter.Search+"%")
	}

	clause := " WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM admin_users"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count admin users: %w", err)
	}

	page = page.Normalize()
	query := fmt.Sprintf(
		"SELECT "+adminColumns+" FROM admin_users%s ORDER BY created_at, id LIMIT $%d OFFSET $%d",
		clause, len(args)+1, len(args)+2,
	)
	args = append(args, page.Limit, page.Offset())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query admin users: %w", err)
	}
	defer rows.Close()

	users := make([]admins.AdminUser, 0, page.Limit)
	for rows.Next() {
		user, err := scanAdminUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate admin users: %w", err)
	}

	return users, total, nil
}

// reserveCapacity locks the role row and verifies the maxAdmins cap before
// the caller inserts or moves an assignment. The lock serializes
// assignments per role for the rest of the transaction.
func (s *AdminStore) reserveCapacity(ctx context.Context, tx pgx.Tx, roleID uuid.UUID, capacity int) error {
	if capacity == rbac.UnlimitedAdmins {
		return nil
	}

	var locked uuid.UUID
	if err := tx.QueryRow(ctx, "SELECT id FROM roles WHERE id = $1 FOR UPDATE", roleID).Scan(&locked); err != nil {
		if pg.IsNotFoundError(err) {
			return admins.ErrRoleUnavailable
		}
		return fmt.Errorf("lock role: %w", err)
	}

	var count int
	err := tx.QueryRow(ctx,
		"SELECT count(*) FROM admin_users WHERE role_id = $1 AND status <> 'removed'", roleID,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("count role assignments: %w", err)
	}
	if count >= capacity {
		return admins.ErrRoleCapacityExceeded
	}
	return nil
}

func (s *AdminStore) get(ctx context.Context, cond string, arg any) (admins.AdminUser, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+adminColumns+" FROM admin_users WHERE "+cond, arg)
	if err != nil {
		return admins.AdminUser{}, fmt.Errorf("query admin user: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return admins.AdminUser{}, fmt.Errorf("query admin user: %w", err)
		}
		return admins.AdminUser{}, admins.ErrNotFound
	}
	return scanAdminUser(rows)
}

func scanAdminUser(rows pgx.Rows) (admins.AdminUser, error) {
	var (
		user   admins.AdminUser
		status string
	)
	if err := rows.Scan(
		&user.ID, &user.UserRef, &user.RoleID, &status, &user.AssignedBy,
		&user.Version, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return admins.AdminUser{}, fmt.Errorf("scan admin user: %w", err)
	}
	user.Status = admins.Status(status)
	return user, nil
}
