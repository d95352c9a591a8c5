package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/coopkit/pkg/audit"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, so audit inserts
// can run standalone or inside an entity store transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// AuditStorage is a PostgreSQL-backed audit.Storage. Entity stores in this
// package do not go through Append; they insert entries inside their own
// transactions so the trail write commits atomically with the mutation.
type AuditStorage struct {
	pool *pgxpool.Pool
}

// NewAuditStorage creates an audit trail storage over the given pool.
func NewAuditStorage(pool *pgxpool.Pool) *AuditStorage {
	if pool == nil {
		panic("pgstore: pool cannot be nil")
	}
	return &AuditStorage{pool: pool}
}

// Append inserts a single entry outside any entity mutation.
func (s *AuditStorage) Append(ctx context.Context, entry audit.Entry) error {
	return appendEntry(ctx, s.pool, entry)
}

// Query returns entries matching the criteria, newest first, with the
// exact total count.
func (s *AuditStorage) Query(ctx context.Context, c audit.Criteria) ([]audit.Entry, int, error) {
	where := make([]string, 0, 4)
	args := make([]any, 0, 6)

	add := func(cond string, val any) {
		args = append(args, val)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if c.EntityType != "" {
		add("entity_type = $%d", string(c.EntityType))
	}
	if c.EntityID != uuid.Nil {
		add("entity_id = $%d", c.EntityID)
	}
	if c.Action != "" {
		add("action = $%d", c.Action)
	}
	if c.Actor != "" {
		add("actor = $%d", c.Actor)
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM audit_log"+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	page := c.Page.Normalize()
	query := fmt.Sprintf(
		"SELECT id, entity_type, entity_id, action, actor, changes, created_at FROM audit_log%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		clause, len(args)+1, len(args)+2,
	)
	args = append(args, page.Limit, page.Offset())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]audit.Entry, 0, page.Limit)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, total, nil
}

func appendEntry(ctx context.Context, q querier, entry audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("marshal audit changes: %w", err)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO audit_log (id, entity_type, entity_id, action, actor, changes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, string(entry.EntityType), entry.EntityID, entry.Action, entry.Actor, changes, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func scanEntry(rows pgx.Rows) (audit.Entry, error) {
	var (
		entry      audit.Entry
		entityType string
		changes    []byte
	)
	if err := rows.Scan(&entry.ID, &entityType, &entry.EntityID, &entry.Action, &entry.Actor, &changes, &entry.CreatedAt); err != nil {
		return audit.Entry{}, fmt.Errorf("scan audit entry: %w", err)
	}
	entry.EntityType = audit.EntityType(entityType)
	if err := json.Unmarshal(changes, &entry.Changes); err != nil {
		return audit.Entry{}, fmt.Errorf("unmarshal audit changes: %w", err)
	}
	return entry, nil
}
