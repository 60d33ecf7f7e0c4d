package audit

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
)

// Repository stores audit entries. Entries are never updated.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	List(ctx context.Context, filters Filters) ([]Entry, error)
	Count(ctx context.Context, filters Filters) (int, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id          BIGSERIAL PRIMARY KEY,
	actor_id    TEXT NOT NULL,
	action      TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	details     JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_audit_logs_entity ON audit_logs (entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_logs_created_at ON audit_logs (created_at DESC);
`

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the audit table when it is missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Create(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO audit_logs (actor_id, action, entity_type, entity_id, details, created_at)
		VALUES (:actor_id, :action, :entity_type, :entity_id, :details, :created_at)
		RETURNING id
	`
	rows, err := r.db.NamedQueryContext(ctx, query, e)
	if err != nil {
		return fmt.Errorf("failed to create audit log: %w", err)
	}
	defer rows.Close()
	if rows.Next() {
		if err := rows.Scan(&e.ID); err != nil {
			return fmt.Errorf("failed to read audit log id: %w", err)
		}
	}
	return rows.Err()
}

func (r *PostgresRepository) List(ctx context.Context, filters Filters) ([]Entry, error) {
	where, args := whereClause(filters)
	query := `
		SELECT id, actor_id, action, entity_type, entity_id, details, created_at
		FROM audit_logs` + where + `
		ORDER BY created_at DESC, id DESC`
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}
	if filters.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filters.Offset)
	}

	entries := []Entry{}
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to get audit logs: %w", err)
	}
	return entries, nil
}

func (r *PostgresRepository) Count(ctx context.Context, filters Filters) (int, error) {
	where, args := whereClause(filters)
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind("SELECT COUNT(*) FROM audit_logs"+where), args...); err != nil {
		return 0, fmt.Errorf("failed to count audit logs: %w", err)
	}
	return total, nil
}

func whereClause(f Filters) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" = ?")
			args = append(args, value)
		}
	}
	add("actor_id", f.ActorID)
	add("action", f.Action)
	add("entity_type", f.EntityType)
	add("entity_id", f.EntityID)
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// MemoryRepository keeps the trail in process.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, *e)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, filters Filters) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Entry{}
	for _, e := range slices.Backward(r.entries) {
		if matches(e, filters) {
			out = append(out, e)
		}
	}
	if filters.Offset < 0 || filters.Offset >= len(out) {
		return []Entry{}, nil
	}
	out = out[filters.Offset:]
	if filters.Limit > 0 && filters.Limit < len(out) {
		out = out[:filters.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) Count(_ context.Context, filters Filters) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	total := 0
	for _, e := range r.entries {
		if matches(e, filters) {
			total++
		}
	}
	return total, nil
}

func matches(e Entry, f Filters) bool {
	return (f.ActorID == "" || e.ActorID == f.ActorID) &&
		(f.Action == "" || e.Action == f.Action) &&
		(f.EntityType == "" || e.EntityType == f.EntityType) &&
		(f.EntityID == "" || e.EntityID == f.EntityID)
}
