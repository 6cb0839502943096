package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry represents a record stored in audit_logs.
type Entry struct {
	AccountID int64          `json:"account_id"`
	ActorID   int64          `json:"actor_id"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entity_id"`
	Meta      map[string]any `json:"meta,omitempty"`
	At        time.Time      `json:"occurred_at"`
}

// Validate checks the fields every entry must carry.
func (e Entry) Validate() error {
	if e.Action == "" || e.Entity == "" || e.EntityID == "" {
		return errors.New("audit entry requires action/entity/entity_id")
	}
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Logger writes entries into audit_logs.
type Logger struct {
	db querier
}

// NewLogger returns a Logger backed by the pool.
func NewLogger(pool *pgxpool.Pool) *Logger {
	return &Logger{db: pool}
}

// Record persists the entry.
func (l *Logger) Record(ctx context.Context, entry Entry) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if err := entry.Validate(); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(entry.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !entry.At.IsZero() {
		at = &entry.At
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (account_id, actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		entry.AccountID, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, metaJSON, at)
	return err
}

// Window returns entries matching the filters, newest first.
func (l *Logger) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]Entry, error) {
	where, args := timelineWhere(filters)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT account_id, actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs WHERE %s ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	return l.query(ctx, query, args...)
}

// All returns every entry matching the filters, oldest first.
func (l *Logger) All(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	where, args := timelineWhere(filters)
	query := `SELECT account_id, actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_logs WHERE ` + where + ` ORDER BY occurred_at, id`
	return l.query(ctx, query, args...)
}

func timelineWhere(f TimelineFilters) (string, []any) {
	clauses := []string{"account_id = $1"}
	args := []any{f.AccountID}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !f.From.IsZero() {
		add("occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("occurred_at < $%d", f.To)
	}
	if f.ActorID > 0 {
		add("actor_id = $%d", f.ActorID)
	}
	if f.Entity != "" {
		add("entity = $%d", f.Entity)
	}
	if f.EntityID != "" {
		add("entity_id = $%d", f.EntityID)
	}
	if f.Action != "" {
		add("action = $%d", f.Action)
	}
	return strings.Join(clauses, " AND "), args
}

func (l *Logger) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	if l == nil || l.db == nil {
		return nil, errors.New("audit logger not initialised")
	}
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Entry{}
	for rows.Next() {
		var (
			entry Entry
			meta  []byte
		)
		if err := rows.Scan(&entry.AccountID, &entry.ActorID, &entry.Action, &entry.Entity, &entry.EntityID, &meta, &entry.At); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &entry.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

var _ Repository = (*Logger)(nil)
