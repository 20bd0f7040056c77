// Package audit records completed delivery attempts in SQLite for
// querying delivery history.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DeliveryLog represents one completed delivery attempt, successful or not.
type DeliveryLog struct {
	ID         string    `json:"id"`
	TargetName string    `json:"target_name"`
	Protocol   string    `json:"protocol"`
	MessageID  string    `json:"message_id"`
	PayloadID  string    `json:"payload_id"`
	Async      bool      `json:"async"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Filter controls which delivery logs to return.
type Filter struct {
	TargetName   string // optional: filter by target name
	MessageID    string // optional: filter by message id
	OnlyFailures bool   // optional: failed deliveries only
	Limit        int    // default 50, max 200
	Offset       int    // pagination offset
}

// ListResult contains the paginated delivery log results.
type ListResult struct {
	Logs   []DeliveryLog `json:"logs"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// Repository defines the interface for delivery log operations.
type Repository interface {
	Record(ctx context.Context, log *DeliveryLog) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Pagination bounds for List.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// SQLiteRepository stores delivery logs in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new delivery log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// EnsureSchema creates the delivery_log table if it does not exist.
//
// The audit log is a single self-contained table, so schema management
// lives here rather than in a migration framework.
func (r *SQLiteRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS delivery_log (
			id          TEXT PRIMARY KEY,
			target_name TEXT NOT NULL,
			protocol    TEXT NOT NULL,
			message_id  TEXT NOT NULL,
			payload_id  TEXT NOT NULL,
			async       INTEGER NOT NULL,
			success     INTEGER NOT NULL,
			error       TEXT,
			duration_ms INTEGER NOT NULL,
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_delivery_log_message
			ON delivery_log (message_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_delivery_log_target
			ON delivery_log (target_name, created_at);
	`)
	if err != nil {
		return fmt.Errorf("creating delivery_log schema: %w", err)
	}
	return nil
}

// Record inserts a new delivery log entry. The ID and CreatedAt are
// generated if empty.
func (r *SQLiteRepository) Record(ctx context.Context, log *DeliveryLog) error {
	if log.ID == "" {
		log.ID = "dlv-" + uuid.NewString()[:8]
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO delivery_log (id, target_name, protocol, message_id, payload_id, async, success, error, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.TargetName, log.Protocol, log.MessageID, log.PayloadID,
		boolToInt(log.Async), boolToInt(log.Success),
		nullableString(log.Error), log.DurationMS,
		log.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting delivery log: %w", err)
	}

	return nil
}

// List returns delivery logs matching the filter, ordered by most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.TargetName != "" {
		conditions = append(conditions, "target_name = ?")
		args = append(args, filter.TargetName)
	}
	if filter.MessageID != "" {
		conditions = append(conditions, "message_id = ?")
		args = append(args, filter.MessageID)
	}
	if filter.OnlyFailures {
		conditions = append(conditions, "success = 0")
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// WHERE clause is built from parameterised conditions (? placeholders) — no user input in SQL string.
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM delivery_log %s", where)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting delivery logs: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT id, target_name, protocol, message_id, payload_id, async, success, error, duration_ms, created_at FROM delivery_log %s ORDER BY created_at DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying delivery logs: %w", err)
	}
	defer rows.Close()

	var logs []DeliveryLog
	for rows.Next() {
		var log DeliveryLog
		var async, success int
		var errText sql.NullString
		var createdAt string

		if err := rows.Scan(&log.ID, &log.TargetName, &log.Protocol,
			&log.MessageID, &log.PayloadID, &async, &success,
			&errText, &log.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning delivery log: %w", err)
		}

		log.Async = async != 0
		log.Success = success != 0
		if errText.Valid {
			log.Error = errText.String
		}

		t, err := time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing delivery log timestamp %q: %w", createdAt, err)
		}
		log.CreatedAt = t

		logs = append(logs, log)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery logs: %w", err)
	}

	if logs == nil {
		logs = []DeliveryLog{}
	}

	return &ListResult{
		Logs:   logs,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}

// Prune deletes delivery logs older than the given age.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339Nano)

	res, err := r.db.ExecContext(ctx,
		"DELETE FROM delivery_log WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning delivery logs: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned delivery logs: %w", err)
	}
	return deleted, nil
}

// boolToInt converts a bool to the 0/1 SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
