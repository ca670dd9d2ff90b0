// Package sqlite provides a SQLite-backed implementation of sagalog.Repository.
//
// WAL mode is enabled on Open so that the status endpoint can read while a
// submission is being journaled.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jcmexdev/storefront-core/internal/coordinator/sagalog"

	// Pure-Go driver, registered as "sqlite". No CGO needed.
	_ "modernc.org/sqlite"
)

// schema is executed once on startup. The table is append-only: each row is
// an immutable event in an attempt's lifecycle.
const schema = `
CREATE TABLE IF NOT EXISTS saga_logs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    saga_id         TEXT        NOT NULL,

    -- Caller-supplied order number. Not UNIQUE: retries append new attempts.
    order_number    TEXT        NOT NULL,

    status          TEXT        NOT NULL,
    current_step    TEXT        NOT NULL DEFAULT '',

    -- Draft order id (phase one) and realized order id (phase two).
    provisional_id  TEXT        NOT NULL DEFAULT '',
    finalized_id    TEXT        NOT NULL DEFAULT '',

    -- JSON request written once on STARTED, NULL after.
    payload         TEXT,
    error_messages  TEXT        NOT NULL DEFAULT '[]',
    trace_id        TEXT        NOT NULL DEFAULT '',
    span_id         TEXT        NOT NULL DEFAULT '',

    -- RFC3339 TEXT, SQLite has no datetime type.
    updated_at      TEXT        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saga_logs_order_number ON saga_logs(order_number, updated_at);
CREATE INDEX IF NOT EXISTS idx_saga_logs_trace_id ON saga_logs(trace_id);
`

// Repository is the SQLite implementation of sagalog.Repository.
type Repository struct {
	db *sql.DB
}

var _ sagalog.Repository = (*Repository)(nil)

// Open opens (or creates) the SQLite database at path and applies the schema.
// The parent directory is created when missing.
//
//	repo, err := sqlite.Open("./data/submissions.db")
func Open(path string) (*Repository, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite: create dir %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// Single writer connection.
	db.SetMaxOpenConns(1)

	repo, err := New(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// New wraps an already opened database and applies the schema.
func New(db *sql.DB) (*Repository, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts a new log entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *sagalog.SagaLog) error {
	const q = `
		INSERT INTO saga_logs
			(saga_id, order_number, status, current_step, provisional_id, finalized_id,
			 payload, error_messages, trace_id, span_id, updated_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.SagaID,
		entry.OrderNumber,
		string(entry.Status),
		entry.CurrentStep,
		entry.ProvisionalID,
		entry.FinalizedID,
		nullableString(entry.Payload),
		entry.ErrorMessages,
		entry.TraceID,
		entry.SpanID,
		formatTime(entry.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save saga log for %q: %w", entry.SagaID, err)
	}
	return nil
}

// GetLatest returns the most recent log entry for an order number.
func (r *Repository) GetLatest(ctx context.Context, orderNumber string) (*sagalog.SagaLog, error) {
	const q = `
		SELECT saga_id, order_number, status, current_step, provisional_id, finalized_id,
		       COALESCE(payload,''), error_messages, trace_id, span_id, updated_at
		FROM   saga_logs
		WHERE  order_number = ?
		ORDER  BY updated_at DESC, id DESC
		LIMIT  1`

	var entry sagalog.SagaLog
	var updatedAt string
	err := r.db.QueryRowContext(ctx, q, orderNumber).Scan(
		&entry.SagaID,
		&entry.OrderNumber,
		&entry.Status,
		&entry.CurrentStep,
		&entry.ProvisionalID,
		&entry.FinalizedID,
		&entry.Payload,
		&entry.ErrorMessages,
		&entry.TraceID,
		&entry.SpanID,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sagalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get latest for %q: %w", orderNumber, err)
	}

	entry.UpdatedAt, err = parseRFC3339(updatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// nullableString stores NULL instead of an empty string on non-STARTED rows.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
