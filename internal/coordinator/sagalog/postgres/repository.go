// Package postgres provides a Postgres implementation of sagalog.Repository
// for deployments that run more than one API instance.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jcmexdev/storefront-core/internal/coordinator/sagalog"

	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS saga_logs (
    id              BIGSERIAL PRIMARY KEY,
    saga_id         TEXT        NOT NULL,
    order_number    TEXT        NOT NULL,
    status          TEXT        NOT NULL,
    current_step    TEXT        NOT NULL DEFAULT '',
    provisional_id  TEXT        NOT NULL DEFAULT '',
    finalized_id    TEXT        NOT NULL DEFAULT '',
    payload         TEXT,
    error_messages  TEXT        NOT NULL DEFAULT '[]',
    trace_id        TEXT        NOT NULL DEFAULT '',
    span_id         TEXT        NOT NULL DEFAULT '',
    updated_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_saga_logs_order_number ON saga_logs(order_number, updated_at);
`

type Repository struct {
	db *sql.DB
}

var _ sagalog.Repository = (*Repository)(nil)

// Open connects with a lib/pq DSN and applies the schema.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps db without touching the schema.
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) Save(ctx context.Context, entry *sagalog.SagaLog) error {
	const q = `
		INSERT INTO saga_logs
			(saga_id, order_number, status, current_step, provisional_id, finalized_id,
			 payload, error_messages, trace_id, span_id, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var payload sql.NullString
	if entry.Payload != "" {
		payload = sql.NullString{String: entry.Payload, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, q,
		entry.SagaID,
		entry.OrderNumber,
		string(entry.Status),
		entry.CurrentStep,
		entry.ProvisionalID,
		entry.FinalizedID,
		payload,
		entry.ErrorMessages,
		entry.TraceID,
		entry.SpanID,
		entry.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("postgres: save saga log for %q: %w", entry.SagaID, err)
	}
	return nil
}

func (r *Repository) GetLatest(ctx context.Context, orderNumber string) (*sagalog.SagaLog, error) {
	const q = `
		SELECT saga_id, order_number, status, current_step, provisional_id, finalized_id,
		       COALESCE(payload, ''), error_messages, trace_id, span_id, updated_at
		FROM   saga_logs
		WHERE  order_number = $1
		ORDER  BY updated_at DESC, id DESC
		LIMIT  1`

	var entry sagalog.SagaLog
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
		&entry.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sagalog.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: get latest for %q: %w", orderNumber, err)
	}
	entry.UpdatedAt = entry.UpdatedAt.UTC()
	return &entry, nil
}
