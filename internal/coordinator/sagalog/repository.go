package sagalog

import "context"

// Repository is the port for persisting submission log entries. The
// coordinator depends on this abstraction; SQLite and Postgres implement it.
type Repository interface {
	// Save appends a row. The table is an append-only audit log.
	Save(ctx context.Context, entry *SagaLog) error

	// GetLatest returns the most recent row for an order number, or
	// ErrNotFound.
	GetLatest(ctx context.Context, orderNumber string) (*SagaLog, error)
}
