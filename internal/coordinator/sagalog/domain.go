// Package sagalog defines the audit trail of order submission attempts.
//
// Every attempt appends one row per state transition. The log serves two
// purposes:
//
//  1. Reconciliation: when completion fails after a draft exists, the row
//     holds the draft id so an operator can finish or discard it by hand.
//
//  2. Observability: trace_id and span_id join a row to its distributed trace.
package sagalog

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of a submission attempt.
type Status string

const (
	StatusStarted  Status = "STARTED"
	StatusStepDone Status = "STEP_DONE"
	// StatusCompleted means the draft was converted into an order.
	StatusCompleted Status = "COMPLETED"
	// StatusPartial means a draft exists but no order was realized, either
	// because completion returned no order id or because completion failed.
	StatusPartial Status = "PARTIAL"
	StatusFailed  Status = "FAILED"
)

// ErrNotFound is returned by GetLatest when no attempt was logged.
var ErrNotFound = errors.New("sagalog: no entry found")

// SagaLog is a single row in the saga_logs table.
type SagaLog struct {
	// SagaID identifies one submission attempt (a UUID).
	SagaID string

	// OrderNumber is the caller-supplied order number. Several attempts may
	// share it; the latest row wins for status queries.
	OrderNumber string

	Status Status

	// CurrentStep is the name of the step that was just executed or failed.
	CurrentStep string

	// ProvisionalID is the draft order id, once phase one succeeded.
	ProvisionalID string

	// FinalizedID is the realized order id, once phase two produced one.
	FinalizedID string

	// Payload is the JSON-serialised request. Stored once on STARTED.
	Payload string

	// ErrorMessages is a JSON array of failure details.
	ErrorMessages string

	TraceID string
	SpanID  string

	UpdatedAt time.Time
}
