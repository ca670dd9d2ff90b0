package sagalog

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// TraceInfo holds the OTel identifiers extracted from a context.
type TraceInfo struct {
	// TraceID is the W3C trace ID (32 lowercase hex chars), empty without an
	// active span.
	TraceID string
	SpanID  string
}

// ExtractTraceInfo reads the active span from ctx. otelhttp on the router
// starts the server span; the orchestrator adds one child span per step.
func ExtractTraceInfo(ctx context.Context) TraceInfo {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return TraceInfo{}
	}
	return TraceInfo{
		TraceID: sc.TraceID().String(),
		SpanID:  sc.SpanID().String(),
	}
}

// Ids carries the external identifiers known at the time a row is written.
type Ids struct {
	Provisional string
	Finalized   string
}

// NewEntry builds a SagaLog entry with the trace info taken from ctx.
//
//	entry := sagalog.NewEntry(ctx, sagaID, "ORD-1", sagalog.StatusStepDone, "Create_Draft_Order_Step", "", sagalog.Ids{Provisional: "77"}, nil)
func NewEntry(
	ctx context.Context,
	sagaID string,
	orderNumber string,
	status Status,
	currentStep string,
	payload string,
	ids Ids,
	errs []string,
) *SagaLog {
	ti := ExtractTraceInfo(ctx)

	errJSON := "[]"
	if len(errs) > 0 {
		if b, err := json.Marshal(errs); err == nil {
			errJSON = string(b)
		}
	}

	return &SagaLog{
		SagaID:        sagaID,
		OrderNumber:   orderNumber,
		Status:        status,
		CurrentStep:   currentStep,
		ProvisionalID: ids.Provisional,
		FinalizedID:   ids.Finalized,
		Payload:       payload,
		ErrorMessages: errJSON,
		TraceID:       ti.TraceID,
		SpanID:        ti.SpanID,
		UpdatedAt:     time.Now().UTC(),
	}
}
