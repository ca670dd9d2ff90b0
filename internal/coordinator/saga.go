package coordinator

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/storefront-core/internal/coordinator/sagalog"
	"github.com/jcmexdev/storefront-core/internal/pkg/telemetry"
)

// Step represents a single unit of work in a submission. Steps have no
// compensating action: a draft order left behind by a failed completion is
// a resting state that operators reconcile by hand.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
}

// Orchestrator runs steps sequentially, each exactly once, and journals every
// transition to the submission log.
type Orchestrator struct {
	steps  []Step
	repo   sagalog.Repository
	tracer trace.Tracer

	// ids reports the external identifiers known so far; they are copied
	// into each journal row.
	ids func() sagalog.Ids
}

func NewOrchestrator(repo sagalog.Repository, ids func() sagalog.Ids, steps ...Step) *Orchestrator {
	if ids == nil {
		ids = func() sagalog.Ids { return sagalog.Ids{} }
	}
	return &Orchestrator{
		steps:  steps,
		repo:   repo,
		tracer: telemetry.Tracer("coordinator"),
		ids:    ids,
	}
}

// Start journals STARTED, then runs each step and journals STEP_DONE after it.
// It stops at the first failing step and returns that step's name with the
// error. The terminal row is left to the caller, which knows the outcome.
func (o *Orchestrator) Start(ctx context.Context, sagaID, orderNumber, payload string) (string, error) {
	o.save(ctx, sagalog.NewEntry(ctx, sagaID, orderNumber, sagalog.StatusStarted, "", payload, o.ids(), nil))

	for _, step := range o.steps {
		slog.InfoContext(ctx, "executing step", "step", step.Name(), "order_number", orderNumber)

		if err := o.execute(ctx, step); err != nil {
			slog.ErrorContext(ctx, "step failed", "step", step.Name(), "order_number", orderNumber, "error", err)
			return step.Name(), err
		}
		o.save(ctx, sagalog.NewEntry(ctx, sagaID, orderNumber, sagalog.StatusStepDone, step.Name(), "", o.ids(), nil))
	}
	return "", nil
}

func (o *Orchestrator) execute(ctx context.Context, step Step) error {
	ctx, span := o.tracer.Start(ctx, step.Name(), trace.WithAttributes(attribute.String("saga.step", step.Name())))
	defer span.End()

	if err := step.Execute(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// save writes a journal row. The log is diagnostic; a write failure is
// logged and never changes the submission outcome.
func (o *Orchestrator) save(ctx context.Context, entry *sagalog.SagaLog) {
	if o.repo == nil {
		return
	}
	if err := o.repo.Save(ctx, entry); err != nil {
		slog.WarnContext(ctx, "failed to write submission log", "saga_id", entry.SagaID, "status", entry.Status, "error", err)
	}
}
