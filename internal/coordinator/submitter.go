// Package coordinator turns a storefront order into a draft order at the
// commerce platform and then completes it.
//
// The two phases are not atomic. A draft created in phase one is never
// rolled back: when completion fails, the draft id is returned to the caller
// and journaled so the order can be reconciled by hand.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jcmexdev/storefront-core/internal/config"
	"github.com/jcmexdev/storefront-core/internal/coordinator/sagalog"
	"github.com/jcmexdev/storefront-core/internal/pkg/apperr"
	"github.com/jcmexdev/storefront-core/internal/pkg/cache"
	"github.com/jcmexdev/storefront-core/internal/pkg/interceptors"
	"github.com/jcmexdev/storefront-core/internal/pkg/messaging"
	"github.com/jcmexdev/storefront-core/internal/pkg/telemetry"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	// OutcomePartial: the draft exists but completion returned no order.
	OutcomePartial Outcome = "partial"
	// OutcomeCompletionFailed: the draft exists and completion errored.
	OutcomeCompletionFailed Outcome = "completion_failed"
	OutcomeFailed           Outcome = "failed"
	OutcomeRejected         Outcome = "rejected"
	OutcomeReplayed         Outcome = "replayed"
)

// TopicOrderSubmitted receives one event per attempt that left a draft behind.
const TopicOrderSubmitted = "orders.submitted"

const (
	pendingMarker = "pending"
	pendingTTL    = 2 * time.Minute
	resultTTL     = 24 * time.Hour
)

// SubmissionResult is the composite outcome of one submission.
type SubmissionResult struct {
	Success       bool    `json:"success"`
	ProvisionalID string  `json:"draftOrderId,omitempty"`
	FinalizedID   *string `json:"orderId"`
	OrderName     string  `json:"orderName,omitempty"`
	Outcome       Outcome `json:"outcome"`
	Replayed      bool    `json:"replayed"`
	Error         string  `json:"error,omitempty"`
}

// SubmittedEvent is published on TopicOrderSubmitted.
type SubmittedEvent struct {
	SagaID        string    `json:"sagaId"`
	OrderNumber   string    `json:"orderNumber"`
	DraftOrderID  string    `json:"draftOrderId"`
	OrderID       string    `json:"orderId,omitempty"`
	Outcome       Outcome   `json:"outcome"`
	PaymentMethod string    `json:"paymentMethod"`
	Total         float64   `json:"total"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type Submitter struct {
	client    CommerceClient
	merchant  config.Commerce
	repo      sagalog.Repository
	cache     cache.Cache
	publisher messaging.Publisher
	metrics   *telemetry.Metrics
	newID     func() string
}

type Option func(*Submitter)

func WithSubmissionLog(repo sagalog.Repository) Option {
	return func(s *Submitter) { s.repo = repo }
}

// WithDedupCache enables order-number deduplication.
func WithDedupCache(c cache.Cache) Option {
	return func(s *Submitter) { s.cache = c }
}

func WithPublisher(p messaging.Publisher) Option {
	return func(s *Submitter) { s.publisher = p }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Submitter) { s.metrics = m }
}

func NewSubmitter(client CommerceClient, merchant config.Commerce, opts ...Option) *Submitter {
	s := &Submitter{
		client:    client,
		merchant:  merchant,
		publisher: messaging.Noop{},
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit validates req, creates a draft order and completes it.
//
// A non-nil result accompanies an error only when the attempt reached the
// commerce platform; if ProvisionalID is set, a draft exists there.
func (s *Submitter) Submit(ctx context.Context, req OrderRequest) (*SubmissionResult, error) {
	if err := req.Validate(); err != nil {
		s.metrics.ObserveOrderOutcome(string(OutcomeRejected))
		return nil, err
	}
	if !s.client.Configured() {
		s.metrics.ObserveOrderOutcome(string(OutcomeRejected))
		return nil, apperr.Configuration("coordinator.Submit", "commerce store domain or access token is not configured")
	}

	key, replay, err := s.reserve(ctx, req.OrderNumber)
	if err != nil || replay != nil {
		outcome := OutcomeRejected
		if replay != nil {
			outcome = OutcomeReplayed
		}
		s.metrics.ObserveOrderOutcome(string(outcome))
		return replay, err
	}

	// Bookkeeping after the platform calls must survive the caller going away.
	bg := context.WithoutCancel(ctx)

	sagaID := s.newID()
	payload, _ := json.Marshal(req)
	state := &draftState{}
	ids := func() sagalog.Ids {
		return sagalog.Ids{Provisional: state.provisionalID, Finalized: state.finalizedID}
	}

	orch := NewOrchestrator(s.repo, ids,
		NewCreateDraftOrderStep(s.client, buildDraftOrder(req, s.merchant), state),
		NewCompleteDraftOrderStep(s.client, req.PaymentMethod.PaymentPending(), state),
	)
	failedStep, runErr := orch.Start(ctx, sagaID, req.OrderNumber, string(payload))

	res := &SubmissionResult{ProvisionalID: state.provisionalID, OrderName: state.name}
	var status sagalog.Status
	var errs []string

	switch {
	case runErr != nil && state.provisionalID == "":
		res.Outcome = OutcomeFailed
		res.Error = apperr.Message(runErr)
		status = sagalog.StatusFailed
		errs = []string{failedStep + ": " + runErr.Error()}
		s.release(bg, key)
	case runErr != nil:
		res.Outcome = OutcomeCompletionFailed
		res.Error = apperr.Message(runErr)
		status = sagalog.StatusPartial
		errs = []string{failedStep + ": " + runErr.Error()}
		slog.ErrorContext(ctx, "draft order left without completion",
			"order_number", req.OrderNumber, "draft_order_id", state.provisionalID, "error", runErr)
	case state.finalizedID == "":
		res.Success = true
		res.Outcome = OutcomePartial
		status = sagalog.StatusPartial
		slog.WarnContext(ctx, "draft order completed without an order id",
			"order_number", req.OrderNumber, "draft_order_id", state.provisionalID)
	default:
		res.Success = true
		res.Outcome = OutcomeCompleted
		finalized := state.finalizedID
		res.FinalizedID = &finalized
		status = sagalog.StatusCompleted
	}

	orch.save(bg, sagalog.NewEntry(ctx, sagaID, req.OrderNumber, status, failedStep, "", ids(), errs))
	s.metrics.ObserveOrderOutcome(string(res.Outcome))

	if res.ProvisionalID != "" {
		s.remember(bg, key, res)
		s.publish(bg, sagaID, req, res)
	}

	if runErr != nil {
		return res, runErr
	}
	slog.InfoContext(ctx, "order submitted", "order_number", req.OrderNumber,
		"draft_order_id", res.ProvisionalID, "outcome", res.Outcome)
	return res, nil
}

// LatestAttempt returns the newest journal row for orderNumber.
func (s *Submitter) LatestAttempt(ctx context.Context, orderNumber string) (*sagalog.SagaLog, error) {
	const op = "coordinator.LatestAttempt"
	if s.repo == nil {
		return nil, apperr.NotFound(op, "submission log is disabled")
	}
	entry, err := s.repo.GetLatest(ctx, orderNumber)
	if errors.Is(err, sagalog.ErrNotFound) {
		return nil, apperr.NotFound(op, "no submission recorded for order %s", orderNumber)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// dedupIdentity is the caller's idempotency key when one was sent, otherwise
// the order number.
func dedupIdentity(ctx context.Context, orderNumber string) string {
	if key := strings.TrimSpace(interceptors.IdempotencyKey(ctx)); key != "" {
		return "idempotency:" + key
	}
	return orderNumber
}

// reserve claims the submission's dedup identity. It returns the cache key on
// success, a stored result for an identity that already produced a draft, or
// a conflict for one that is still in flight. Cache failures disable dedup
// for this attempt.
func (s *Submitter) reserve(ctx context.Context, orderNumber string) (string, *SubmissionResult, error) {
	if s.cache == nil {
		return "", nil, nil
	}
	key := s.cache.GenerateKey("submit", dedupIdentity(ctx, orderNumber))

	ok, err := s.cache.SetNX(ctx, key, pendingMarker, pendingTTL)
	if err != nil {
		slog.WarnContext(ctx, "dedup cache unavailable, continuing without it", "order_number", orderNumber, "error", err)
		return "", nil, nil
	}
	if ok {
		return key, nil, nil
	}

	stored, err := s.cache.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "dedup cache read failed", "order_number", orderNumber, "error", err)
		return "", nil, apperr.Conflict("coordinator.Submit", "order %s is already being submitted", orderNumber)
	}
	var prev SubmissionResult
	if stored == "" || stored == pendingMarker || json.Unmarshal([]byte(stored), &prev) != nil {
		return "", nil, apperr.Conflict("coordinator.Submit", "order %s is already being submitted", orderNumber)
	}

	prev.Replayed = true
	slog.InfoContext(ctx, "replaying earlier submission", "order_number", orderNumber, "draft_order_id", prev.ProvisionalID)
	if !prev.Success {
		return "", &prev, &apperr.Error{Kind: apperr.KindUpstream, Op: "coordinator.Submit", Message: prev.Error}
	}
	return "", &prev, nil
}

func (s *Submitter) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.cache.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "failed to release dedup key", "key", key, "error", err)
	}
}

func (s *Submitter) remember(ctx context.Context, key string, res *SubmissionResult) {
	if key == "" {
		return
	}
	b, err := json.Marshal(res)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, string(b), resultTTL); err != nil {
		slog.WarnContext(ctx, "failed to store submission result", "key", key, "error", err)
	}
}

func (s *Submitter) publish(ctx context.Context, sagaID string, req OrderRequest, res *SubmissionResult) {
	event := SubmittedEvent{
		SagaID:        sagaID,
		OrderNumber:   req.OrderNumber,
		DraftOrderID:  res.ProvisionalID,
		Outcome:       res.Outcome,
		PaymentMethod: string(req.PaymentMethod),
		Total:         req.Total,
		OccurredAt:    time.Now().UTC(),
	}
	if res.FinalizedID != nil {
		event.OrderID = *res.FinalizedID
	}
	if err := s.publisher.PublishEvent(ctx, TopicOrderSubmitted, req.OrderNumber, event); err != nil {
		slog.WarnContext(ctx, "failed to publish order event", "order_number", req.OrderNumber, "error", err)
	}
}
