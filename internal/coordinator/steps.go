package coordinator

import (
	"context"
	"fmt"

	"github.com/jcmexdev/storefront-core/internal/commerce"
	"github.com/jcmexdev/storefront-core/internal/pkg/apperr"
)

// CommerceClient is the commerce platform surface the steps call.
type CommerceClient interface {
	Configured() bool
	CreateDraftOrder(ctx context.Context, draft commerce.DraftOrder) (*commerce.Draft, error)
	CompleteDraftOrder(ctx context.Context, draftID string, paymentPending bool) (*commerce.Completion, error)
}

// draftState is shared by the two steps of one submission.
type draftState struct {
	provisionalID string
	finalizedID   string
	name          string
}

// --- CreateDraftOrderStep ---

type CreateDraftOrderStep struct {
	client CommerceClient
	draft  commerce.DraftOrder
	state  *draftState
}

func NewCreateDraftOrderStep(client CommerceClient, draft commerce.DraftOrder, state *draftState) *CreateDraftOrderStep {
	return &CreateDraftOrderStep{client: client, draft: draft, state: state}
}

func (s *CreateDraftOrderStep) Name() string { return "Create_Draft_Order_Step" }

func (s *CreateDraftOrderStep) Execute(ctx context.Context) error {
	res, err := s.client.CreateDraftOrder(ctx, s.draft)
	if err != nil {
		return asUpstream("create draft order", err)
	}
	s.state.provisionalID = res.ID
	s.state.name = res.Name
	return nil
}

// --- CompleteDraftOrderStep ---

type CompleteDraftOrderStep struct {
	client         CommerceClient
	paymentPending bool
	state          *draftState
}

func NewCompleteDraftOrderStep(client CommerceClient, paymentPending bool, state *draftState) *CompleteDraftOrderStep {
	return &CompleteDraftOrderStep{client: client, paymentPending: paymentPending, state: state}
}

func (s *CompleteDraftOrderStep) Name() string { return "Complete_Draft_Order_Step" }

// Execute succeeds both when an order is realized and when the platform keeps
// the draft without one; the caller tells the two apart by finalizedID.
func (s *CompleteDraftOrderStep) Execute(ctx context.Context) error {
	res, err := s.client.CompleteDraftOrder(ctx, s.state.provisionalID, s.paymentPending)
	if err != nil {
		return asUpstream("complete draft order "+s.state.provisionalID, err)
	}
	s.state.finalizedID = res.OrderID
	if res.Name != "" {
		s.state.name = res.Name
	}
	return nil
}

// asUpstream keeps typed errors from the client and classifies anything else
// as an upstream failure, since it happened while talking to the platform.
func asUpstream(action string, err error) error {
	if apperr.KindOf(err) != apperr.KindInternal {
		return err
	}
	return apperr.Upstream("coordinator."+action, fmt.Errorf("failed to %s: %w", action, err))
}
