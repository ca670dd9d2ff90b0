package coordinator

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-core/internal/commerce"
	"github.com/jcmexdev/storefront-core/internal/config"
	"github.com/jcmexdev/storefront-core/internal/coordinator/sagalog"
	"github.com/jcmexdev/storefront-core/internal/pkg/apperr"
	"github.com/jcmexdev/storefront-core/internal/pkg/cache"
	"github.com/jcmexdev/storefront-core/internal/pkg/interceptors"
)

type fakeCommerce struct {
	mu sync.Mutex

	unconfigured bool
	createErr    error
	completeErr  error
	orderID      string

	creates        []commerce.DraftOrder
	completes      int
	paymentPending []bool
}

func (f *fakeCommerce) Configured() bool { return !f.unconfigured }

func (f *fakeCommerce) CreateDraftOrder(_ context.Context, draft commerce.DraftOrder) (*commerce.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, draft)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &commerce.Draft{ID: "77", Name: "#D1"}, nil
}

func (f *fakeCommerce) CompleteDraftOrder(_ context.Context, draftID string, pending bool) (*commerce.Completion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes++
	f.paymentPending = append(f.paymentPending, pending)
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	return &commerce.Completion{DraftID: draftID, OrderID: f.orderID}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []any
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, _ string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return p.err
}

var merchant = config.Commerce{CountryName: "Pakistan", CountryCode: "PK", OrderTag: "storefront-app"}

func validOrder() OrderRequest {
	return OrderRequest{
		OrderNumber:     "ORD-1001",
		CustomerName:    "Ayesha Khan Malik",
		CustomerEmail:   "u@test.com",
		CustomerPhone:   "+923001234567",
		CustomerAddress: "12 Mall Road",
		City:            "Lahore",
		Items: []LineItem{
			{VariantID: "gid://shopify/ProductVariant/4242", Title: "Cleaner", Quantity: 2, Price: 450},
		},
		Subtotal:       900,
		DeliveryCharge: 150,
		Total:          1050,
		PaymentMethod:  PaymentCOD,
	}
}

func TestSubmitEmptyItemsNeverCallsPlatform(t *testing.T) {
	fc := &fakeCommerce{orderID: "1"}
	s := NewSubmitter(fc, merchant)

	req := validOrder()
	req.Items = nil
	res, err := s.Submit(context.Background(), req)

	assert.Nil(t, res)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, fc.creates)
	assert.Zero(t, fc.completes)
}

func TestSubmitValidation(t *testing.T) {
	cases := map[string]func(*OrderRequest){
		"missing order number": func(r *OrderRequest) { r.OrderNumber = " " },
		"missing email":        func(r *OrderRequest) { r.CustomerEmail = "" },
		"zero quantity":        func(r *OrderRequest) { r.Items[0].Quantity = 0 },
		"bad variant":          func(r *OrderRequest) { r.Items[0].VariantID = "gid://shopify/Product/abc" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			fc := &fakeCommerce{}
			req := validOrder()
			mutate(&req)

			_, err := NewSubmitter(fc, merchant).Submit(context.Background(), req)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Empty(t, fc.creates)
		})
	}
}

func TestSubmitUnconfigured(t *testing.T) {
	fc := &fakeCommerce{unconfigured: true}

	_, err := NewSubmitter(fc, merchant).Submit(context.Background(), validOrder())
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Equal(t, http.StatusPreconditionFailed, apperr.HTTPStatus(err))
	assert.Empty(t, fc.creates)
}

func TestSubmitFullSuccess(t *testing.T) {
	fc := &fakeCommerce{orderID: "450789469"}
	repo := sagalog.NewMemoryRepository()
	pub := &recordingPublisher{}
	s := NewSubmitter(fc, merchant, WithSubmissionLog(repo), WithPublisher(pub))

	res, err := s.Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "77", res.ProvisionalID)
	require.NotNil(t, res.FinalizedID)
	assert.Equal(t, "450789469", *res.FinalizedID)
	assert.Equal(t, OutcomeCompleted, res.Outcome)

	require.Len(t, fc.creates, 1)
	draft := fc.creates[0]
	assert.Equal(t, "u@test.com", draft.Email)
	assert.Contains(t, draft.Note, "ORD-1001")
	assert.Equal(t, int64(4242), draft.LineItems[0].VariantID)
	assert.Equal(t, "450.00", draft.LineItems[0].Price)
	assert.Equal(t, draft.ShippingAddress, draft.BillingAddress)
	assert.Equal(t, "Ayesha", draft.ShippingAddress.FirstName)
	assert.Equal(t, "Khan Malik", draft.ShippingAddress.LastName)
	assert.Equal(t, "PK", draft.ShippingAddress.CountryCode)
	assert.Equal(t, "Delivery to Lahore", draft.ShippingLine.Title)
	assert.Equal(t, "150.00", draft.ShippingLine.Price)
	assert.Equal(t, "storefront-app, cod", draft.Tags)
	assert.Contains(t, draft.NoteAttributes, commerce.NoteAttribute{Name: "order_number", Value: "ORD-1001"})

	entries := repo.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, sagalog.StatusStarted, entries[0].Status)
	assert.NotEmpty(t, entries[0].Payload)
	assert.Equal(t, "Create_Draft_Order_Step", entries[1].CurrentStep)
	assert.Equal(t, "77", entries[1].ProvisionalID)
	assert.Equal(t, sagalog.StatusCompleted, entries[3].Status)
	assert.Equal(t, "450789469", entries[3].FinalizedID)

	assert.Equal(t, []string{TopicOrderSubmitted}, pub.topics)
}

func TestSubmitPaymentPendingOnlyForCOD(t *testing.T) {
	for method, want := range map[PaymentMethod]bool{
		PaymentCOD:          true,
		PaymentBankTransfer: false,
		"card":              false,
	} {
		fc := &fakeCommerce{orderID: "1"}
		req := validOrder()
		req.PaymentMethod = method

		_, err := NewSubmitter(fc, merchant).Submit(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, []bool{want}, fc.paymentPending, "payment method %q", method)
	}
}

func TestSubmitPartialSuccess(t *testing.T) {
	fc := &fakeCommerce{}
	repo := sagalog.NewMemoryRepository()

	res, err := NewSubmitter(fc, merchant, WithSubmissionLog(repo)).Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "77", res.ProvisionalID)
	assert.Nil(t, res.FinalizedID)
	assert.Equal(t, OutcomePartial, res.Outcome)

	latest, err := repo.GetLatest(context.Background(), "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, sagalog.StatusPartial, latest.Status)
}

func TestSubmitPhaseOneFailure(t *testing.T) {
	fc := &fakeCommerce{createErr: apperr.UpstreamStatus("commerce.CreateDraftOrder", 422, []byte(`{"errors":"bad"}`))}
	pub := &recordingPublisher{}
	repo := sagalog.NewMemoryRepository()

	res, err := NewSubmitter(fc, merchant, WithSubmissionLog(repo), WithPublisher(pub)).Submit(context.Background(), validOrder())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Empty(t, res.ProvisionalID)
	assert.Zero(t, fc.completes, "completion is never attempted without a draft")
	assert.Empty(t, pub.events)

	latest, err := repo.GetLatest(context.Background(), "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, sagalog.StatusFailed, latest.Status)
	assert.Equal(t, "Create_Draft_Order_Step", latest.CurrentStep)
	assert.Contains(t, latest.ErrorMessages, "status 422", "the journal keeps the platform's answer")
	assert.Contains(t, latest.ErrorMessages, "bad")
}

func TestSubmitPhaseTwoFailureKeepsDraftID(t *testing.T) {
	fc := &fakeCommerce{completeErr: errors.New("connection reset by peer")}
	repo := sagalog.NewMemoryRepository()
	pub := &recordingPublisher{err: errors.New("broker down")}

	res, err := NewSubmitter(fc, merchant, WithSubmissionLog(repo), WithPublisher(pub)).Submit(context.Background(), validOrder())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Equal(t, "77", res.ProvisionalID)
	assert.Nil(t, res.FinalizedID)
	assert.Equal(t, OutcomeCompletionFailed, res.Outcome)
	assert.Equal(t, 1, fc.completes, "each phase is attempted exactly once")

	latest, err := repo.GetLatest(context.Background(), "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, sagalog.StatusPartial, latest.Status)
	assert.Equal(t, "77", latest.ProvisionalID)
	assert.True(t, strings.Contains(latest.ErrorMessages, "connection reset"))

	assert.Len(t, pub.events, 1, "publish errors do not change the outcome")
}

func TestSubmitDuplicateIsReplayed(t *testing.T) {
	fc := &fakeCommerce{orderID: "9"}
	s := NewSubmitter(fc, merchant, WithDedupCache(cache.NewMemoryCache("storefront")))

	first, err := s.Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := s.Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.ProvisionalID, second.ProvisionalID)
	require.NotNil(t, second.FinalizedID)
	assert.Equal(t, "9", *second.FinalizedID)
	assert.Len(t, fc.creates, 1, "a retry never creates a second draft")
}

func TestSubmitDuplicateOfFailedCompletionIsReplayedAsError(t *testing.T) {
	fc := &fakeCommerce{completeErr: errors.New("timeout")}
	s := NewSubmitter(fc, merchant, WithDedupCache(cache.NewMemoryCache("storefront")))

	_, err := s.Submit(context.Background(), validOrder())
	require.Error(t, err)

	res, err := s.Submit(context.Background(), validOrder())
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	require.NotNil(t, res)
	assert.True(t, res.Replayed)
	assert.Equal(t, "77", res.ProvisionalID)
	assert.Len(t, fc.creates, 1)
}

func TestSubmitDedupsByIdempotencyKey(t *testing.T) {
	fc := &fakeCommerce{orderID: "9"}
	c := cache.NewMemoryCache("storefront")
	s := NewSubmitter(fc, merchant, WithDedupCache(c))
	ctx := interceptors.WithIdempotencyKey(context.Background(), "checkout-abc")

	first, err := s.Submit(ctx, validOrder())
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	stored, err := c.Get(context.Background(), "storefront:submit:idempotency:checkout-abc")
	require.NoError(t, err)
	assert.Contains(t, stored, `"draftOrderId":"77"`)

	again, err := s.Submit(ctx, validOrder())
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.Len(t, fc.creates, 1)

	// Without the key the order number is the identity, which is still free.
	other, err := s.Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.False(t, other.Replayed)
	assert.Len(t, fc.creates, 2)
}

func TestSubmitInFlightDuplicateConflicts(t *testing.T) {
	c := cache.NewMemoryCache("storefront")
	_, err := c.SetNX(context.Background(), "storefront:submit:ORD-1001", pendingMarker, time.Minute)
	require.NoError(t, err)

	fc := &fakeCommerce{}
	_, err = NewSubmitter(fc, merchant, WithDedupCache(c)).Submit(context.Background(), validOrder())
	assert.True(t, apperr.Is(err, apperr.KindConflict))
	assert.Empty(t, fc.creates)
}

func TestSubmitPhaseOneFailureReleasesReservation(t *testing.T) {
	fc := &fakeCommerce{createErr: errors.New("dial tcp: i/o timeout")}
	s := NewSubmitter(fc, merchant, WithDedupCache(cache.NewMemoryCache("storefront")))

	_, err := s.Submit(context.Background(), validOrder())
	require.Error(t, err)

	fc.createErr = nil
	fc.orderID = "5"
	res, err := s.Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Len(t, fc.creates, 2)
}

type failingCache struct{ cache.Cache }

func (failingCache) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (failingCache) GenerateKey(op, key string) string { return "storefront:" + op + ":" + key }

func TestSubmitFailsOpenWhenCacheIsDown(t *testing.T) {
	fc := &fakeCommerce{orderID: "1"}

	res, err := NewSubmitter(fc, merchant, WithDedupCache(failingCache{})).Submit(context.Background(), validOrder())
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestLatestAttempt(t *testing.T) {
	repo := sagalog.NewMemoryRepository()
	s := NewSubmitter(&fakeCommerce{orderID: "1"}, merchant, WithSubmissionLog(repo))

	_, err := s.LatestAttempt(context.Background(), "ORD-1001")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = s.Submit(context.Background(), validOrder())
	require.NoError(t, err)

	entry, err := s.LatestAttempt(context.Background(), "ORD-1001")
	require.NoError(t, err)
	assert.Equal(t, sagalog.StatusCompleted, entry.Status)
}
