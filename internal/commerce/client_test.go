package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-core/internal/config"
	"github.com/jcmexdev/storefront-core/internal/pkg/apperr"
)

var testCfg = config.Commerce{
	StoreDomain: "shop.example.com",
	APIVersion:  "2025-01",
	AccessToken: "shpat_secret",
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(testCfg, srv.Client(), WithBaseURL(srv.URL))
}

func TestCreateDraftOrder(t *testing.T) {
	var got map[string]DraftOrder
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/draft_orders.json", r.URL.Path)
		assert.Equal(t, "shpat_secret", r.Header.Get(accessTokenHeader))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"draft_order":{"id":1069920475,"name":"#D12"}}`))
	})

	draft, err := c.CreateDraftOrder(context.Background(), DraftOrder{
		Email:     "u@test.com",
		LineItems: []LineItem{{VariantID: 42, Quantity: 2, Price: "10.00"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "1069920475", draft.ID)
	assert.Equal(t, "#D12", draft.Name)
	assert.Equal(t, int64(42), got["draft_order"].LineItems[0].VariantID)
}

func TestCreateDraftOrderMissingID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"draft_order":null}`))
	})

	_, err := c.CreateDraftOrder(context.Background(), DraftOrder{})
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestCreateDraftOrderNon2xx(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"errors":{"line_items":["is invalid"]}}`))
	})

	_, err := c.CreateDraftOrder(context.Background(), DraftOrder{})
	require.Error(t, err)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.KindUpstream, ae.Kind)
	assert.Equal(t, http.StatusUnprocessableEntity, ae.UpstreamStatus)
	assert.Contains(t, ae.UpstreamBody, "is invalid")
}

func TestCompleteDraftOrderPaymentPending(t *testing.T) {
	for _, pending := range []bool{true, false} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "/draft_orders/77/complete.json", r.URL.Path)
			if pending {
				assert.Equal(t, "true", r.URL.Query().Get("payment_pending"))
			} else {
				assert.Equal(t, "false", r.URL.Query().Get("payment_pending"))
			}
			_, _ = w.Write([]byte(`{"draft_order":{"id":77,"order_id":450789469,"name":"#D12"}}`))
		})

		done, err := c.CompleteDraftOrder(context.Background(), "77", pending)
		require.NoError(t, err)
		assert.Equal(t, "450789469", done.OrderID)
		assert.Equal(t, "77", done.DraftID)
	}
}

func TestCompleteDraftOrderWithoutOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"draft_order":{"id":77,"order_id":null}}`))
	})

	done, err := c.CompleteDraftOrder(context.Background(), "77", false)
	require.NoError(t, err)
	assert.Empty(t, done.OrderID)
}

func TestUnconfiguredClientMakesNoCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { calls++ }))
	defer srv.Close()

	c := NewClient(config.Commerce{APIVersion: "2025-01"}, srv.Client(), WithBaseURL(srv.URL))
	_, err := c.CreateDraftOrder(context.Background(), DraftOrder{})
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	_, err = c.CompleteDraftOrder(context.Background(), "1", true)
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
	assert.Zero(t, calls)
}

func TestEndpointDefaultsToStoreDomain(t *testing.T) {
	c := NewClient(testCfg, nil)
	assert.Equal(t, "https://shop.example.com/admin/api/2025-01/draft_orders.json", c.endpoint("/draft_orders.json"))
}
