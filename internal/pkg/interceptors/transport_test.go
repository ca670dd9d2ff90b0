package interceptors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/storefront-core/internal/pkg/interceptors/constants"
)

func TestClientPropagatesRequestID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(constants.HeaderXRequestId)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	ctx := WithRequestID(context.Background(), "req-123")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := NewClient(time.Second).Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "req-123", got)
	assert.Empty(t, req.Header.Get(constants.HeaderXRequestId), "caller request must not be mutated")
}

func TestContextAccessors(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, IdempotencyKey(ctx))

	ctx = WithIdempotencyKey(WithRequestID(ctx, "r"), "k")
	assert.Equal(t, "r", RequestID(ctx))
	assert.Equal(t, "k", IdempotencyKey(ctx))
}
