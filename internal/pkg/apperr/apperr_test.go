package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("op", "missing %s", "field"), http.StatusBadRequest},
		{"configuration", Configuration("op", "no key"), http.StatusPreconditionFailed},
		{"not found", NotFound("op", "nothing"), http.StatusNotFound},
		{"conflict", Conflict("op", "in flight"), http.StatusConflict},
		{"upstream", UpstreamStatus("op", 500, []byte("boom")), http.StatusBadGateway},
		{"wrapped", fmt.Errorf("outer: %w", Validation("op", "bad")), http.StatusBadRequest},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorString(t *testing.T) {
	err := Upstream("commerce.CreateDraftOrder", errors.New("connection refused"))
	assert.Equal(t, "commerce.CreateDraftOrder: connection refused", err.Error())
	assert.True(t, Is(err, KindUpstream))
	assert.False(t, Is(nil, KindUpstream))

	v := Validation("", "orderNumber is required")
	assert.Equal(t, "orderNumber is required", v.Error())
}

func TestMessageHidesInternalErrors(t *testing.T) {
	assert.Equal(t, "internal server error", Message(errors.New("pq: password authentication failed")))
	assert.Equal(t, "title is required", Message(Validation("op", "title is required")))
}

func TestUpstreamStatusTruncatesBody(t *testing.T) {
	body := strings.Repeat("x", maxUpstreamBody+100)
	err := UpstreamStatus("fcm.Send", http.StatusUnauthorized, []byte(body))

	assert.Equal(t, http.StatusUnauthorized, err.UpstreamStatus)
	assert.True(t, strings.HasSuffix(err.UpstreamBody, "...(truncated)"))
	assert.Len(t, err.UpstreamBody, maxUpstreamBody+len("...(truncated)"))
}

func TestUpstreamDetail(t *testing.T) {
	err := fmt.Errorf("send: %w", UpstreamStatus("fcm.Send", http.StatusUnauthorized, []byte("<HTML>INVALID_KEY</HTML>")))

	status, body := UpstreamDetail(err)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "<HTML>INVALID_KEY</HTML>", body)
	assert.Contains(t, err.Error(), "status 401: <HTML>INVALID_KEY</HTML>")

	status, body = UpstreamDetail(Validation("op", "bad"))
	assert.Zero(t, status)
	assert.Empty(t, body)
}
