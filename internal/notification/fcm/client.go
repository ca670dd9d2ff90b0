// Package fcm is a client for the FCM legacy HTTP send endpoint. One Send is
// one HTTP request carrying every registration id.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jcmexdev/storefront-core/internal/config"
	"github.com/jcmexdev/storefront-core/internal/pkg/apperr"
)

const maxResponseBody = 1 << 20

type Notification struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Icon        string `json:"icon,omitempty"`
	ClickAction string `json:"click_action,omitempty"`
}

// Message is the legacy multicast payload.
type Message struct {
	RegistrationIDs []string       `json:"registration_ids"`
	Notification    Notification   `json:"notification"`
	Data            map[string]any `json:"data,omitempty"`
}

type Client struct {
	cfg        config.Push
	httpClient *http.Client
}

func NewClient(cfg config.Push, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, httpClient: httpClient}
}

func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

// Send posts msg and returns the gateway's JSON untouched. Per-token results
// inside a 2xx response are not inspected.
func (c *Client) Send(ctx context.Context, msg Message) (json.RawMessage, error) {
	const op = "fcm.Send"
	if !c.Configured() {
		return nil, apperr.Configuration(op, "push gateway server key is not configured")
	}
	if msg.Notification.Icon == "" {
		msg.Notification.Icon = c.cfg.DefaultIcon
	}
	if msg.Notification.ClickAction == "" {
		msg.Notification.ClickAction = c.cfg.ClickAction
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal message: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "key="+c.cfg.ServerKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream(op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, apperr.Upstream(op, fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apperr.UpstreamStatus(op, resp.StatusCode, data)
	}
	if !json.Valid(data) {
		// Relay non-JSON success bodies as a JSON string.
		quoted, _ := json.Marshal(string(data))
		return quoted, nil
	}
	return json.RawMessage(data), nil
}
