// Package commerce is the Shopify Admin REST client used to create and
// complete draft orders.
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jcmexdev/storefront-core/internal/config"
	"github.com/jcmexdev/storefront-core/internal/pkg/apperr"
)

const accessTokenHeader = "X-Shopify-Access-Token"

// maxResponseBody bounds how much of a response is read into memory.
const maxResponseBody = 1 << 20

// DraftOrder is the draft_order object sent on creation.
type DraftOrder struct {
	Email           string          `json:"email"`
	Note            string          `json:"note"`
	NoteAttributes  []NoteAttribute `json:"note_attributes"`
	LineItems       []LineItem      `json:"line_items"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  Address         `json:"billing_address"`
	ShippingLine    *ShippingLine   `json:"shipping_line,omitempty"`
	Tags            string          `json:"tags"`
}

type NoteAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type LineItem struct {
	VariantID int64  `json:"variant_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	Title     string `json:"title,omitempty"`
}

type Address struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Address1    string `json:"address1"`
	City        string `json:"city"`
	Phone       string `json:"phone"`
	Country     string `json:"country"`
	CountryCode string `json:"country_code"`
}

type ShippingLine struct {
	Title  string `json:"title"`
	Price  string `json:"price"`
	Custom bool   `json:"custom"`
}

// Draft is what the platform returned for a created draft order.
type Draft struct {
	ID   string
	Name string
}

// Completion is the result of completing a draft. OrderID is empty when the
// platform kept the draft without converting it into an order.
type Completion struct {
	DraftID string
	OrderID string
	Name    string
}

// Client talks to one store's Admin API.
type Client struct {
	cfg        config.Commerce
	httpClient *http.Client
	baseURL    string
}

type Option func(*Client)

// WithBaseURL replaces https://{domain}/admin/api/{version}.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

func NewClient(cfg config.Commerce, httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	c := &Client{cfg: cfg, httpClient: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured reports whether both the store domain and the access token are set.
func (c *Client) Configured() bool {
	return c.cfg.Configured()
}

func (c *Client) endpoint(path string) string {
	base := c.baseURL
	if base == "" {
		base = fmt.Sprintf("https://%s/admin/api/%s", c.cfg.StoreDomain, c.cfg.APIVersion)
	}
	return base + path
}

// CreateDraftOrder submits a new draft order.
func (c *Client) CreateDraftOrder(ctx context.Context, draft DraftOrder) (*Draft, error) {
	const op = "commerce.CreateDraftOrder"
	if !c.Configured() {
		return nil, apperr.Configuration(op, "commerce store domain or access token is not configured")
	}

	body, err := json.Marshal(map[string]DraftOrder{"draft_order": draft})
	if err != nil {
		return nil, fmt.Errorf("%s: marshal payload: %w", op, err)
	}

	resp, err := c.do(ctx, op, http.MethodPost, c.endpoint("/draft_orders.json"), body)
	if err != nil {
		return nil, err
	}

	id := gjson.GetBytes(resp, "draft_order.id")
	if !id.Exists() || id.Type == gjson.Null || id.String() == "" {
		return nil, &apperr.Error{Kind: apperr.KindUpstream, Op: op, Message: "response did not contain a draft order"}
	}
	return &Draft{
		ID:   id.String(),
		Name: gjson.GetBytes(resp, "draft_order.name").String(),
	}, nil
}

// CompleteDraftOrder converts draftID into an order. paymentPending marks the
// resulting order as awaiting payment.
func (c *Client) CompleteDraftOrder(ctx context.Context, draftID string, paymentPending bool) (*Completion, error) {
	const op = "commerce.CompleteDraftOrder"
	if !c.Configured() {
		return nil, apperr.Configuration(op, "commerce store domain or access token is not configured")
	}

	url := c.endpoint(fmt.Sprintf("/draft_orders/%s/complete.json?payment_pending=%s",
		draftID, strconv.FormatBool(paymentPending)))
	resp, err := c.do(ctx, op, http.MethodPut, url, nil)
	if err != nil {
		return nil, err
	}

	out := &Completion{
		DraftID: draftID,
		Name:    gjson.GetBytes(resp, "draft_order.name").String(),
	}
	if orderID := gjson.GetBytes(resp, "draft_order.order_id"); orderID.Type != gjson.Null {
		out.OrderID = orderID.String()
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set(accessTokenHeader, c.cfg.AccessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

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
	return data, nil
}
