// Package notification fans a push notification out to registered devices
// with a single gateway call.
package notification

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/jcmexdev/storefront-core/internal/devicetoken"
	"github.com/jcmexdev/storefront-core/internal/notification/fcm"
	"github.com/jcmexdev/storefront-core/internal/pkg/apperr"
	"github.com/jcmexdev/storefront-core/internal/pkg/telemetry"
)

const (
	ModeDirect   = "direct"
	ModeSelector = "selector"
)

// Gateway delivers one multicast message.
type Gateway interface {
	Configured() bool
	Send(ctx context.Context, msg fcm.Message) (json.RawMessage, error)
}

// TokenResolver resolves a selector to tokens. *devicetoken.Registry
// satisfies it.
type TokenResolver interface {
	LookupBySelector(sel devicetoken.Selector) []string
}

// Request targets either Tokens (direct) or Selector, never both.
type Request struct {
	Title       string
	Body        string
	Tokens      []string
	Selector    *devicetoken.Selector
	Data        map[string]any
	Icon        string
	ClickAction string
}

type Result struct {
	Success         bool            `json:"success"`
	RecipientCount  int             `json:"recipientCount"`
	GatewayResponse json.RawMessage `json:"gatewayResponse,omitempty"`
}

type Dispatcher struct {
	tokens  TokenResolver
	gateway Gateway
	metrics *telemetry.Metrics
}

func NewDispatcher(tokens TokenResolver, gateway Gateway, metrics *telemetry.Metrics) *Dispatcher {
	return &Dispatcher{tokens: tokens, gateway: gateway, metrics: metrics}
}

// Dispatch resolves the recipients of req and sends one gateway request.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (*Result, error) {
	mode := ModeDirect
	if req.Selector != nil {
		mode = ModeSelector
	}

	res, err := d.dispatch(ctx, mode, req)
	if err != nil {
		d.metrics.ObserveDispatch(mode, string(apperr.KindOf(err)))
		return nil, err
	}
	d.metrics.ObserveDispatch(mode, "sent")
	return res, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, mode string, req Request) (*Result, error) {
	const op = "notification.Dispatch"

	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Body) == "" {
		return nil, apperr.Validation(op, "title and body are required")
	}

	var tokens []string
	switch {
	case req.Selector != nil && len(req.Tokens) > 0:
		return nil, apperr.Validation(op, "provide either tokens or a user selector, not both")
	case req.Selector != nil:
		if req.Selector.Empty() {
			return nil, apperr.Validation(op, "email or userId is required")
		}
		tokens = d.tokens.LookupBySelector(*req.Selector)
		if len(tokens) == 0 {
			return nil, apperr.NotFound(op, "no devices registered for this user")
		}
	default:
		tokens = dedupe(req.Tokens)
		if len(tokens) == 0 {
			return nil, apperr.Validation(op, "tokens array is required and must not be empty")
		}
	}

	if !d.gateway.Configured() {
		return nil, apperr.Configuration(op, "push gateway server key is not configured")
	}

	raw, err := d.gateway.Send(ctx, fcm.Message{
		RegistrationIDs: tokens,
		Notification: fcm.Notification{
			Title:       req.Title,
			Body:        req.Body,
			Icon:        req.Icon,
			ClickAction: req.ClickAction,
		},
		Data: req.Data,
	})
	if err != nil {
		slog.ErrorContext(ctx, "push gateway call failed",
			"mode", mode, "recipients", len(tokens), "first_token_preview", telemetry.TokenPreview(tokens[0]), "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "notification dispatched", "mode", mode, "recipients", len(tokens))
	return &Result{Success: true, RecipientCount: len(tokens), GatewayResponse: raw}, nil
}

// dedupe drops blanks and repeats, keeping first-seen order.
func dedupe(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
