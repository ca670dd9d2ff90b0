package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jcmexdev/storefront-core/internal/api-gateway/core/ports"
	"github.com/jcmexdev/storefront-core/internal/coordinator"
	"github.com/jcmexdev/storefront-core/internal/coordinator/sagalog"
	"github.com/jcmexdev/storefront-core/internal/devicetoken"
	"github.com/jcmexdev/storefront-core/internal/notification"
	"github.com/jcmexdev/storefront-core/internal/notification/history"
	"github.com/jcmexdev/storefront-core/internal/pkg/apperr"
	"github.com/jcmexdev/storefront-core/internal/pkg/interceptors"
	"github.com/jcmexdev/storefront-core/internal/pkg/telemetry"
)

const maxBodyBytes = 1 << 20

// Readiness reports which external credentials are present.
type Readiness struct {
	Service            string
	CommerceConfigured bool
	PushConfigured     bool
}

// Handler serves the order and notification routes.
type Handler struct {
	orders    ports.OrderSubmitter
	devices   ports.DeviceRegistry
	notifier  ports.NotificationDispatcher
	history   ports.NotificationHistory
	readiness Readiness
	now       func() time.Time
}

func NewHandler(
	orders ports.OrderSubmitter,
	devices ports.DeviceRegistry,
	notifier ports.NotificationDispatcher,
	inbox ports.NotificationHistory,
	readiness Readiness,
) *Handler {
	return &Handler{
		orders:    orders,
		devices:   devices,
		notifier:  notifier,
		history:   inbox,
		readiness: readiness,
		now:       time.Now,
	}
}

// CreateOrder submits the order to the commerce platform and reports the
// composite outcome.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if !decode(w, r, &req) {
		return
	}

	slog.InfoContext(r.Context(), "creating order",
		"request_id", interceptors.RequestID(r.Context()), "order_number", req.OrderNumber)

	res, err := h.orders.Submit(r.Context(), toOrderRequest(req))
	if err != nil {
		draftID := ""
		if res != nil {
			draftID = res.ProvisionalID
		}
		writeAppError(w, r, err, draftID)
		return
	}

	msg := "Order created successfully in Shopify"
	if res.FinalizedID == nil {
		msg = "Draft order created but not completed; it remains in Shopify for review"
	}
	if res.Replayed {
		msg = "Order was already submitted; returning the earlier result"
	}
	writeJSON(w, http.StatusOK, OrderResponse{
		Success:      true,
		DraftOrderID: res.ProvisionalID,
		OrderID:      res.FinalizedID,
		OrderName:    res.OrderName,
		Replayed:     res.Replayed,
		Message:      msg,
	})
}

func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")
	if orderNumber == "" {
		writeAppError(w, r, apperr.Validation("httpx.GetSubmission", "order number is required"), "")
		return
	}

	entry, err := h.orders.LatestAttempt(r.Context(), orderNumber)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, SubmissionResponse{Success: true, Submission: toSubmissionView(entry)})
}

func (h *Handler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if !decode(w, r, &req) {
		return
	}

	if _, err := h.devices.Upsert(req.Token, devicetoken.Attributes{
		UserID:   req.UserID,
		Email:    req.Email,
		Platform: req.Platform,
		DeviceID: req.DeviceID,
	}); err != nil {
		writeAppError(w, r, err, "")
		return
	}

	slog.InfoContext(r.Context(), "device registered", "token_preview", telemetry.TokenPreview(req.Token), "platform", req.Platform)
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Device registered successfully"})
}

func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	var req UnregisterRequest
	if !decode(w, r, &req) {
		return
	}

	removed, err := h.devices.Unregister(req.Token)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	if !removed {
		writeAppError(w, r, apperr.NotFound("httpx.Unregister", "device token is not registered"), "")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Device unregistered successfully"})
}

func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.notifier.Dispatch(r.Context(), notification.Request{
		Title:       req.Title,
		Body:        req.Body,
		Tokens:      req.Tokens,
		Data:        req.Data,
		Icon:        req.Icon,
		ClickAction: req.ClickAction,
	})
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, SendResponse{
		Success:        true,
		RecipientCount: res.RecipientCount,
		FCMResponse:    res.GatewayResponse,
		Message:        fmt.Sprintf("Notification sent to %d device(s)", res.RecipientCount),
	})
}

func (h *Handler) SendToUser(w http.ResponseWriter, r *http.Request) {
	var req SendToUserRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.notifier.Dispatch(r.Context(), notification.Request{
		Title:       req.Title,
		Body:        req.Body,
		Selector:    &devicetoken.Selector{UserID: req.UserID, Email: req.Email},
		Data:        req.Data,
		Icon:        req.Icon,
		ClickAction: req.ClickAction,
	})
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	notified := res.RecipientCount
	writeJSON(w, http.StatusOK, SendResponse{
		Success:         true,
		RecipientCount:  notified,
		DevicesNotified: &notified,
		FCMResponse:     res.GatewayResponse,
		Message:         fmt.Sprintf("Notification sent to %d device(s)", notified),
	})
}

// StoreReceived records a notification the device reports as displayed.
func (h *Handler) StoreReceived(w http.ResponseWriter, r *http.Request) {
	var req StoreReceivedRequest
	if !decode(w, r, &req) {
		return
	}

	received := history.Received{Token: req.Token, Title: req.Title, Body: req.Body, Data: req.Data}
	if req.Timestamp != nil {
		received.Timestamp = req.Timestamp.UTC()
	}
	entry, err := h.history.RecordReceived(received)
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}

	slog.InfoContext(r.Context(), "notification receipt stored",
		"token_preview", telemetry.TokenPreview(entry.Token), "user_id", entry.UserID)
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "Notification stored successfully"})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.ByToken(r.URL.Query().Get("token"))
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Success: true, Count: len(entries), Notifications: entries})
}

func (h *Handler) UserNotifications(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.ByUser(r.URL.Query().Get("userId"))
	if err != nil {
		writeAppError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Success: true, Count: len(entries), Notifications: entries})
}

// ListTokens is diagnostic; tokens are redacted by the registry.
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	records := h.devices.List()
	writeJSON(w, http.StatusOK, TokensResponse{Success: true, Count: len(records), Tokens: records})
}

func (h *Handler) PushStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		Success: true,
		Status: PushStatusDTO{
			FCMConfigured:       h.readiness.PushConfigured,
			RegisteredDevices:   h.devices.Count(),
			StoredNotifications: h.history.Count(),
		},
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:             "ok",
		Service:            h.readiness.Service,
		CommerceConfigured: h.readiness.CommerceConfigured,
		PushConfigured:     h.readiness.PushConfigured,
		RegisteredDevices:  h.devices.Count(),
		Timestamp:          h.now().UTC(),
	})
}

func toOrderRequest(req CreateOrderRequest) coordinator.OrderRequest {
	items := make([]coordinator.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, coordinator.LineItem{
			VariantID: it.VariantID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			Price:     it.Price,
		})
	}
	return coordinator.OrderRequest{
		OrderNumber:     req.OrderNumber,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		CustomerAddress: req.CustomerAddress,
		City:            req.City,
		Items:           items,
		Subtotal:        req.Subtotal,
		DeliveryCharge:  req.DeliveryCharge,
		Total:           req.Total,
		PaymentMethod:   coordinator.PaymentMethod(req.PaymentMethod),
	}
}

func toSubmissionView(entry *sagalog.SagaLog) SubmissionView {
	errs := []string{}
	if entry.ErrorMessages != "" {
		_ = json.Unmarshal([]byte(entry.ErrorMessages), &errs)
	}
	return SubmissionView{
		SagaID:       entry.SagaID,
		OrderNumber:  entry.OrderNumber,
		Status:       string(entry.Status),
		Step:         entry.CurrentStep,
		DraftOrderID: entry.ProvisionalID,
		OrderID:      entry.FinalizedID,
		Errors:       errs,
		TraceID:      entry.TraceID,
		UpdatedAt:    entry.UpdatedAt,
	}
}

// decode reads a JSON body into v, replying 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		msg := "invalid JSON body"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			msg = "request body too large"
		}
		writeAppError(w, r, apperr.Validation("httpx.decode", "%s", msg), "")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error, draftOrderID string) {
	status := apperr.HTTPStatus(err)
	upstreamStatus, upstreamBody := apperr.UpstreamDetail(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "status", status, "error", err,
			"upstream_status", upstreamStatus, "upstream_body", upstreamBody)
	}
	writeJSON(w, status, ErrorResponse{
		Success:        false,
		Error:          apperr.Message(err),
		DraftOrderID:   draftOrderID,
		UpstreamStatus: upstreamStatus,
		UpstreamBody:   upstreamBody,
	})
}
