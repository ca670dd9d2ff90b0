package httpx

import (
	"encoding/json"
	"time"

	"github.com/jcmexdev/storefront-core/internal/devicetoken"
	"github.com/jcmexdev/storefront-core/internal/notification/history"
)

type CreateOrderRequest struct {
	OrderNumber     string               `json:"orderNumber"`
	CustomerName    string               `json:"customerName"`
	CustomerEmail   string               `json:"customerEmail"`
	CustomerPhone   string               `json:"customerPhone"`
	CustomerAddress string               `json:"customerAddress"`
	City            string               `json:"city"`
	Items           []CreateOrderItemDTO `json:"items"`
	Subtotal        float64              `json:"subtotal"`
	DeliveryCharge  float64              `json:"deliveryCharge"`
	Total           float64              `json:"total"`
	PaymentMethod   string               `json:"paymentMethod"`
}

type CreateOrderItemDTO struct {
	VariantID string  `json:"variantId"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type OrderResponse struct {
	Success      bool    `json:"success"`
	DraftOrderID string  `json:"draftOrderId"`
	OrderID      *string `json:"orderId"`
	OrderName    string  `json:"orderName,omitempty"`
	Replayed     bool    `json:"replayed"`
	Message      string  `json:"message"`
}

type SubmissionResponse struct {
	Success    bool           `json:"success"`
	Submission SubmissionView `json:"submission"`
}

type SubmissionView struct {
	SagaID       string    `json:"sagaId"`
	OrderNumber  string    `json:"orderNumber"`
	Status       string    `json:"status"`
	Step         string    `json:"step,omitempty"`
	DraftOrderID string    `json:"draftOrderId,omitempty"`
	OrderID      string    `json:"orderId,omitempty"`
	Errors       []string  `json:"errors"`
	TraceID      string    `json:"traceId,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type SubscribeRequest struct {
	Token    string `json:"token"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Platform string `json:"platform"`
	DeviceID string `json:"deviceId"`
}

type UnregisterRequest struct {
	Token string `json:"token"`
}

type SendRequest struct {
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Tokens      []string       `json:"tokens"`
	Data        map[string]any `json:"data"`
	Icon        string         `json:"icon"`
	ClickAction string         `json:"clickAction"`
}

type SendToUserRequest struct {
	Email       string         `json:"email"`
	UserID      string         `json:"userId"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	Data        map[string]any `json:"data"`
	Icon        string         `json:"icon"`
	ClickAction string         `json:"clickAction"`
}

type SendResponse struct {
	Success         bool            `json:"success"`
	RecipientCount  int             `json:"recipientCount"`
	DevicesNotified *int            `json:"devicesNotified,omitempty"`
	FCMResponse     json.RawMessage `json:"fcmResponse"`
	Message         string          `json:"message"`
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type TokensResponse struct {
	Success bool                 `json:"success"`
	Count   int                  `json:"count"`
	Tokens  []devicetoken.Record `json:"tokens"`
}

type StatusResponse struct {
	Success bool          `json:"success"`
	Status  PushStatusDTO `json:"status"`
}

type PushStatusDTO struct {
	FCMConfigured       bool `json:"fcmConfigured"`
	RegisteredDevices   int  `json:"registeredDevices"`
	StoredNotifications int  `json:"storedNotifications"`
}

type StoreReceivedRequest struct {
	Token     string         `json:"token"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Data      map[string]any `json:"data"`
	Timestamp *time.Time     `json:"timestamp"`
}

type HistoryResponse struct {
	Success       bool            `json:"success"`
	Count         int             `json:"count"`
	Notifications []history.Entry `json:"notifications"`
}

type HealthResponse struct {
	Status             string    `json:"status"`
	Service            string    `json:"service"`
	CommerceConfigured bool      `json:"commerceConfigured"`
	PushConfigured     bool      `json:"pushConfigured"`
	RegisteredDevices  int       `json:"registeredDevices"`
	Timestamp          time.Time `json:"timestamp"`
}

type ErrorResponse struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	DraftOrderID   string `json:"draftOrderId,omitempty"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
	UpstreamBody   string `json:"upstreamBody,omitempty"`
}
