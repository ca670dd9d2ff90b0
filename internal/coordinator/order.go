package coordinator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jcmexdev/storefront-core/internal/commerce"
	"github.com/jcmexdev/storefront-core/internal/config"
	"github.com/jcmexdev/storefront-core/internal/pkg/apperr"
)

// PaymentMethod tags how the customer pays. Only PaymentCOD leaves the
// order payment-pending at completion; every other value is prepaid.
type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// PaymentPending reports whether completion must mark the order as awaiting
// payment.
func (p PaymentMethod) PaymentPending() bool {
	return p == PaymentCOD
}

func (p PaymentMethod) Label() string {
	switch p {
	case PaymentCOD:
		return "Cash on Delivery"
	case PaymentBankTransfer:
		return "Bank Transfer"
	case "":
		return "Unspecified"
	default:
		return string(p)
	}
}

type LineItem struct {
	VariantID string  `json:"variantId"`
	Title     string  `json:"title,omitempty"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// OrderRequest is a client-submitted order. Totals are taken as supplied.
type OrderRequest struct {
	OrderNumber     string        `json:"orderNumber"`
	CustomerName    string        `json:"customerName"`
	CustomerEmail   string        `json:"customerEmail"`
	CustomerPhone   string        `json:"customerPhone"`
	CustomerAddress string        `json:"customerAddress"`
	City            string        `json:"city"`
	Items           []LineItem    `json:"items"`
	Subtotal        float64       `json:"subtotal"`
	DeliveryCharge  float64       `json:"deliveryCharge"`
	Total           float64       `json:"total"`
	PaymentMethod   PaymentMethod `json:"paymentMethod"`
}

const variantGIDPrefix = "gid://shopify/ProductVariant/"

// Validate checks the fields the commerce platform cannot do without.
func (r OrderRequest) Validate() error {
	const op = "coordinator.Submit"
	if strings.TrimSpace(r.OrderNumber) == "" {
		return apperr.Validation(op, "missing required field: orderNumber")
	}
	if strings.TrimSpace(r.CustomerEmail) == "" {
		return apperr.Validation(op, "missing required field: customerEmail")
	}
	if len(r.Items) == 0 {
		return apperr.Validation(op, "items array is required and must not be empty")
	}
	for i, item := range r.Items {
		if _, err := parseVariantID(item.VariantID); err != nil {
			return apperr.Validation(op, "items[%d]: %v", i, err)
		}
		if item.Quantity < 1 {
			return apperr.Validation(op, "items[%d]: quantity must be at least 1", i)
		}
	}
	return nil
}

// parseVariantID accepts a numeric id or a variant GID.
func parseVariantID(raw string) (int64, error) {
	s := strings.TrimPrefix(strings.TrimSpace(raw), variantGIDPrefix)
	if s == "" {
		return 0, fmt.Errorf("variantId is required")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("variantId %q is not a product variant id", raw)
	}
	return id, nil
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

// buildDraftOrder maps a validated request onto the draft order payload.
// Shipping and billing addresses are the same; the country is the merchant's.
func buildDraftOrder(r OrderRequest, merchant config.Commerce) commerce.DraftOrder {
	first, last := splitName(r.CustomerName)
	addr := commerce.Address{
		FirstName:   first,
		LastName:    last,
		Address1:    r.CustomerAddress,
		City:        r.City,
		Phone:       r.CustomerPhone,
		Country:     merchant.CountryName,
		CountryCode: merchant.CountryCode,
	}

	items := make([]commerce.LineItem, 0, len(r.Items))
	for _, item := range r.Items {
		id, _ := parseVariantID(item.VariantID)
		items = append(items, commerce.LineItem{
			VariantID: id,
			Quantity:  item.Quantity,
			Price:     formatMoney(item.Price),
			Title:     item.Title,
		})
	}

	tags := []string{}
	if merchant.OrderTag != "" {
		tags = append(tags, merchant.OrderTag)
	}
	if r.PaymentMethod != "" {
		tags = append(tags, string(r.PaymentMethod))
	}

	return commerce.DraftOrder{
		Email: r.CustomerEmail,
		Note:  fmt.Sprintf("App order %s - %s", r.OrderNumber, r.PaymentMethod.Label()),
		NoteAttributes: []commerce.NoteAttribute{
			{Name: "order_number", Value: r.OrderNumber},
			{Name: "customer_name", Value: r.CustomerName},
			{Name: "phone", Value: r.CustomerPhone},
			{Name: "address", Value: r.CustomerAddress},
			{Name: "city", Value: r.City},
			{Name: "payment_method", Value: string(r.PaymentMethod)},
		},
		LineItems:       items,
		ShippingAddress: addr,
		BillingAddress:  addr,
		ShippingLine: &commerce.ShippingLine{
			Title:  "Delivery to " + r.City,
			Price:  formatMoney(r.DeliveryCharge),
			Custom: true,
		},
		Tags: strings.Join(tags, ", "),
	}
}
