package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	GetByNumber(ctx context.Context, number string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)

	// MarkPaid transitions a pending order to paid. Calling it again
	// for an already paid order is a no-op and returns the order.
	MarkPaid(ctx context.Context, orderID int64, paymentRef string) (*Response, error)
	// MarkFailed transitions a pending order to failed and releases
	// its reserved stock.
	MarkFailed(ctx context.Context, orderID int64, paymentRef string) (*Response, error)
	// MarkRefunded transitions a paid order to refunded.
	MarkRefunded(ctx context.Context, orderID int64) (*Response, error)

	// UpdateStatus advances the fulfillment status along the allowed
	// transitions (pending, processing, shipped, delivered, cancelled).
	UpdateStatus(ctx context.Context, orderID int64, status string) (*Response, error)

	// AttachCheckoutSession stores the provider checkout session on a
	// pending order so repeat checkout calls reuse it.
	AttachCheckoutSession(ctx context.Context, orderID int64, sessionID, paymentURL string) error

	// ExpirePending fails pending orders whose checkout window has
	// lapsed and returns how many were expired.
	ExpirePending(ctx context.Context, now time.Time) (int, error)
}

type CreateRequest struct {
	Channel         string       `json:"channel"`
	CustomerName    string       `json:"customer_name"`
	CustomerEmail   string       `json:"customer_email"`
	CustomerPhone   string       `json:"customer_phone"`
	ShippingAddress string       `json:"shipping_address"`
	BillingAddress  string       `json:"billing_address"`
	Notes           string       `json:"notes"`
	PaymentMethod   string       `json:"payment_method"`
	DiscountCents   int64        `json:"discount_cents"`
	Items           []CreateItem `json:"items"`
}

type CreateItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ListRequest struct {
	Status        string
	PaymentStatus string
	Channel       string
	SortBy        string
	OrderBy       string
}

type Response struct {
	ID                string         `json:"id"`
	OrderNumber       string         `json:"order_number"`
	Channel           string         `json:"channel"`
	CustomerName      string         `json:"customer_name"`
	CustomerEmail     string         `json:"customer_email,omitempty"`
	CustomerPhone     string         `json:"customer_phone,omitempty"`
	ShippingAddress   string         `json:"shipping_address,omitempty"`
	BillingAddress    string         `json:"billing_address,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	Status            string         `json:"status"`
	PaymentMethod     string         `json:"payment_method"`
	PaymentStatus     string         `json:"payment_status"`
	PaymentRef        string         `json:"payment_ref,omitempty"`
	CheckoutSessionID string         `json:"checkout_session_id,omitempty"`
	PaymentURL        string         `json:"payment_url,omitempty"`
	SubtotalCents     int64          `json:"subtotal_cents"`
	TaxCents          int64          `json:"tax_cents"`
	ShippingCents     int64          `json:"shipping_cents"`
	DiscountCents     int64          `json:"discount_cents"`
	TotalCents        int64          `json:"total_cents"`
	Currency          string         `json:"currency"`
	ExpiresAt         *time.Time     `json:"expires_at,omitempty"`
	PaidAt            *time.Time     `json:"paid_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	Items             []ItemResponse `json:"items"`
}

type ItemResponse struct {
	ProductID      *string `json:"product_id,omitempty"`
	ProductName    string  `json:"product_name"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Quantity       int     `json:"quantity"`
	LineTotalCents int64   `json:"line_total_cents"`
}

var (
	ErrEmptyCart         = errors.New("empty_cart")
	ErrInvalidQuantity   = errors.New("invalid_quantity")
	ErrInvalidCustomer   = errors.New("invalid_customer")
	ErrInvalidChannel    = errors.New("invalid_channel")
	ErrUnknownProduct    = errors.New("unknown_product")
	ErrInvalidDiscount   = errors.New("invalid_discount")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("not_found")
	ErrInvalidTransition = errors.New("invalid_payment_transition")
)

// statusTransitions names the next fulfillment states allowed from each
// state. Terminal states have no entry.
var statusTransitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// CanTransitionStatus reports whether fulfillment may move from one
// state to the next.
func CanTransitionStatus(from, to Status) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s names a fulfillment state.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}
