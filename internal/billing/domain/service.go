package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	// Create settles a counter sale in one step. Stock is reserved,
	// the receipt is stored, and the revenue row follows from the
	// insert. Change due is never negative.
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	GetByNumber(ctx context.Context, number string) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)

	// RenderPDF produces a printable receipt document.
	RenderPDF(ctx context.Context, id string) ([]byte, error)
}

type CreateRequest struct {
	CustomerName    string       `json:"customer_name"`
	PaymentMethod   string       `json:"payment_method"`
	AmountPaidCents int64        `json:"amount_paid_cents"`
	Items           []CreateItem `json:"items"`
}

type CreateItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type ListRequest struct {
	PaymentMethod string
	SortBy        string
	OrderBy       string
}

type Response struct {
	ID              string         `json:"id"`
	ReceiptNumber   string         `json:"receipt_number"`
	OrderID         *string        `json:"order_id,omitempty"`
	CustomerName    string         `json:"customer_name,omitempty"`
	PaymentMethod   string         `json:"payment_method"`
	AmountDueCents  int64          `json:"amount_due_cents"`
	AmountPaidCents int64          `json:"amount_paid_cents"`
	ChangeDueCents  int64          `json:"change_due_cents"`
	Currency        string         `json:"currency"`
	CreatedAt       time.Time      `json:"created_at"`
	Items           []ItemResponse `json:"items"`
}

type ItemResponse struct {
	ProductID      *string `json:"product_id,omitempty"`
	ProductName    string  `json:"product_name"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	Quantity       int     `json:"quantity"`
	LineTotalCents int64   `json:"line_total_cents"`
}

var (
	ErrEmptyCart           = errors.New("empty_cart")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrUnknownProduct      = errors.New("unknown_product")
	ErrInsufficientPayment = errors.New("insufficient_payment")
	ErrInvalidID           = errors.New("invalid_id")
	ErrNotFound            = errors.New("not_found")
)
