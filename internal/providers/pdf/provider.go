package pdf

import (
	"context"
	"io"
	"time"
)

// ReceiptData carries everything needed to render a printable receipt.
// Monetary values are in minor units.
type ReceiptData struct {
	StoreName     string
	ReceiptNumber string
	CustomerName  string
	PaymentMethod string
	Currency      string
	AmountDue     int64
	AmountPaid    int64
	ChangeDue     int64
	IssuedAt      time.Time
	Items         []ReceiptItem
}

type ReceiptItem struct {
	Description string
	Quantity    int
	UnitPrice   int64
	LineTotal   int64
}

type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error) {
	return nil, nil
}
