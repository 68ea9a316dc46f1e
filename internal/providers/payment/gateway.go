package payment

import (
	"context"

	"github.com/smallbiznis/storefront/internal/payment/domain"
)

// CheckoutSessionRequest describes a hosted checkout for a single order.
// Amounts are in minor units.
type CheckoutSessionRequest struct {
	OrderID       string
	OrderNumber   string
	Currency      string
	AmountCents   int64
	Description   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the provider-side session for a pending order.
type CheckoutSession struct {
	ID            string
	URL           string
	PaymentStatus string
	OrderID       string
	AmountCents   int64
	Currency      string
}

// Paid reports whether the provider settled the session.
func (s *CheckoutSession) Paid() bool {
	return s != nil && s.PaymentStatus == "paid"
}

// Gateway is the outbound side of the payment bridge.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error)
}

// disabledGateway is used when no provider credentials are configured.
type disabledGateway struct{}

func (disabledGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	return nil, domain.ErrProviderUnavailable
}

func (disabledGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	return nil, domain.ErrProviderUnavailable
}
