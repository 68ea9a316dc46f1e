package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Order, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Order, error)
	FindItems(ctx context.Context, db *gorm.DB, orderID int64) ([]OrderItem, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Order, error)

	// MarkPaid performs the pending to paid transition. It reports
	// false when the order was not in the pending state.
	MarkPaid(ctx context.Context, db *gorm.DB, id int64, paymentRef string, paidAt time.Time) (bool, error)
	// MarkFailed performs the pending to failed transition. It reports
	// false when the order was not in the pending state.
	MarkFailed(ctx context.Context, db *gorm.DB, id int64, paymentRef string) (bool, error)
	// MarkRefunded performs the paid to refunded transition. It reports
	// false when the order was not in the paid state.
	MarkRefunded(ctx context.Context, db *gorm.DB, id int64) (bool, error)

	// UpdateStatus moves fulfillment from one state to another. It
	// reports false when the order was not in the from state.
	UpdateStatus(ctx context.Context, db *gorm.DB, id int64, from, to Status) (bool, error)

	// SetCheckoutSession stores the provider session on a pending order
	// that does not have one yet. It reports false otherwise.
	SetCheckoutSession(ctx context.Context, db *gorm.DB, id int64, sessionID, paymentURL string) (bool, error)

	ListExpiredPending(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Order, error)
}
