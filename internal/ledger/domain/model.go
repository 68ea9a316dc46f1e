package domain

import "time"

type SourceType string

const (
	SourceOrder   SourceType = "order"
	SourceReceipt SourceType = "receipt"
)

// RevenueTransaction rows are written by database triggers when paid
// orders and receipts land. Application code only ever reads them.
type RevenueTransaction struct {
	ID            int64      `json:"id" gorm:"primaryKey"`
	SourceType    SourceType `json:"source_type" gorm:"type:text;not null"`
	SourceID      int64      `json:"source_id" gorm:"not null"`
	SourceNumber  string     `json:"source_number" gorm:"type:text;not null"`
	AmountCents   int64      `json:"amount_cents" gorm:"not null"`
	Currency      string     `json:"currency" gorm:"type:text;not null"`
	PaymentStatus string     `json:"payment_status" gorm:"type:text;not null"`
	OccurredAt    time.Time  `json:"occurred_at" gorm:"not null"`
	CreatedAt     time.Time  `json:"created_at" gorm:"not null"`
}

func (RevenueTransaction) TableName() string { return "revenue_transactions" }
