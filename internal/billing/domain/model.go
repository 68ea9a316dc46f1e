package domain

import "time"

type Receipt struct {
	ID              int64     `json:"id" gorm:"primaryKey"`
	ReceiptNumber   string    `json:"receipt_number" gorm:"type:text;not null;uniqueIndex:idx_billing_receipts_number"`
	OrderID         *int64    `json:"order_id,omitempty"`
	CustomerName    string    `json:"customer_name" gorm:"type:text"`
	PaymentMethod   string    `json:"payment_method" gorm:"type:text;not null"`
	AmountDueCents  int64     `json:"amount_due_cents" gorm:"not null"`
	AmountPaidCents int64     `json:"amount_paid_cents" gorm:"not null"`
	ChangeDueCents  int64     `json:"change_due_cents" gorm:"not null"`
	Currency        string    `json:"currency" gorm:"type:text;not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	Items []ReceiptItem `json:"items,omitempty" gorm:"-"`
}

func (Receipt) TableName() string { return "billing_receipts" }

type ReceiptItem struct {
	ID             int64  `json:"id" gorm:"primaryKey"`
	ReceiptID      int64  `json:"receipt_id" gorm:"not null;index:idx_billing_items_receipt_id"`
	ProductID      *int64 `json:"product_id,omitempty"`
	ProductName    string `json:"product_name" gorm:"type:text;not null"`
	UnitPriceCents int64  `json:"unit_price_cents" gorm:"not null"`
	Quantity       int    `json:"quantity" gorm:"not null"`
	LineTotalCents int64  `json:"line_total_cents" gorm:"not null"`
}

func (ReceiptItem) TableName() string { return "billing_items" }
