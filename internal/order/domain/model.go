package domain

import "time"

type Channel string

const (
	ChannelOnline Channel = "online"
	ChannelPOS    Channel = "pos"
)

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Status tracks fulfillment, independently of how the payment went.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusRefunded   Status = "refunded"
)

type Order struct {
	ID                int64         `json:"id" gorm:"primaryKey"`
	OrderNumber       string        `json:"order_number" gorm:"type:text;not null;uniqueIndex:idx_orders_order_number"`
	Channel           Channel       `json:"channel" gorm:"type:text;not null"`
	CustomerName      string        `json:"customer_name" gorm:"type:text;not null"`
	CustomerEmail     string        `json:"customer_email" gorm:"type:text"`
	CustomerPhone     string        `json:"customer_phone" gorm:"type:text"`
	ShippingAddress   string        `json:"shipping_address" gorm:"type:text"`
	BillingAddress    string        `json:"billing_address" gorm:"type:text"`
	Notes             string        `json:"notes" gorm:"type:text"`
	Status            Status        `json:"status" gorm:"type:text;not null"`
	PaymentMethod     string        `json:"payment_method" gorm:"type:text;not null"`
	PaymentStatus     PaymentStatus `json:"payment_status" gorm:"type:text;not null"`
	PaymentRef        string        `json:"payment_ref" gorm:"type:text"`
	CheckoutSessionID string        `json:"checkout_session_id" gorm:"type:text"`
	PaymentURL        string        `json:"payment_url" gorm:"type:text"`
	SubtotalCents     int64         `json:"subtotal_cents" gorm:"not null"`
	TaxCents          int64         `json:"tax_cents" gorm:"not null"`
	ShippingCents     int64         `json:"shipping_cents" gorm:"not null"`
	DiscountCents     int64         `json:"discount_cents" gorm:"not null"`
	TotalCents        int64         `json:"total_cents" gorm:"not null"`
	Currency          string        `json:"currency" gorm:"type:text;not null"`
	ExpiresAt         *time.Time    `json:"expires_at,omitempty"`
	PaidAt            *time.Time    `json:"paid_at,omitempty"`
	CreatedAt         time.Time     `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time     `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`

	Items []OrderItem `json:"items,omitempty" gorm:"-"`
}

func (Order) TableName() string { return "orders" }

type OrderItem struct {
	ID             int64  `json:"id" gorm:"primaryKey"`
	OrderID        int64  `json:"order_id" gorm:"not null;index:idx_order_items_order_id"`
	ProductID      *int64 `json:"product_id,omitempty"`
	ProductName    string `json:"product_name" gorm:"type:text;not null"`
	UnitPriceCents int64  `json:"unit_price_cents" gorm:"not null"`
	Quantity       int    `json:"quantity" gorm:"not null"`
	LineTotalCents int64  `json:"line_total_cents" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }
