package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, order_number, channel, customer_name, customer_email, customer_phone, shipping_address,
		                     billing_address, notes, status, payment_method, payment_status, payment_ref,
		                     subtotal_cents, tax_cents, shipping_cents, discount_cents, total_cents, currency,
		                     expires_at, paid_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.OrderNumber,
		order.Channel,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.ShippingAddress,
		order.BillingAddress,
		order.Notes,
		order.Status,
		order.PaymentMethod,
		order.PaymentStatus,
		order.PaymentRef,
		order.SubtotalCents,
		order.TaxCents,
		order.ShippingCents,
		order.DiscountCents,
		order.TotalCents,
		order.Currency,
		order.ExpiresAt,
		order.PaidAt,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
	if err != nil {
		return err
	}

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO order_items (id, order_id, product_id, product_name, unit_price_cents, quantity, line_total_cents)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.OrderID,
			item.ProductID,
			item.ProductName,
			item.UnitPriceCents,
			item.Quantity,
			item.LineTotalCents,
		).Error; err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM orders WHERE id = ?`, id,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, number string) (*domain.Order, error) {
	var o domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM orders WHERE order_number = ?`, number,
	).Scan(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, orderID int64) ([]domain.OrderItem, error) {
	var items []domain.OrderItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, product_id, product_name, unit_price_cents, quantity, line_total_cents
		 FROM order_items WHERE order_id = ? ORDER BY id ASC`,
		orderID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Order, error) {
	var items []domain.Order
	stmt := db.WithContext(ctx).Model(&domain.Order{})

	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.PaymentStatus != "" {
		stmt = stmt.Where("payment_status = ?", filter.PaymentStatus)
	}
	if filter.Channel != "" {
		stmt = stmt.Where("channel = ?", filter.Channel)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at":  true,
		"updated_at":  true,
		"total_cents": true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id int64, paymentRef string, paidAt time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET payment_status = ?, payment_ref = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND payment_status = ?`,
		domain.PaymentStatusPaid,
		paymentRef,
		paidAt,
		time.Now().UTC(),
		id,
		domain.PaymentStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkFailed(ctx context.Context, db *gorm.DB, id int64, paymentRef string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET payment_status = ?, status = ?, payment_ref = ?, updated_at = ?
		 WHERE id = ? AND payment_status = ?`,
		domain.PaymentStatusFailed,
		domain.StatusCancelled,
		paymentRef,
		time.Now().UTC(),
		id,
		domain.PaymentStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) MarkRefunded(ctx context.Context, db *gorm.DB, id int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET payment_status = ?, status = ?, updated_at = ?
		 WHERE id = ? AND payment_status = ?`,
		domain.PaymentStatusRefunded,
		domain.StatusRefunded,
		time.Now().UTC(),
		id,
		domain.PaymentStatusPaid,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id int64, from, to domain.Status) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		time.Now().UTC(),
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) SetCheckoutSession(ctx context.Context, db *gorm.DB, id int64, sessionID, paymentURL string) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET checkout_session_id = ?, payment_url = ?, updated_at = ?
		 WHERE id = ? AND payment_status = ? AND checkout_session_id = ''`,
		sessionID,
		paymentURL,
		time.Now().UTC(),
		id,
		domain.PaymentStatusPending,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ListExpiredPending(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM orders
		 WHERE payment_status = ? AND expires_at IS NOT NULL AND expires_at <= ?
		 ORDER BY expires_at ASC LIMIT ?`,
		domain.PaymentStatusPending,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
