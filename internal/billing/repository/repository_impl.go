package repository

import (
	"context"

	"github.com/smallbiznis/storefront/internal/billing/domain"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, receipt *domain.Receipt) error {
	err := db.WithContext(ctx).Exec(
		`INSERT INTO billing_receipts (id, receipt_number, order_id, customer_name, payment_method,
		                               amount_due_cents, amount_paid_cents, change_due_cents, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		receipt.ID,
		receipt.ReceiptNumber,
		receipt.OrderID,
		receipt.CustomerName,
		receipt.PaymentMethod,
		receipt.AmountDueCents,
		receipt.AmountPaidCents,
		receipt.ChangeDueCents,
		receipt.Currency,
		receipt.CreatedAt,
	).Error
	if err != nil {
		return err
	}

	for i := range receipt.Items {
		item := &receipt.Items[i]
		item.ReceiptID = receipt.ID
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO billing_items (id, receipt_id, product_id, product_name, unit_price_cents, quantity, line_total_cents)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.ReceiptID,
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

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM billing_receipts WHERE id = ?`, id,
	).Scan(&receipt).Error
	if err != nil {
		return nil, err
	}
	if receipt.ID == 0 {
		return nil, nil
	}
	return &receipt, nil
}

func (r *repo) FindByNumber(ctx context.Context, db *gorm.DB, number string) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM billing_receipts WHERE receipt_number = ?`, number,
	).Scan(&receipt).Error
	if err != nil {
		return nil, err
	}
	if receipt.ID == 0 {
		return nil, nil
	}
	return &receipt, nil
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, receiptID int64) ([]domain.ReceiptItem, error) {
	var items []domain.ReceiptItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, receipt_id, product_id, product_name, unit_price_cents, quantity, line_total_cents
		 FROM billing_items WHERE receipt_id = ? ORDER BY id ASC`,
		receiptID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Receipt, error) {
	var items []domain.Receipt
	stmt := db.WithContext(ctx).Model(&domain.Receipt{})

	if filter.PaymentMethod != "" {
		stmt = stmt.Where("payment_method = ?", filter.PaymentMethod)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at":       true,
		"amount_due_cents": true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
