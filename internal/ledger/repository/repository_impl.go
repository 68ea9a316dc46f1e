package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/storefront/internal/ledger/domain"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRequest, page pagination.Pagination) ([]*domain.RevenueTransaction, error) {
	var items []*domain.RevenueTransaction
	stmt := db.WithContext(ctx).Model(&domain.RevenueTransaction{})

	if filter.SourceType != "" {
		stmt = stmt.Where("source_type = ?", filter.SourceType)
	}
	if filter.PaymentStatus != "" {
		stmt = stmt.Where("payment_status = ?", filter.PaymentStatus)
	}
	if !filter.From.IsZero() {
		stmt = stmt.Where("occurred_at >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		stmt = stmt.Where("occurred_at < ?", filter.To)
	}

	stmt = option.ApplyPagination(page, "occurred_at").Apply(stmt)

	if err := stmt.Order("occurred_at ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindBySource(ctx context.Context, db *gorm.DB, sourceType domain.SourceType, sourceID int64) (*domain.RevenueTransaction, error) {
	var tx domain.RevenueTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM revenue_transactions WHERE source_type = ? AND source_id = ?`,
		sourceType,
		sourceID,
	).Scan(&tx).Error
	if err != nil {
		return nil, err
	}
	if tx.ID == 0 {
		return nil, nil
	}
	return &tx, nil
}

func (r *repo) Totals(ctx context.Context, db *gorm.DB, from, to time.Time) (*domain.Totals, error) {
	var totals domain.Totals
	err := db.WithContext(ctx).Raw(
		`SELECT
		    COALESCE(SUM(amount_cents), 0) AS gross_cents,
		    COALESCE(SUM(CASE WHEN payment_status = 'refunded' THEN amount_cents ELSE 0 END), 0) AS refunded_cents,
		    COALESCE(SUM(CASE WHEN payment_status = 'paid' THEN amount_cents ELSE 0 END), 0) AS net_cents,
		    COUNT(*) AS count
		 FROM revenue_transactions
		 WHERE occurred_at >= ? AND occurred_at < ?`,
		from,
		to,
	).Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *repo) DailySummary(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.DailyRevenue, error) {
	var rows []domain.DailyRevenue
	err := db.WithContext(ctx).Raw(
		`SELECT
		    DATE(occurred_at) AS day,
		    COALESCE(SUM(amount_cents), 0) AS gross_cents,
		    COALESCE(SUM(CASE WHEN payment_status = 'refunded' THEN amount_cents ELSE 0 END), 0) AS refunded_cents,
		    COALESCE(SUM(CASE WHEN payment_status = 'paid' THEN amount_cents ELSE 0 END), 0) AS net_cents,
		    COUNT(*) AS count
		 FROM revenue_transactions
		 WHERE occurred_at >= ? AND occurred_at < ?
		 GROUP BY DATE(occurred_at)
		 ORDER BY day ASC`,
		from,
		to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
