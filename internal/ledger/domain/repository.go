package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	List(ctx context.Context, db *gorm.DB, filter ListRequest, page pagination.Pagination) ([]*RevenueTransaction, error)
	FindBySource(ctx context.Context, db *gorm.DB, sourceType SourceType, sourceID int64) (*RevenueTransaction, error)
	Totals(ctx context.Context, db *gorm.DB, from, to time.Time) (*Totals, error)
	DailySummary(ctx context.Context, db *gorm.DB, from, to time.Time) ([]DailyRevenue, error)
}

type Totals struct {
	GrossCents    int64 `json:"gross_cents" gorm:"column:gross_cents"`
	RefundedCents int64 `json:"refunded_cents" gorm:"column:refunded_cents"`
	NetCents      int64 `json:"net_cents" gorm:"column:net_cents"`
	Count         int64 `json:"count" gorm:"column:count"`
}

type DailyRevenue struct {
	Day           string `json:"day" gorm:"column:day"`
	GrossCents    int64  `json:"gross_cents" gorm:"column:gross_cents"`
	RefundedCents int64  `json:"refunded_cents" gorm:"column:refunded_cents"`
	NetCents      int64  `json:"net_cents" gorm:"column:net_cents"`
	Count         int64  `json:"count" gorm:"column:count"`
}
