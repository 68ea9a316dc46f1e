package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/smallbiznis/storefront/pkg/db/pagination"
)

type Service interface {
	List(ctx context.Context, req ListRequest) (*ListResponse, error)
	Summary(ctx context.Context, req SummaryRequest) (*SummaryResponse, error)

	// ExportCSV streams the ledger rows in the requested window as CSV.
	ExportCSV(ctx context.Context, req ListRequest, w io.Writer) error
}

type ListRequest struct {
	SourceType    string
	PaymentStatus string
	From          time.Time
	To            time.Time
	PageToken     string
	PageSize      int
}

type ListResponse struct {
	Items    []Response           `json:"items"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}

type SummaryRequest struct {
	From time.Time
	To   time.Time
}

type Response struct {
	ID            int64     `json:"id"`
	SourceType    string    `json:"source_type"`
	SourceNumber  string    `json:"source_number"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	PaymentStatus string    `json:"payment_status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type SummaryResponse struct {
	From          time.Time      `json:"from"`
	To            time.Time      `json:"to"`
	GrossCents    int64          `json:"gross_cents"`
	RefundedCents int64          `json:"refunded_cents"`
	NetCents      int64          `json:"net_cents"`
	Count         int64          `json:"count"`
	Daily         []DailyRevenue `json:"daily"`
}

var ErrInvalidRange = errors.New("invalid_range")
