package service

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/internal/ledger/domain"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo domain.Repository
}

type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("ledger.service"),
		repo: p.Repo,
	}
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) (*domain.ListResponse, error) {
	filter, err := normalizeFilter(req)
	if err != nil {
		return nil, err
	}

	page := pagination.Pagination{
		PageToken: req.PageToken,
		PageSize:  option.PageSize(pagination.Pagination{PageSize: req.PageSize}),
	}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return nil, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(page.PageSize), cursorFor)
	if pageInfo != nil && pageInfo.HasMore && len(items) > page.PageSize {
		items = items[:page.PageSize]
	}

	resp := make([]domain.Response, 0, len(items))
	for _, item := range items {
		resp = append(resp, toResponse(item))
	}
	return &domain.ListResponse{Items: resp, PageInfo: pageInfo}, nil
}

func toResponse(item *domain.RevenueTransaction) domain.Response {
	return domain.Response{
		ID:            item.ID,
		SourceType:    string(item.SourceType),
		SourceNumber:  item.SourceNumber,
		AmountCents:   item.AmountCents,
		Currency:      item.Currency,
		PaymentStatus: item.PaymentStatus,
		OccurredAt:    item.OccurredAt,
	}
}

func cursorFor(item *domain.RevenueTransaction) string {
	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        strconv.FormatInt(item.ID, 10),
		CreatedAt: item.OccurredAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return ""
	}
	return token
}

func (s *Service) Summary(ctx context.Context, req domain.SummaryRequest) (*domain.SummaryResponse, error) {
	from, to, err := normalizeRange(req.From, req.To)
	if err != nil {
		return nil, err
	}

	totals, err := s.repo.Totals(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}

	daily, err := s.repo.DailySummary(ctx, s.db, from, to)
	if err != nil {
		return nil, err
	}

	return &domain.SummaryResponse{
		From:          from,
		To:            to,
		GrossCents:    totals.GrossCents,
		RefundedCents: totals.RefundedCents,
		NetCents:      totals.NetCents,
		Count:         totals.Count,
		Daily:         daily,
	}, nil
}

func (s *Service) ExportCSV(ctx context.Context, req domain.ListRequest, w io.Writer) error {
	filter, err := normalizeFilter(req)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "source_type", "source_number", "amount_cents", "currency", "payment_status", "occurred_at"}); err != nil {
		return err
	}

	// Walk the window page by page so a year of sales does not sit in
	// memory at once.
	page := pagination.Pagination{PageSize: 250}
	for {
		items, err := s.repo.List(ctx, s.db, filter, page)
		if err != nil {
			return err
		}

		pageInfo := pagination.BuildCursorPageInfo(items, int32(page.PageSize), cursorFor)
		if pageInfo != nil && pageInfo.HasMore && len(items) > page.PageSize {
			items = items[:page.PageSize]
		}

		for _, item := range items {
			record := []string{
				strconv.FormatInt(item.ID, 10),
				string(item.SourceType),
				item.SourceNumber,
				strconv.FormatInt(item.AmountCents, 10),
				item.Currency,
				item.PaymentStatus,
				item.OccurredAt.UTC().Format(time.RFC3339),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}

		if pageInfo == nil || !pageInfo.HasMore {
			break
		}
		page.PageToken = pageInfo.NextPageToken
	}

	writer.Flush()
	return writer.Error()
}

func normalizeFilter(req domain.ListRequest) (domain.ListRequest, error) {
	from, to, err := normalizeRange(req.From, req.To)
	if err != nil {
		return domain.ListRequest{}, err
	}
	return domain.ListRequest{
		SourceType:    strings.ToLower(strings.TrimSpace(req.SourceType)),
		PaymentStatus: strings.ToLower(strings.TrimSpace(req.PaymentStatus)),
		From:          from,
		To:            to,
	}, nil
}

func normalizeRange(from, to time.Time) (time.Time, time.Time, error) {
	now := time.Now().UTC()
	if to.IsZero() {
		to = now.Add(24 * time.Hour)
	}
	if from.IsZero() {
		from = to.AddDate(0, -1, 0)
	}
	if !from.Before(to) {
		return time.Time{}, time.Time{}, domain.ErrInvalidRange
	}
	return from.UTC(), to.UTC(), nil
}
