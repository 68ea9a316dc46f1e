package service

import (
	"context"
	"io"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/storefront/internal/billing/domain"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"github.com/smallbiznis/storefront/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        domain.Repository
	CatalogRepo catalogdomain.Repository
	Store       *config.StoreConfigHolder
	PDF         pdf.Provider
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        domain.Repository
	catalogRepo catalogdomain.Repository
	genID       *snowflake.Node
	store       *config.StoreConfigHolder
	pdf         pdf.Provider
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("billing.service"),
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
		genID:       p.GenID,
		store:       p.Store,
		pdf:         p.PDF,
		metrics:     p.Metrics,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
	}

	storeCfg := s.store.Get()
	now := time.Now().UTC()

	receipt := &domain.Receipt{
		ID:              s.genID.Generate().Int64(),
		ReceiptNumber:   newReceiptNumber(now),
		CustomerName:    strings.TrimSpace(req.CustomerName),
		PaymentMethod:   normalizePaymentMethod(req.PaymentMethod),
		AmountPaidCents: req.AmountPaidCents,
		Currency:        storeCfg.Currency,
		CreatedAt:       now,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var subtotal int64
		for _, reqItem := range req.Items {
			productID, err := snowflake.ParseString(strings.TrimSpace(reqItem.ProductID))
			if err != nil {
				return domain.ErrUnknownProduct
			}

			product, err := s.catalogRepo.FindProductByID(ctx, tx, productID.Int64())
			if err != nil {
				return err
			}
			if product == nil || !product.Active {
				return domain.ErrUnknownProduct
			}

			ok, err := s.catalogRepo.DecrementStock(ctx, tx, product.ID, reqItem.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &catalogdomain.InsufficientStockError{
					ProductID:   product.ID,
					ProductName: product.Name,
					Requested:   reqItem.Quantity,
					Available:   product.StockQuantity,
				}
			}

			lineTotal := product.PriceCents * int64(reqItem.Quantity)
			subtotal += lineTotal
			itemProductID := product.ID
			receipt.Items = append(receipt.Items, domain.ReceiptItem{
				ID:             s.genID.Generate().Int64(),
				ProductID:      &itemProductID,
				ProductName:    product.Name,
				UnitPriceCents: product.PriceCents,
				Quantity:       reqItem.Quantity,
				LineTotalCents: lineTotal,
			})
		}

		receipt.AmountDueCents = subtotal + taxFor(subtotal, storeCfg.TaxRate)
		if receipt.AmountPaidCents < receipt.AmountDueCents {
			return domain.ErrInsufficientPayment
		}
		receipt.ChangeDueCents = receipt.AmountPaidCents - receipt.AmountDueCents

		return s.repo.Create(ctx, tx, receipt)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordReceiptCreated(ctx, receipt.PaymentMethod)
	}
	logger.FromContext(ctx).Info("receipt created",
		zap.String("receipt_number", receipt.ReceiptNumber),
		zap.Int64("amount_due_cents", receipt.AmountDueCents),
		zap.Int64("change_due_cents", receipt.ChangeDueCents),
	)

	resp := s.toResponse(receipt)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	receiptID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	receipt, err := s.repo.FindByID(ctx, s.db, receiptID.Int64())
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, domain.ErrNotFound
	}
	return s.withItems(ctx, receipt)
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*domain.Response, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, domain.ErrInvalidID
	}

	receipt, err := s.repo.FindByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, domain.ErrNotFound
	}
	return s.withItems(ctx, receipt)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListRequest{
		PaymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		SortBy:        strings.TrimSpace(req.SortBy),
		OrderBy:       strings.TrimSpace(req.OrderBy),
	})
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, s.toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) RenderPDF(ctx context.Context, id string) ([]byte, error) {
	receipt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	storeCfg := s.store.Get()
	data := pdf.ReceiptData{
		StoreName:     storeCfg.StoreName,
		ReceiptNumber: receipt.ReceiptNumber,
		CustomerName:  receipt.CustomerName,
		PaymentMethod: receipt.PaymentMethod,
		Currency:      receipt.Currency,
		AmountDue:     receipt.AmountDueCents,
		AmountPaid:    receipt.AmountPaidCents,
		ChangeDue:     receipt.ChangeDueCents,
		IssuedAt:      receipt.CreatedAt,
	}
	for _, item := range receipt.Items {
		data.Items = append(data.Items, pdf.ReceiptItem{
			Description: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPriceCents,
			LineTotal:   item.LineTotalCents,
		})
	}

	reader, err := s.pdf.GenerateReceipt(ctx, data)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(reader)
}

func (s *Service) withItems(ctx context.Context, receipt *domain.Receipt) (*domain.Response, error) {
	items, err := s.repo.FindItems(ctx, s.db, receipt.ID)
	if err != nil {
		return nil, err
	}
	receipt.Items = items
	resp := s.toResponse(receipt)
	return &resp, nil
}

func (s *Service) toResponse(receipt *domain.Receipt) domain.Response {
	resp := domain.Response{
		ID:              snowflake.ID(receipt.ID).String(),
		ReceiptNumber:   receipt.ReceiptNumber,
		CustomerName:    receipt.CustomerName,
		PaymentMethod:   receipt.PaymentMethod,
		AmountDueCents:  receipt.AmountDueCents,
		AmountPaidCents: receipt.AmountPaidCents,
		ChangeDueCents:  receipt.ChangeDueCents,
		Currency:        receipt.Currency,
		CreatedAt:       receipt.CreatedAt,
	}

	if receipt.OrderID != nil {
		orderID := snowflake.ID(*receipt.OrderID).String()
		resp.OrderID = &orderID
	}

	resp.Items = make([]domain.ItemResponse, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		itemResp := domain.ItemResponse{
			ProductName:    item.ProductName,
			UnitPriceCents: item.UnitPriceCents,
			Quantity:       item.Quantity,
			LineTotalCents: item.LineTotalCents,
		}
		if item.ProductID != nil {
			productID := snowflake.ID(*item.ProductID).String()
			itemResp.ProductID = &productID
		}
		resp.Items = append(resp.Items, itemResp)
	}
	return resp
}

func taxFor(subtotalCents int64, rate float64) int64 {
	if rate <= 0 || subtotalCents <= 0 {
		return 0
	}
	return int64(math.Round(float64(subtotalCents) * rate))
}

func normalizePaymentMethod(method string) string {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return "cash"
	}
	return method
}

func newReceiptNumber(now time.Time) string {
	return "RCP-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
