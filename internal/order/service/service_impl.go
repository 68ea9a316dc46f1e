package service

import (
	"context"
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	"github.com/smallbiznis/storefront/internal/observability/metrics"
	"github.com/smallbiznis/storefront/internal/order/domain"
	"github.com/smallbiznis/storefront/internal/providers/email"
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
	Metrics     *metrics.Metrics `optional:"true"`
	Email       email.Provider   `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	repo        domain.Repository
	catalogRepo catalogdomain.Repository
	genID       *snowflake.Node
	store       *config.StoreConfigHolder
	metrics     *metrics.Metrics
	email       email.Provider
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("order.service"),
		repo:        p.Repo,
		catalogRepo: p.CatalogRepo,
		genID:       p.GenID,
		store:       p.Store,
		metrics:     p.Metrics,
		email:       p.Email,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	customerName := strings.TrimSpace(req.CustomerName)
	if customerName == "" {
		return nil, domain.ErrInvalidCustomer
	}

	channel := domain.Channel(strings.ToLower(strings.TrimSpace(req.Channel)))
	if channel == "" {
		channel = domain.ChannelOnline
	}
	if channel != domain.ChannelOnline && channel != domain.ChannelPOS {
		return nil, domain.ErrInvalidChannel
	}

	for _, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, domain.ErrInvalidQuantity
		}
	}
	if req.DiscountCents < 0 {
		return nil, domain.ErrInvalidDiscount
	}

	storeCfg := s.store.Get()
	now := time.Now().UTC()

	order := &domain.Order{
		ID:              s.genID.Generate().Int64(),
		OrderNumber:     newOrderNumber(now),
		Channel:         channel,
		CustomerName:    customerName,
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		BillingAddress:  strings.TrimSpace(req.BillingAddress),
		Notes:           strings.TrimSpace(req.Notes),
		Status:          domain.StatusPending,
		PaymentMethod:   normalizePaymentMethod(req.PaymentMethod, channel),
		PaymentStatus:   domain.PaymentStatusPending,
		DiscountCents:   req.DiscountCents,
		Currency:        storeCfg.Currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if channel == domain.ChannelPOS {
		// Walk-in sales settle at the counter. The order lands paid and
		// the ledger row follows from the insert. The goods leave with
		// the customer, so fulfillment is already done.
		order.PaymentStatus = domain.PaymentStatusPaid
		order.PaidAt = &now
		order.Status = domain.StatusDelivered
	} else if storeCfg.PendingOrderTTLHours > 0 {
		expiresAt := now.Add(time.Duration(storeCfg.PendingOrderTTLHours) * time.Hour)
		order.ExpiresAt = &expiresAt
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
				if s.metrics != nil {
					s.metrics.RecordStockRejection(ctx, string(channel))
				}
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
			order.Items = append(order.Items, domain.OrderItem{
				ID:             s.genID.Generate().Int64(),
				ProductID:      &itemProductID,
				ProductName:    product.Name,
				UnitPriceCents: product.PriceCents,
				Quantity:       reqItem.Quantity,
				LineTotalCents: lineTotal,
			})
		}

		order.SubtotalCents = subtotal
		order.TaxCents = taxFor(subtotal, storeCfg.TaxRate)
		if channel == domain.ChannelOnline {
			order.ShippingCents = storeCfg.ShippingFlatRate
		}
		order.TotalCents = order.SubtotalCents + order.TaxCents + order.ShippingCents - order.DiscountCents
		if order.TotalCents < 0 {
			return domain.ErrInvalidDiscount
		}

		return s.repo.Create(ctx, tx, order)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated(ctx, string(order.Channel), string(order.PaymentStatus))
	}
	logger.FromContext(ctx).Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.String("channel", string(order.Channel)),
		zap.Int64("total_cents", order.TotalCents),
	)

	resp := s.toResponse(order)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	return s.load(ctx, orderID.Int64())
}

func (s *Service) GetByNumber(ctx context.Context, number string) (*domain.Response, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, domain.ErrInvalidID
	}

	order, err := s.repo.FindByNumber(ctx, s.db, number)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return s.withItems(ctx, order)
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListRequest{
		Status:        strings.TrimSpace(req.Status),
		PaymentStatus: strings.TrimSpace(req.PaymentStatus),
		Channel:       strings.TrimSpace(req.Channel),
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

func (s *Service) MarkPaid(ctx context.Context, orderID int64, paymentRef string) (*domain.Response, error) {
	paidAt := time.Now().UTC()
	ok, err := s.repo.MarkPaid(ctx, s.db, orderID, strings.TrimSpace(paymentRef), paidAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		order, err := s.repo.FindByID(ctx, s.db, orderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, domain.ErrNotFound
		}
		if order.PaymentStatus == domain.PaymentStatusPaid {
			// Replayed confirmation. Nothing to do.
			return s.withItems(ctx, order)
		}
		return nil, domain.ErrInvalidTransition
	}

	logger.FromContext(ctx).Info("order paid",
		zap.Int64("order_id", orderID),
		zap.String("payment_ref", paymentRef),
	)

	resp, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.sendConfirmation(resp)
	return resp, nil
}

// sendConfirmation mails the customer after settlement. Delivery is best
// effort and runs off the request path, a dead SMTP host must not fail
// the payment.
func (s *Service) sendConfirmation(order *domain.Response) {
	if s.email == nil || order.CustomerEmail == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		subject := "Order " + order.OrderNumber + " confirmed"
		if err := s.email.Send(ctx, []string{order.CustomerEmail}, subject, confirmationBody(order)); err != nil {
			s.log.Warn("order confirmation email failed",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
		}
	}()
}

func confirmationBody(order *domain.Response) string {
	var b strings.Builder
	b.WriteString("<p>Hi " + html.EscapeString(order.CustomerName) + ",</p>")
	b.WriteString("<p>Thanks for your order <strong>" + order.OrderNumber + "</strong>. We received your payment.</p>")
	b.WriteString("<ul>")
	for _, item := range order.Items {
		b.WriteString(fmt.Sprintf("<li>%s &times; %d &ndash; %s</li>",
			html.EscapeString(item.ProductName), item.Quantity, formatMinor(item.LineTotalCents, order.Currency)))
	}
	b.WriteString("</ul>")
	b.WriteString("<p>Total: <strong>" + formatMinor(order.TotalCents, order.Currency) + "</strong></p>")
	return b.String()
}

func formatMinor(cents int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}

func (s *Service) MarkFailed(ctx context.Context, orderID int64, paymentRef string) (*domain.Response, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.repo.MarkFailed(ctx, tx, orderID, strings.TrimSpace(paymentRef))
		if err != nil {
			return err
		}
		if !ok {
			order, err := s.repo.FindByID(ctx, tx, orderID)
			if err != nil {
				return err
			}
			if order == nil {
				return domain.ErrNotFound
			}
			if order.PaymentStatus == domain.PaymentStatusFailed {
				return nil
			}
			return domain.ErrInvalidTransition
		}
		return s.releaseStock(ctx, tx, orderID)
	})
	if err != nil {
		return nil, err
	}
	return s.load(ctx, orderID)
}

func (s *Service) MarkRefunded(ctx context.Context, orderID int64) (*domain.Response, error) {
	ok, err := s.repo.MarkRefunded(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if !ok {
		order, err := s.repo.FindByID(ctx, s.db, orderID)
		if err != nil {
			return nil, err
		}
		if order == nil {
			return nil, domain.ErrNotFound
		}
		if order.PaymentStatus == domain.PaymentStatusRefunded {
			return s.withItems(ctx, order)
		}
		return nil, domain.ErrInvalidTransition
	}
	return s.load(ctx, orderID)
}

func (s *Service) UpdateStatus(ctx context.Context, orderID int64, status string) (*domain.Response, error) {
	to := domain.Status(strings.ToLower(strings.TrimSpace(status)))
	if !domain.ValidStatus(to) {
		return nil, domain.ErrInvalidStatus
	}

	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	if order.Status == to {
		return s.withItems(ctx, order)
	}
	if !domain.CanTransitionStatus(order.Status, to) {
		return nil, domain.ErrInvalidStatus
	}

	// The guarded update re-checks the from state, a concurrent
	// transition loses the race instead of being overwritten.
	ok, err := s.repo.UpdateStatus(ctx, s.db, orderID, order.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrInvalidStatus
	}

	logger.FromContext(ctx).Info("order status updated",
		zap.String("order_number", order.OrderNumber),
		zap.String("from", string(order.Status)),
		zap.String("to", string(to)),
	)
	return s.load(ctx, orderID)
}

func (s *Service) AttachCheckoutSession(ctx context.Context, orderID int64, sessionID, paymentURL string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.ErrInvalidID
	}

	ok, err := s.repo.SetCheckoutSession(ctx, s.db, orderID, sessionID, strings.TrimSpace(paymentURL))
	if err != nil {
		return err
	}
	if !ok {
		order, err := s.repo.FindByID(ctx, s.db, orderID)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrNotFound
		}
		if order.CheckoutSessionID == sessionID {
			return nil
		}
		return domain.ErrInvalidTransition
	}
	return nil
}

func (s *Service) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ListExpiredPending(ctx, s.db, now, 100)
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range expired {
		order := &expired[i]
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			ok, err := s.repo.MarkFailed(ctx, tx, order.ID, "expired")
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			count++
			return s.releaseStock(ctx, tx, order.ID)
		})
		if err != nil {
			s.log.Warn("failed to expire order",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
			continue
		}
	}

	if count > 0 {
		if s.metrics != nil {
			s.metrics.RecordOrdersExpired(ctx, int64(count))
		}
		s.log.Info("expired pending orders", zap.Int("count", count))
	}
	return count, nil
}

func (s *Service) releaseStock(ctx context.Context, tx *gorm.DB, orderID int64) error {
	items, err := s.repo.FindItems(ctx, tx, orderID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		if err := s.catalogRepo.RestoreStock(ctx, tx, *item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) load(ctx context.Context, orderID int64) (*domain.Response, error) {
	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	return s.withItems(ctx, order)
}

func (s *Service) withItems(ctx context.Context, order *domain.Order) (*domain.Response, error) {
	items, err := s.repo.FindItems(ctx, s.db, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	resp := s.toResponse(order)
	return &resp, nil
}

func (s *Service) toResponse(o *domain.Order) domain.Response {
	resp := domain.Response{
		ID:                snowflake.ID(o.ID).String(),
		OrderNumber:       o.OrderNumber,
		Channel:           string(o.Channel),
		CustomerName:      o.CustomerName,
		CustomerEmail:     o.CustomerEmail,
		CustomerPhone:     o.CustomerPhone,
		ShippingAddress:   o.ShippingAddress,
		BillingAddress:    o.BillingAddress,
		Notes:             o.Notes,
		Status:            string(o.Status),
		PaymentMethod:     o.PaymentMethod,
		PaymentStatus:     string(o.PaymentStatus),
		PaymentRef:        o.PaymentRef,
		CheckoutSessionID: o.CheckoutSessionID,
		PaymentURL:        o.PaymentURL,
		SubtotalCents:     o.SubtotalCents,
		TaxCents:          o.TaxCents,
		ShippingCents:     o.ShippingCents,
		DiscountCents:     o.DiscountCents,
		TotalCents:        o.TotalCents,
		Currency:          o.Currency,
		ExpiresAt:         o.ExpiresAt,
		PaidAt:            o.PaidAt,
		CreatedAt:         o.CreatedAt,
	}

	resp.Items = make([]domain.ItemResponse, 0, len(o.Items))
	for _, item := range o.Items {
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

// taxFor rounds half up on the subtotal in minor units.
func taxFor(subtotalCents int64, rate float64) int64 {
	if rate <= 0 || subtotalCents <= 0 {
		return 0
	}
	return int64(math.Round(float64(subtotalCents) * rate))
}

func normalizePaymentMethod(method string, channel domain.Channel) string {
	method = strings.ToLower(strings.TrimSpace(method))
	if method != "" {
		return method
	}
	if channel == domain.ChannelPOS {
		return "cash"
	}
	return "stripe"
}

func newOrderNumber(now time.Time) string {
	return "ORD-" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
