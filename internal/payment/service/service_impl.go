package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/storefront/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	gateway "github.com/smallbiznis/storefront/internal/providers/payment"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Cfg        config.Config
	OrderSvc   orderdomain.Service
	Repo       paymentdomain.Repository
	Gateway    gateway.Gateway
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	cfg        config.Config
	orderSvc   orderdomain.Service
	repo       paymentdomain.Repository
	gateway    gateway.Gateway
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) *Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		cfg:        p.Cfg,
		orderSvc:   p.OrderSvc,
		repo:       p.Repo,
		gateway:    p.Gateway,
		obsMetrics: p.ObsMetrics,
	}
}

// CheckoutResponse points the storefront at the hosted payment page.
type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// CreateCheckout opens a hosted checkout session for a pending order.
// Repeat calls for the same order return the stored session instead of
// minting a new one at the provider.
func (s *Service) CreateCheckout(ctx context.Context, orderID string) (*CheckoutResponse, error) {
	order, err := s.orderSvc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != string(orderdomain.PaymentStatusPending) {
		return nil, orderdomain.ErrInvalidTransition
	}
	if order.CheckoutSessionID != "" {
		return &CheckoutResponse{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			SessionID:   order.CheckoutSessionID,
			RedirectURL: order.PaymentURL,
		}, nil
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, gateway.CheckoutSessionRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Currency:      order.Currency,
		AmountCents:   order.TotalCents,
		Description:   fmt.Sprintf("Order %s", order.OrderNumber),
		CustomerEmail: order.CustomerEmail,
		SuccessURL:    s.cfg.CheckoutSuccessURL + "?order_id=" + order.ID + "&session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     s.cfg.CheckoutCancelURL + "?order_id=" + order.ID,
	})
	if err != nil {
		return nil, err
	}

	parsed, err := snowflake.ParseString(order.ID)
	if err != nil {
		return nil, orderdomain.ErrInvalidID
	}
	if err := s.orderSvc.AttachCheckoutSession(ctx, parsed.Int64(), session.ID, session.URL); err != nil {
		// A concurrent call won the race or the order settled meanwhile.
		// The hosted page is still valid, hand it out and let the
		// webhook decide.
		if !errors.Is(err, orderdomain.ErrInvalidTransition) {
			return nil, err
		}
		s.log.Warn("checkout session not stored",
			zap.String("order_number", order.OrderNumber),
			zap.String("session_id", session.ID),
		)
	}

	logger.FromContext(ctx).Info("checkout session created",
		zap.String("order_number", order.OrderNumber),
		zap.String("session_id", session.ID),
	)
	return &CheckoutResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		SessionID:   session.ID,
		RedirectURL: session.URL,
	}, nil
}

// ConfirmRedirect settles an order from the success redirect. The
// webhook remains the source of truth; this only closes the gap when
// the customer returns before the webhook lands. Both paths converge
// on the same guarded transition, so double settlement cannot happen.
func (s *Service) ConfirmRedirect(ctx context.Context, orderID, sessionID string) (*orderdomain.Response, error) {
	order, err := s.orderSvc.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == string(orderdomain.PaymentStatusPaid) {
		return order, nil
	}

	session, err := s.gateway.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.OrderID != order.ID {
		return nil, paymentdomain.ErrInvalidOrder
	}
	if !session.Paid() {
		return order, nil
	}

	parsed, err := snowflake.ParseString(order.ID)
	if err != nil {
		return nil, orderdomain.ErrInvalidID
	}
	return s.orderSvc.MarkPaid(ctx, parsed.Int64(), session.ID)
}

// ProcessEvent applies one canonical provider event exactly once.
func (s *Service) ProcessEvent(ctx context.Context, event *paymentdomain.PaymentEvent, payload []byte) error {
	if event == nil {
		return paymentdomain.ErrInvalidEvent
	}
	event.Provider = strings.ToLower(strings.TrimSpace(event.Provider))
	if event.Provider == "" {
		return paymentdomain.ErrInvalidProvider
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	now := time.Now().UTC()
	orderID := event.OrderID
	received := paymentdomain.EventRecord{
		ID:              s.genID.Generate().Int64(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       event.Type,
		OrderID:         &orderID,
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return paymentdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return paymentdomain.ErrEventAlreadyProcessed
		}
	}

	if err := s.applyEvent(ctx, event); err != nil {
		return err
	}

	if err := s.repo.MarkProcessed(ctx, s.db, stored.ID, now); err != nil {
		return err
	}

	if inserted && s.obsMetrics != nil {
		s.obsMetrics.RecordPaymentEvent(ctx, event.Provider, event.Type)
	}
	return nil
}

func (s *Service) applyEvent(ctx context.Context, event *paymentdomain.PaymentEvent) error {
	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded:
		_, err := s.orderSvc.MarkPaid(ctx, event.OrderID, event.ProviderPaymentID)
		return s.ignoreStaleTransition(ctx, event, err)
	case paymentdomain.EventTypePaymentFailed:
		_, err := s.orderSvc.MarkFailed(ctx, event.OrderID, event.ProviderPaymentID)
		return s.ignoreStaleTransition(ctx, event, err)
	case paymentdomain.EventTypeRefunded:
		_, err := s.orderSvc.MarkRefunded(ctx, event.OrderID)
		return s.ignoreStaleTransition(ctx, event, err)
	default:
		return paymentdomain.ErrInvalidEvent
	}
}

// ignoreStaleTransition drops out-of-order provider events. A failure
// notice arriving after settlement must never unwind a paid order.
func (s *Service) ignoreStaleTransition(ctx context.Context, event *paymentdomain.PaymentEvent, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, orderdomain.ErrInvalidTransition) {
		logger.FromContext(ctx).Warn("ignoring stale payment event",
			zap.String("provider", event.Provider),
			zap.String("event_type", event.Type),
			zap.Int64("order_id", event.OrderID),
		)
		return nil
	}
	return err
}

func validateEvent(event *paymentdomain.PaymentEvent) error {
	event.ProviderEventID = strings.TrimSpace(event.ProviderEventID)
	if event.ProviderEventID == "" {
		return paymentdomain.ErrInvalidEvent
	}
	event.Type = strings.TrimSpace(event.Type)
	if event.Type == "" {
		return paymentdomain.ErrInvalidEvent
	}
	if event.OrderID == 0 {
		return paymentdomain.ErrInvalidOrder
	}
	currency := strings.TrimSpace(event.Currency)
	if currency == "" {
		return paymentdomain.ErrInvalidCurrency
	}
	event.Currency = strings.ToUpper(currency)
	if event.OccurredAt.IsZero() {
		return paymentdomain.ErrInvalidEvent
	}
	switch event.Type {
	case paymentdomain.EventTypePaymentSucceeded, paymentdomain.EventTypeRefunded:
		if event.Amount <= 0 {
			return paymentdomain.ErrInvalidAmount
		}
	case paymentdomain.EventTypePaymentFailed:
	default:
		return paymentdomain.ErrInvalidEvent
	}
	return nil
}
