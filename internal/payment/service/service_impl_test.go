package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/storefront/internal/catalog/repository"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/migration"
	orderdomain "github.com/smallbiznis/storefront/internal/order/domain"
	orderrepo "github.com/smallbiznis/storefront/internal/order/repository"
	orderservice "github.com/smallbiznis/storefront/internal/order/service"
	paymentdomain "github.com/smallbiznis/storefront/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/storefront/internal/payment/repository"
	gateway "github.com/smallbiznis/storefront/internal/providers/payment"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type gatewayStub struct {
	sessions map[string]*gateway.CheckoutSession
	created  []gateway.CheckoutSessionRequest
}

func (g *gatewayStub) CreateCheckoutSession(ctx context.Context, req gateway.CheckoutSessionRequest) (*gateway.CheckoutSession, error) {
	g.created = append(g.created, req)
	session := &gateway.CheckoutSession{
		ID:            fmt.Sprintf("cs_test_%d", len(g.created)),
		URL:           "https://checkout.stripe.test/" + req.OrderNumber,
		PaymentStatus: "unpaid",
		OrderID:       req.OrderID,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
	}
	if g.sessions == nil {
		g.sessions = map[string]*gateway.CheckoutSession{}
	}
	g.sessions[session.ID] = session
	return session, nil
}

func (g *gatewayStub) GetCheckoutSession(ctx context.Context, sessionID string) (*gateway.CheckoutSession, error) {
	session, ok := g.sessions[sessionID]
	if !ok {
		return nil, paymentdomain.ErrInvalidEvent
	}
	return session, nil
}

type env struct {
	db       *gorm.DB
	genID    *snowflake.Node
	orderSvc orderdomain.Service
	svc      *Service
	gateway  *gatewayStub
	product  *catalogdomain.Product
}

func newEnv(t *testing.T) *env {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, migration.RunMigrations(sqlDB, "sqlite"))
	t.Cleanup(func() { _ = sqlDB.Close() })

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	catRepo := catalogrepo.Provide()
	store := config.DefaultStoreConfig()
	orderSvc := orderservice.New(orderservice.Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        orderrepo.Provide(),
		CatalogRepo: catRepo,
		Store:       config.NewStaticStoreConfigHolder(store),
	})

	gw := &gatewayStub{}
	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Cfg:      config.Config{CheckoutSuccessURL: "https://shop.test/success", CheckoutCancelURL: "https://shop.test/cancel"},
		OrderSvc: orderSvc,
		Repo:     paymentrepo.Provide(),
		Gateway:  gw,
	})

	now := time.Now().UTC()
	product := &catalogdomain.Product{
		ID:            node.Generate().Int64(),
		Name:          "House Blend",
		Slug:          "house-blend",
		PriceCents:    1250,
		Currency:      "USD",
		StockQuantity: 25,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, catRepo.CreateProduct(context.Background(), db, product))

	return &env{db: db, genID: node, orderSvc: orderSvc, svc: svc, gateway: gw, product: product}
}

func (e *env) createPendingOrder(t *testing.T) *orderdomain.Response {
	t.Helper()
	resp, err := e.orderSvc.Create(context.Background(), orderdomain.CreateRequest{
		CustomerName: "Ada",
		Items:        []orderdomain.CreateItem{{ProductID: snowflake.ID(e.product.ID).String(), Quantity: 2}},
	})
	require.NoError(t, err)
	return resp
}

func (e *env) succeededEvent(order *orderdomain.Response, eventID string) *paymentdomain.PaymentEvent {
	orderID, _ := snowflake.ParseString(order.ID)
	return &paymentdomain.PaymentEvent{
		Provider:          "stripe",
		ProviderEventID:   eventID,
		ProviderPaymentID: "pi_" + eventID,
		Type:              paymentdomain.EventTypePaymentSucceeded,
		OrderID:           orderID.Int64(),
		Amount:            order.TotalCents,
		Currency:          order.Currency,
		OccurredAt:        time.Now().UTC(),
	}
}

func (e *env) ledgerCount(t *testing.T, orderNumber string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, e.db.Raw(
		`SELECT COUNT(*) FROM revenue_transactions WHERE source_number = ?`, orderNumber,
	).Scan(&count).Error)
	return count
}

func TestProcessEventSettlesOrderExactlyOnce(t *testing.T) {
	e := newEnv(t)
	order := e.createPendingOrder(t)
	event := e.succeededEvent(order, "evt_1")
	payload := []byte(`{"id":"evt_1"}`)

	require.NoError(t, e.svc.ProcessEvent(context.Background(), event, payload))

	got, err := e.orderSvc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, "paid", got.PaymentStatus)
	require.Equal(t, int64(1), e.ledgerCount(t, order.OrderNumber))

	// Replayed delivery of the same event id is refused outright.
	err = e.svc.ProcessEvent(context.Background(), e.succeededEvent(order, "evt_1"), payload)
	require.ErrorIs(t, err, paymentdomain.ErrEventAlreadyProcessed)
	require.Equal(t, int64(1), e.ledgerCount(t, order.OrderNumber))
}

func TestProcessEventToleratesDistinctDuplicateConfirmations(t *testing.T) {
	e := newEnv(t)
	order := e.createPendingOrder(t)
	payload := []byte(`{"id":"evt"}`)

	require.NoError(t, e.svc.ProcessEvent(context.Background(), e.succeededEvent(order, "evt_1"), payload))

	// A different provider event confirming the same order lands as a
	// no-op because the guarded transition already ran.
	require.NoError(t, e.svc.ProcessEvent(context.Background(), e.succeededEvent(order, "evt_2"), payload))
	require.Equal(t, int64(1), e.ledgerCount(t, order.OrderNumber))
}

func TestProcessEventIgnoresStaleFailureAfterSettlement(t *testing.T) {
	e := newEnv(t)
	order := e.createPendingOrder(t)
	payload := []byte(`{"id":"evt"}`)

	require.NoError(t, e.svc.ProcessEvent(context.Background(), e.succeededEvent(order, "evt_1"), payload))

	failed := e.succeededEvent(order, "evt_2")
	failed.Type = paymentdomain.EventTypePaymentFailed
	failed.Amount = 0
	require.NoError(t, e.svc.ProcessEvent(context.Background(), failed, payload))

	got, err := e.orderSvc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, "paid", got.PaymentStatus, "a late failure notice must not unwind settlement")
}

func TestProcessEventAppliesRefund(t *testing.T) {
	e := newEnv(t)
	order := e.createPendingOrder(t)
	payload := []byte(`{"id":"evt"}`)

	require.NoError(t, e.svc.ProcessEvent(context.Background(), e.succeededEvent(order, "evt_1"), payload))

	refund := e.succeededEvent(order, "evt_2")
	refund.Type = paymentdomain.EventTypeRefunded
	require.NoError(t, e.svc.ProcessEvent(context.Background(), refund, payload))

	got, err := e.orderSvc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, "refunded", got.PaymentStatus)

	var status string
	require.NoError(t, e.db.Raw(
		`SELECT payment_status FROM revenue_transactions WHERE source_number = ?`, order.OrderNumber,
	).Scan(&status).Error)
	require.Equal(t, "refunded", status)
}

func TestProcessEventValidation(t *testing.T) {
	e := newEnv(t)
	order := e.createPendingOrder(t)
	payload := []byte(`{"id":"evt"}`)

	tests := []struct {
		name    string
		mutate  func(*paymentdomain.PaymentEvent)
		wantErr error
	}{
		{"missing event id", func(ev *paymentdomain.PaymentEvent) { ev.ProviderEventID = " " }, paymentdomain.ErrInvalidEvent},
		{"missing order", func(ev *paymentdomain.PaymentEvent) { ev.OrderID = 0 }, paymentdomain.ErrInvalidOrder},
		{"missing currency", func(ev *paymentdomain.PaymentEvent) { ev.Currency = "" }, paymentdomain.ErrInvalidCurrency},
		{"zero amount settlement", func(ev *paymentdomain.PaymentEvent) { ev.Amount = 0 }, paymentdomain.ErrInvalidAmount},
		{"unknown type", func(ev *paymentdomain.PaymentEvent) { ev.Type = "chargeback" }, paymentdomain.ErrInvalidEvent},
		{"missing provider", func(ev *paymentdomain.PaymentEvent) { ev.Provider = "" }, paymentdomain.ErrInvalidProvider},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := e.succeededEvent(order, fmt.Sprintf("evt_v%d", i))
			tt.mutate(event)
			err := e.svc.ProcessEvent(context.Background(), event, payload)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}

	err := e.svc.ProcessEvent(context.Background(), e.succeededEvent(order, "evt_raw"), []byte("not json"))
	require.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}

func TestCreateCheckoutRequiresPendingOrder(t *testing.T) {
	e := newEnv(t)
	order := e.createPendingOrder(t)

	resp, err := e.svc.CreateCheckout(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, order.OrderNumber, resp.OrderNumber)
	require.NotEmpty(t, resp.SessionID)
	require.NotEmpty(t, resp.RedirectURL)
	require.Equal(t, order.TotalCents, e.gateway.created[0].AmountCents)

	orderID, err := snowflake.ParseString(order.ID)
	require.NoError(t, err)
	_, err = e.orderSvc.MarkPaid(context.Background(), orderID.Int64(), "pi_direct")
	require.NoError(t, err)

	_, err = e.svc.CreateCheckout(context.Background(), order.ID)
	require.ErrorIs(t, err, orderdomain.ErrInvalidTransition)
}

func TestCreateCheckoutReusesStoredSession(t *testing.T) {
	e := newEnv(t)
	order := e.createPendingOrder(t)

	first, err := e.svc.CreateCheckout(context.Background(), order.ID)
	require.NoError(t, err)

	// A retried checkout call hands back the stored session instead of
	// opening a second one at the provider.
	second, err := e.svc.CreateCheckout(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, first.SessionID, second.SessionID)
	require.Equal(t, first.RedirectURL, second.RedirectURL)
	require.Len(t, e.gateway.created, 1)

	got, err := e.orderSvc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	require.Equal(t, first.SessionID, got.CheckoutSessionID)
	require.Equal(t, first.RedirectURL, got.PaymentURL)
}

func TestConfirmRedirectConvergesWithWebhook(t *testing.T) {
	e := newEnv(t)
	order := e.createPendingOrder(t)

	checkout, err := e.svc.CreateCheckout(context.Background(), order.ID)
	require.NoError(t, err)

	// Session not settled yet. The redirect changes nothing.
	got, err := e.svc.ConfirmRedirect(context.Background(), order.ID, checkout.SessionID)
	require.NoError(t, err)
	require.Equal(t, "pending", got.PaymentStatus)

	e.gateway.sessions[checkout.SessionID].PaymentStatus = "paid"

	got, err = e.svc.ConfirmRedirect(context.Background(), order.ID, checkout.SessionID)
	require.NoError(t, err)
	require.Equal(t, "paid", got.PaymentStatus)

	// The webhook for the same settlement converges on the same guarded
	// transition and the ledger stays single.
	require.NoError(t, e.svc.ProcessEvent(context.Background(), e.succeededEvent(order, "evt_hook"), []byte(`{"id":"evt_hook"}`)))
	require.Equal(t, int64(1), e.ledgerCount(t, order.OrderNumber))
}

func TestConfirmRedirectRejectsForeignSession(t *testing.T) {
	e := newEnv(t)
	orderA := e.createPendingOrder(t)
	orderB := e.createPendingOrder(t)

	checkoutB, err := e.svc.CreateCheckout(context.Background(), orderB.ID)
	require.NoError(t, err)
	e.gateway.sessions[checkoutB.SessionID].PaymentStatus = "paid"

	_, err = e.svc.ConfirmRedirect(context.Background(), orderA.ID, checkoutB.SessionID)
	require.ErrorIs(t, err, paymentdomain.ErrInvalidOrder)

	got, err := e.orderSvc.Get(context.Background(), orderA.ID)
	require.NoError(t, err)
	require.Equal(t, "pending", got.PaymentStatus)
}
