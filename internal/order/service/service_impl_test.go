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
	"github.com/smallbiznis/storefront/internal/order/domain"
	orderrepo "github.com/smallbiznis/storefront/internal/order/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, migration.RunMigrations(sqlDB, "sqlite"))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type fixture struct {
	db          *gorm.DB
	svc         domain.Service
	catalogRepo catalogdomain.Repository
	genID       *snowflake.Node
}

func newFixture(t *testing.T, store config.StoreConfig) *fixture {
	t.Helper()

	db := newTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	catRepo := catalogrepo.Provide()
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		GenID:       node,
		Repo:        orderrepo.Provide(),
		CatalogRepo: catRepo,
		Store:       config.NewStaticStoreConfigHolder(store),
	})

	return &fixture{db: db, svc: svc, catalogRepo: catRepo, genID: node}
}

func (f *fixture) seedProduct(t *testing.T, name string, priceCents int64, stock int) *catalogdomain.Product {
	t.Helper()

	now := time.Now().UTC()
	p := &catalogdomain.Product{
		ID:            f.genID.Generate().Int64(),
		Name:          name,
		Slug:          strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		PriceCents:    priceCents,
		Currency:      "USD",
		StockQuantity: stock,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, f.catalogRepo.CreateProduct(context.Background(), f.db, p))
	return p
}

func (f *fixture) stockOf(t *testing.T, productID int64) int {
	t.Helper()

	var stock int
	require.NoError(t, f.db.Raw(
		`SELECT stock_quantity FROM products WHERE id = ?`, productID,
	).Scan(&stock).Error)
	return stock
}

func (f *fixture) ledgerRows(t *testing.T, sourceNumber string) []struct {
	AmountCents   int64
	PaymentStatus string
} {
	t.Helper()

	var rows []struct {
		AmountCents   int64
		PaymentStatus string
	}
	require.NoError(t, f.db.Raw(
		`SELECT amount_cents, payment_status FROM revenue_transactions WHERE source_number = ?`,
		sourceNumber,
	).Scan(&rows).Error)
	return rows
}

func storeWith(taxRate float64, shipping int64) config.StoreConfig {
	cfg := config.DefaultStoreConfig()
	cfg.TaxRate = taxRate
	cfg.ShippingFlatRate = shipping
	return cfg
}

func TestCreateComputesTotals(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	resp, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items: []domain.CreateItem{
			{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 2},
		},
	})
	require.NoError(t, err)

	require.Equal(t, int64(2500), resp.SubtotalCents)
	require.Equal(t, int64(450), resp.TaxCents)
	require.Equal(t, int64(0), resp.ShippingCents)
	require.Equal(t, int64(2950), resp.TotalCents)
	require.Equal(t, "pending", resp.PaymentStatus)
	require.Equal(t, "online", resp.Channel)
	require.Len(t, resp.Items, 1)
	require.Equal(t, int64(2500), resp.Items[0].LineTotalCents)

	require.Equal(t, 8, f.stockOf(t, coffee.ID))
	require.Empty(t, f.ledgerRows(t, resp.OrderNumber), "pending orders must not reach the ledger")
}

func TestCreateAddsFlatShippingForOnlineOnly(t *testing.T) {
	f := newFixture(t, storeWith(0.10, 500))
	mug := f.seedProduct(t, "Camp Mug", 1000, 20)

	online, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(mug.ID).String(), Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(500), online.ShippingCents)
	require.Equal(t, int64(1000+100+500), online.TotalCents)

	pos, err := f.svc.Create(context.Background(), domain.CreateRequest{
		Channel:      "pos",
		CustomerName: "Walk In",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(mug.ID).String(), Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), pos.ShippingCents)
	require.Equal(t, int64(1000+100), pos.TotalCents)
}

func TestCreateAppliesDiscount(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 500))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	resp, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName:   "Ada",
		BillingAddress: "1 Analytical Way",
		Notes:          "leave at the door",
		DiscountCents:  300,
		Items:          []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 2}},
	})
	require.NoError(t, err)

	// 2500 + 450 tax + 500 shipping - 300 discount.
	require.Equal(t, int64(2500), resp.SubtotalCents)
	require.Equal(t, int64(300), resp.DiscountCents)
	require.Equal(t, int64(3150), resp.TotalCents)
	require.Equal(t, "1 Analytical Way", resp.BillingAddress)
	require.Equal(t, "leave at the door", resp.Notes)
}

func TestCreateRejectsExcessiveDiscount(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	_, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName:  "Ada",
		DiscountCents: -1,
		Items:         []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidDiscount)

	// A discount past the order total would go negative. The whole
	// transaction rolls back, reservation included.
	_, err = f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName:  "Ada",
		DiscountCents: 100000,
		Items:         []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrInvalidDiscount)
	require.Equal(t, 10, f.stockOf(t, coffee.ID))

	var orderCount int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM orders`).Scan(&orderCount).Error)
	require.Zero(t, orderCount)
}

func TestUpdateStatusFollowsFulfillmentFlow(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	created, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, "pending", created.Status)
	orderID, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	for _, next := range []string{"processing", "shipped", "delivered"} {
		got, err := f.svc.UpdateStatus(context.Background(), orderID.Int64(), next)
		require.NoError(t, err)
		require.Equal(t, next, got.Status)
	}

	// Delivered is terminal.
	_, err = f.svc.UpdateStatus(context.Background(), orderID.Int64(), "processing")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(context.Background(), orderID.Int64(), "misplaced")
	require.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestStatusMirrorsPaymentOutcomes(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	pos, err := f.svc.Create(context.Background(), domain.CreateRequest{
		Channel:      "pos",
		CustomerName: "Walk In",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, "delivered", pos.Status, "counter sales leave fulfilled")

	created, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 1}},
	})
	require.NoError(t, err)
	orderID, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	failed, err := f.svc.MarkFailed(context.Background(), orderID.Int64(), "pi_dead")
	require.NoError(t, err)
	require.Equal(t, "cancelled", failed.Status)

	posID, err := snowflake.ParseString(pos.ID)
	require.NoError(t, err)
	refunded, err := f.svc.MarkRefunded(context.Background(), posID.Int64())
	require.NoError(t, err)
	require.Equal(t, "refunded", refunded.Status)
}

func TestCreateRejectsEmptyCart(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))

	_, err := f.svc.Create(context.Background(), domain.CreateRequest{CustomerName: "Ada"})
	require.ErrorIs(t, err, domain.ErrEmptyCart)
}

func TestCreateRollsBackStockOnShortage(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)
	kettle := f.seedProduct(t, "Pour Over Kettle", 4500, 1)

	_, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items: []domain.CreateItem{
			{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 3},
			{ProductID: snowflake.ID(kettle.ID).String(), Quantity: 2},
		},
	})

	var stockErr *catalogdomain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Equal(t, "Pour Over Kettle", stockErr.ProductName)
	require.Equal(t, 2, stockErr.Requested)
	require.Equal(t, 1, stockErr.Available)

	// The whole order rolls back, including the coffee already reserved.
	require.Equal(t, 10, f.stockOf(t, coffee.ID))
	require.Equal(t, 1, f.stockOf(t, kettle.ID))

	var orderCount int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(*) FROM orders`).Scan(&orderCount).Error)
	require.Zero(t, orderCount)
}

func TestCreatePOSOrderSettlesImmediately(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 500))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	resp, err := f.svc.Create(context.Background(), domain.CreateRequest{
		Channel:      "pos",
		CustomerName: "Walk In",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, "paid", resp.PaymentStatus)
	require.Equal(t, "cash", resp.PaymentMethod)
	require.NotNil(t, resp.PaidAt)
	require.Nil(t, resp.ExpiresAt)

	rows := f.ledgerRows(t, resp.OrderNumber)
	require.Len(t, rows, 1)
	require.Equal(t, resp.TotalCents, rows[0].AmountCents)
	require.Equal(t, "paid", rows[0].PaymentStatus)
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	created, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 1}},
	})
	require.NoError(t, err)
	orderID, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	paid, err := f.svc.MarkPaid(context.Background(), orderID.Int64(), "pi_123")
	require.NoError(t, err)
	require.Equal(t, "paid", paid.PaymentStatus)
	require.Equal(t, "pi_123", paid.PaymentRef)

	// Replayed confirmation keeps the order paid and the ledger single.
	again, err := f.svc.MarkPaid(context.Background(), orderID.Int64(), "pi_123")
	require.NoError(t, err)
	require.Equal(t, "paid", again.PaymentStatus)

	rows := f.ledgerRows(t, created.OrderNumber)
	require.Len(t, rows, 1)
	require.Equal(t, created.TotalCents, rows[0].AmountCents)
}

func TestMarkFailedNeverDowngradesPaidOrders(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	created, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 1}},
	})
	require.NoError(t, err)
	orderID, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(context.Background(), orderID.Int64(), "pi_123")
	require.NoError(t, err)

	_, err = f.svc.MarkFailed(context.Background(), orderID.Int64(), "pi_123")
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := f.svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "paid", got.PaymentStatus)
	// Stock stays reserved. The sale happened.
	require.Equal(t, 9, f.stockOf(t, coffee.ID))
}

func TestMarkFailedReleasesStock(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	created, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 6, f.stockOf(t, coffee.ID))

	orderID, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	failed, err := f.svc.MarkFailed(context.Background(), orderID.Int64(), "pi_dead")
	require.NoError(t, err)
	require.Equal(t, "failed", failed.PaymentStatus)
	require.Equal(t, 10, f.stockOf(t, coffee.ID))
	require.Empty(t, f.ledgerRows(t, created.OrderNumber))
}

func TestMarkRefundedFlipsLedgerRow(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	created, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 1}},
	})
	require.NoError(t, err)
	orderID, err := snowflake.ParseString(created.ID)
	require.NoError(t, err)

	// Refunds only apply to settled orders.
	_, err = f.svc.MarkRefunded(context.Background(), orderID.Int64())
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.MarkPaid(context.Background(), orderID.Int64(), "pi_123")
	require.NoError(t, err)

	refunded, err := f.svc.MarkRefunded(context.Background(), orderID.Int64())
	require.NoError(t, err)
	require.Equal(t, "refunded", refunded.PaymentStatus)

	rows := f.ledgerRows(t, created.OrderNumber)
	require.Len(t, rows, 1)
	require.Equal(t, "refunded", rows[0].PaymentStatus)
	require.Equal(t, created.TotalCents, rows[0].AmountCents, "the ledger keeps the original amount")
}

func TestExpirePendingFailsLapsedOrders(t *testing.T) {
	store := storeWith(0.18, 0)
	store.PendingOrderTTLHours = 1
	f := newFixture(t, store)
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	created, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 2}},
	})
	require.NoError(t, err)
	require.NotNil(t, created.ExpiresAt)
	require.Equal(t, 8, f.stockOf(t, coffee.ID))

	// Before the window lapses nothing happens.
	count, err := f.svc.ExpirePending(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	require.Zero(t, count)

	count, err = f.svc.ExpirePending(context.Background(), time.Now().UTC().Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, count)

	got, err := f.svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, "failed", got.PaymentStatus)
	require.Equal(t, 10, f.stockOf(t, coffee.ID))
}

func TestCreateRejectsUnknownAndArchivedProducts(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))
	archived := f.seedProduct(t, "Old Grinder", 9900, 5)
	require.NoError(t, f.db.Exec(`UPDATE products SET active = ? WHERE id = ?`, false, archived.ID).Error)

	_, err := f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(archived.ID).String(), Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrUnknownProduct)

	_, err = f.svc.Create(context.Background(), domain.CreateRequest{
		CustomerName: "Ada",
		Items:        []domain.CreateItem{{ProductID: "123456789", Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrUnknownProduct)
}

func TestLedgerRowsAreImmutable(t *testing.T) {
	f := newFixture(t, storeWith(0.18, 0))
	coffee := f.seedProduct(t, "House Blend", 1250, 10)

	created, err := f.svc.Create(context.Background(), domain.CreateRequest{
		Channel:      "pos",
		CustomerName: "Walk In",
		Items:        []domain.CreateItem{{ProductID: snowflake.ID(coffee.ID).String(), Quantity: 1}},
	})
	require.NoError(t, err)
	require.Len(t, f.ledgerRows(t, created.OrderNumber), 1)

	err = f.db.Exec(`DELETE FROM revenue_transactions`).Error
	require.Error(t, err)
	require.Contains(t, err.Error(), "append only")

	err = f.db.Exec(`UPDATE revenue_transactions SET amount_cents = 1`).Error
	require.Error(t, err)
	require.Contains(t, err.Error(), "payment_status")
}
