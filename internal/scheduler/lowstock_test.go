package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/clock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubCatalogRepo struct {
	low []catalogdomain.Product
	err error
}

func (r *stubCatalogRepo) CreateProduct(context.Context, *gorm.DB, *catalogdomain.Product) error {
	return nil
}
func (r *stubCatalogRepo) UpdateProduct(context.Context, *gorm.DB, *catalogdomain.Product) error {
	return nil
}
func (r *stubCatalogRepo) FindProductByID(context.Context, *gorm.DB, int64) (*catalogdomain.Product, error) {
	return nil, nil
}
func (r *stubCatalogRepo) FindProductBySlug(context.Context, *gorm.DB, string) (*catalogdomain.Product, error) {
	return nil, nil
}
func (r *stubCatalogRepo) ListProducts(context.Context, *gorm.DB, catalogdomain.ListRequest) ([]catalogdomain.Product, error) {
	return nil, nil
}
func (r *stubCatalogRepo) DecrementStock(context.Context, *gorm.DB, int64, int) (bool, error) {
	return false, nil
}
func (r *stubCatalogRepo) RestoreStock(context.Context, *gorm.DB, int64, int) error {
	return nil
}
func (r *stubCatalogRepo) SetStock(context.Context, *gorm.DB, int64, int) (bool, error) {
	return false, nil
}
func (r *stubCatalogRepo) ListLowStock(ctx context.Context, db *gorm.DB, threshold int, limit int) ([]catalogdomain.Product, error) {
	return r.low, r.err
}
func (r *stubCatalogRepo) CreateCategory(context.Context, *gorm.DB, *catalogdomain.Category) error {
	return nil
}
func (r *stubCatalogRepo) FindCategoryByID(context.Context, *gorm.DB, int64) (*catalogdomain.Category, error) {
	return nil, nil
}
func (r *stubCatalogRepo) ListCategories(context.Context, *gorm.DB) ([]catalogdomain.Category, error) {
	return nil, nil
}

type stubSlack struct {
	messages []string
	err      error
}

func (s *stubSlack) PostMessage(ctx context.Context, message string) error {
	if s.err != nil {
		return s.err
	}
	s.messages = append(s.messages, message)
	return nil
}

func newLowStockScheduler(t *testing.T, repo *stubCatalogRepo, sl *stubSlack) *Scheduler {
	t.Helper()
	sched, err := New(Params{
		Log:         zap.NewNop(),
		OrderSvc:    &stubOrderSvc{},
		Clock:       clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		DB:          &gorm.DB{},
		CatalogRepo: repo,
		Slack:       sl,
		Config:      Config{LowStockThreshold: 5},
	})
	if err != nil {
		t.Fatalf("New scheduler: %v", err)
	}
	return sched
}

func TestLowStockJobAlertsOnceUntilRestock(t *testing.T) {
	repo := &stubCatalogRepo{low: []catalogdomain.Product{
		{ID: 1, Name: "House Blend 250g", StockQuantity: 2},
		{ID: 2, Name: "Pour Over Kettle", StockQuantity: 4},
	}}
	sl := &stubSlack{}
	sched := newLowStockScheduler(t, repo, sl)

	n, err := sched.LowStockJob(context.Background())
	if err != nil {
		t.Fatalf("LowStockJob: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 alerts, got %d", n)
	}
	if len(sl.messages) != 1 {
		t.Fatalf("expected 1 slack message, got %d", len(sl.messages))
	}
	if !strings.Contains(sl.messages[0], "House Blend 250g: 2 left") {
		t.Fatalf("message missing product line: %q", sl.messages[0])
	}

	// Same products still low. No repeat alert.
	n, err = sched.LowStockJob(context.Background())
	if err != nil {
		t.Fatalf("LowStockJob repeat: %v", err)
	}
	if n != 0 || len(sl.messages) != 1 {
		t.Fatalf("expected no repeat alert, got n=%d messages=%d", n, len(sl.messages))
	}

	// Restock the kettle, then it drops low again.
	repo.low = []catalogdomain.Product{{ID: 1, Name: "House Blend 250g", StockQuantity: 2}}
	if _, err := sched.LowStockJob(context.Background()); err != nil {
		t.Fatalf("LowStockJob after restock: %v", err)
	}
	repo.low = append(repo.low, catalogdomain.Product{ID: 2, Name: "Pour Over Kettle", StockQuantity: 3})
	n, err = sched.LowStockJob(context.Background())
	if err != nil {
		t.Fatalf("LowStockJob after second drop: %v", err)
	}
	if n != 1 || len(sl.messages) != 2 {
		t.Fatalf("expected fresh alert after restock cycle, got n=%d messages=%d", n, len(sl.messages))
	}
}

func TestLowStockJobRetriesAfterSlackFailure(t *testing.T) {
	repo := &stubCatalogRepo{low: []catalogdomain.Product{
		{ID: 1, Name: "House Blend 250g", StockQuantity: 1},
	}}
	sl := &stubSlack{err: errors.New("webhook down")}
	sched := newLowStockScheduler(t, repo, sl)

	if _, err := sched.LowStockJob(context.Background()); err == nil {
		t.Fatal("expected slack error")
	}

	sl.err = nil
	n, err := sched.LowStockJob(context.Background())
	if err != nil {
		t.Fatalf("LowStockJob retry: %v", err)
	}
	if n != 1 || len(sl.messages) != 1 {
		t.Fatalf("expected alert on retry, got n=%d messages=%d", n, len(sl.messages))
	}
}

func TestLowStockJobSkipsWhenDisabled(t *testing.T) {
	sched := newTestScheduler(t, &stubOrderSvc{}, clock.NewFakeClock(time.Now()))
	n, err := sched.LowStockJob(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("expected disabled job to no-op, got n=%d err=%v", n, err)
	}
}
