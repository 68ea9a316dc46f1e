package service

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/internal/catalog/repository"
	"github.com/smallbiznis/storefront/internal/config"
	"github.com/smallbiznis/storefront/internal/migration"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	svc  domain.Service
	repo domain.Repository
}

func newFixture(t *testing.T) *fixture {
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

	repo := repository.Provide()
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repo,
		Store: config.NewStaticStoreConfigHolder(config.DefaultStoreConfig()),
	})
	return &fixture{db: db, svc: svc, repo: repo}
}

func (f *fixture) createProduct(t *testing.T, name string, price int64, stock int) *domain.ProductResponse {
	t.Helper()
	resp, err := f.svc.CreateProduct(context.Background(), domain.CreateProductRequest{
		Name:       name,
		PriceCents: price,
		Stock:      stock,
	})
	require.NoError(t, err)
	return resp
}

func strPtr(s string) *string { return &s }

func TestUpdateProductLeavesStockAlone(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "House Blend", 1250, 10)
	productID, err := snowflake.ParseString(p.ID)
	require.NoError(t, err)

	// Snapshot the row, then let a sale land before the save comes back.
	stale, err := f.repo.FindProductByID(context.Background(), f.db, productID.Int64())
	require.NoError(t, err)
	ok, err := f.repo.DecrementStock(context.Background(), f.db, productID.Int64(), 3)
	require.NoError(t, err)
	require.True(t, ok)

	stale.Name = "House Blend 250g"
	require.NoError(t, f.repo.UpdateProduct(context.Background(), f.db, stale))

	after, err := f.svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, "House Blend 250g", after.Name)
	require.Equal(t, 7, after.StockQuantity, "stale save must not resurrect sold stock")

	archived, err := f.svc.ArchiveProduct(context.Background(), p.ID)
	require.NoError(t, err)
	require.False(t, archived.Active)
	require.Equal(t, 7, archived.StockQuantity)
}

func TestSetStockOverwritesLevel(t *testing.T) {
	f := newFixture(t)
	p := f.createProduct(t, "Pour Over Kettle", 4900, 2)

	resp, err := f.svc.SetStock(context.Background(), p.ID, 42)
	require.NoError(t, err)
	require.Equal(t, 42, resp.StockQuantity)

	_, err = f.svc.SetStock(context.Background(), p.ID, -1)
	require.ErrorIs(t, err, domain.ErrInvalidStock)

	_, err = f.svc.SetStock(context.Background(), "999999999999999999", 5)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.SetStock(context.Background(), "not-an-id", 5)
	require.ErrorIs(t, err, domain.ErrInvalidID)
}
