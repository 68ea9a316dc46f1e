package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/storefront/internal/catalog/domain"
	"gorm.io/gorm"
)

type demoProduct struct {
	Name        string
	Slug        string
	Category    string
	Description string
	PriceCents  int64
	Stock       int
}

var demoCategories = []catalogdomain.Category{
	{Name: "Coffee", Slug: "coffee"},
	{Name: "Brewing Gear", Slug: "brewing-gear"},
	{Name: "Merchandise", Slug: "merchandise"},
}

var demoProducts = []demoProduct{
	{"House Blend 250g", "house-blend-250g", "coffee", "Medium roast, chocolate and hazelnut notes.", 1250, 120},
	{"Single Origin Ethiopia 250g", "single-origin-ethiopia-250g", "coffee", "Washed Yirgacheffe, floral and citrus.", 1650, 80},
	{"Decaf Blend 250g", "decaf-blend-250g", "coffee", "Swiss water process, caramel finish.", 1350, 60},
	{"V60 Dripper", "v60-dripper", "brewing-gear", "Ceramic pour-over dripper, size 02.", 2400, 35},
	{"Gooseneck Kettle", "gooseneck-kettle", "brewing-gear", "1L stovetop kettle with thermometer.", 4900, 20},
	{"Ceramic Mug", "ceramic-mug", "merchandise", "350ml stoneware mug with logo.", 1500, 150},
	{"Canvas Tote", "canvas-tote", "merchandise", "Heavyweight cotton tote bag.", 1100, 90},
}

// EnsureDemoCatalog seeds a small catalog for local development so the
// storefront has something to sell on first boot. Existing rows are
// left untouched, so it is safe to run on every startup.
func EnsureDemoCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categoryIDs := make(map[string]int64, len(demoCategories))
		for _, category := range demoCategories {
			existing, err := ensureCategoryTx(ctx, tx, node, category)
			if err != nil {
				return err
			}
			categoryIDs[existing.Slug] = existing.ID
		}

		for _, product := range demoProducts {
			if err := ensureProductTx(ctx, tx, node, product, categoryIDs); err != nil {
				return err
			}
		}
		return nil
	})
}

func ensureCategoryTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, category catalogdomain.Category) (catalogdomain.Category, error) {
	var existing catalogdomain.Category
	err := tx.WithContext(ctx).Where("slug = ?", category.Slug).First(&existing).Error
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return existing, err
	}

	now := time.Now().UTC()
	existing = catalogdomain.Category{
		ID:        node.Generate().Int64(),
		Name:      category.Name,
		Slug:      category.Slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.WithContext(ctx).Create(&existing).Error; err != nil {
		return existing, err
	}
	return existing, nil
}

func ensureProductTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node, product demoProduct, categoryIDs map[string]int64) error {
	var existing catalogdomain.Product
	err := tx.WithContext(ctx).Where("slug = ?", product.Slug).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	row := catalogdomain.Product{
		ID:            node.Generate().Int64(),
		Name:          product.Name,
		Slug:          product.Slug,
		Description:   product.Description,
		PriceCents:    product.PriceCents,
		Currency:      "USD",
		StockQuantity: product.Stock,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if categoryID, ok := categoryIDs[product.Category]; ok {
		row.CategoryID = &categoryID
	}
	return tx.WithContext(ctx).Create(&row).Error
}
