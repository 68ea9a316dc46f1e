package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/storefront/internal/catalog/domain"
	"github.com/smallbiznis/storefront/pkg/db/option"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) CreateProduct(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO products (id, category_id, name, slug, description, image_url, price_cents, currency, stock_quantity, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		product.ID,
		product.CategoryID,
		product.Name,
		product.Slug,
		product.Description,
		product.ImageURL,
		product.PriceCents,
		product.Currency,
		product.StockQuantity,
		product.Active,
		product.CreatedAt,
		product.UpdatedAt,
	).Error
}

// UpdateProduct writes the editable product fields. It never touches
// stock_quantity: stock only moves through DecrementStock, RestoreStock
// and SetStock, so a sale committing between a read and this write
// cannot be overwritten.
func (r *repo) UpdateProduct(ctx context.Context, db *gorm.DB, product *domain.Product) error {
	if product == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET category_id = ?, name = ?, description = ?, image_url = ?, price_cents = ?, currency = ?, active = ?, updated_at = ?
		 WHERE id = ?`,
		product.CategoryID,
		product.Name,
		product.Description,
		product.ImageURL,
		product.PriceCents,
		product.Currency,
		product.Active,
		product.UpdatedAt,
		product.ID,
	).Error
}

func (r *repo) FindProductByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, category_id, name, slug, description, image_url, price_cents, currency, stock_quantity, active, created_at, updated_at
		 FROM products WHERE id = ?`,
		id,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) FindProductBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Product, error) {
	var p domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, category_id, name, slug, description, image_url, price_cents, currency, stock_quantity, active, created_at, updated_at
		 FROM products WHERE slug = ?`,
		slug,
	).Scan(&p).Error
	if err != nil {
		return nil, err
	}
	if p.ID == 0 {
		return nil, nil
	}
	return &p, nil
}

func (r *repo) ListProducts(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Product, error) {
	var items []domain.Product
	stmt := db.WithContext(ctx).Model(&domain.Product{})

	if filter.Name != "" {
		stmt = stmt.Where("name LIKE ?", "%"+filter.Name+"%")
	}
	if filter.CategoryID != nil {
		stmt = stmt.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at":  true,
		"updated_at":  true,
		"name":        true,
		"price_cents": true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) DecrementStock(ctx context.Context, db *gorm.DB, productID int64, quantity int) (bool, error) {
	if quantity <= 0 {
		return false, domain.ErrInvalidStock
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE products
		 SET stock_quantity = stock_quantity - ?, updated_at = ?
		 WHERE id = ? AND active = ? AND stock_quantity >= ?`,
		quantity,
		time.Now().UTC(),
		productID,
		true,
		quantity,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) RestoreStock(ctx context.Context, db *gorm.DB, productID int64, quantity int) error {
	if quantity <= 0 {
		return domain.ErrInvalidStock
	}
	return db.WithContext(ctx).Exec(
		`UPDATE products
		 SET stock_quantity = stock_quantity + ?, updated_at = ?
		 WHERE id = ?`,
		quantity,
		time.Now().UTC(),
		productID,
	).Error
}

func (r *repo) SetStock(ctx context.Context, db *gorm.DB, productID int64, stock int) (bool, error) {
	if stock < 0 {
		return false, domain.ErrInvalidStock
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE products
		 SET stock_quantity = ?, updated_at = ?
		 WHERE id = ?`,
		stock,
		time.Now().UTC(),
		productID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) ListLowStock(ctx context.Context, db *gorm.DB, threshold int, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = 50
	}
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, category_id, name, slug, description, image_url, price_cents, currency, stock_quantity, active, created_at, updated_at
		 FROM products
		 WHERE active = ? AND stock_quantity <= ?
		 ORDER BY stock_quantity ASC, name ASC
		 LIMIT ?`,
		true,
		threshold,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) CreateCategory(ctx context.Context, db *gorm.DB, category *domain.Category) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO categories (id, name, slug, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		category.ID,
		category.Name,
		category.Slug,
		category.CreatedAt,
		category.UpdatedAt,
	).Error
}

func (r *repo) FindCategoryByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Category, error) {
	var c domain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, created_at, updated_at FROM categories WHERE id = ?`,
		id,
	).Scan(&c).Error
	if err != nil {
		return nil, err
	}
	if c.ID == 0 {
		return nil, nil
	}
	return &c, nil
}

func (r *repo) ListCategories(ctx context.Context, db *gorm.DB) ([]domain.Category, error) {
	var items []domain.Category
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, slug, created_at, updated_at FROM categories ORDER BY name ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
