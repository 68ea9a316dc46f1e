package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	CreateProduct(ctx context.Context, db *gorm.DB, product *Product) error
	UpdateProduct(ctx context.Context, db *gorm.DB, product *Product) error
	FindProductByID(ctx context.Context, db *gorm.DB, id int64) (*Product, error)
	FindProductBySlug(ctx context.Context, db *gorm.DB, slug string) (*Product, error)
	ListProducts(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Product, error)

	// DecrementStock atomically reserves quantity units of a product.
	// It reports false when the product is missing, inactive, or does
	// not have enough stock left.
	DecrementStock(ctx context.Context, db *gorm.DB, productID int64, quantity int) (bool, error)
	RestoreStock(ctx context.Context, db *gorm.DB, productID int64, quantity int) error

	// SetStock overwrites the stock level of a product. Explicit
	// restocks only, general product edits never touch stock.
	SetStock(ctx context.Context, db *gorm.DB, productID int64, stock int) (bool, error)

	// ListLowStock returns active products at or below the threshold,
	// lowest stock first.
	ListLowStock(ctx context.Context, db *gorm.DB, threshold int, limit int) ([]Product, error)

	CreateCategory(ctx context.Context, db *gorm.DB, category *Category) error
	FindCategoryByID(ctx context.Context, db *gorm.DB, id int64) (*Category, error)
	ListCategories(ctx context.Context, db *gorm.DB) ([]Category, error)
}
