package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Service interface {
	CreateProduct(ctx context.Context, req CreateProductRequest) (*ProductResponse, error)
	UpdateProduct(ctx context.Context, req UpdateProductRequest) (*ProductResponse, error)
	ArchiveProduct(ctx context.Context, id string) (*ProductResponse, error)

	// SetStock overwrites a product's stock level. Kept apart from
	// UpdateProduct so a stale admin form cannot resurrect sold stock.
	SetStock(ctx context.Context, id string, stock int) (*ProductResponse, error)
	GetProduct(ctx context.Context, id string) (*ProductResponse, error)
	GetProductBySlug(ctx context.Context, slug string) (*ProductResponse, error)
	ListProducts(ctx context.Context, req ListRequest) ([]ProductResponse, error)

	CreateCategory(ctx context.Context, req CreateCategoryRequest) (*CategoryResponse, error)
	ListCategories(ctx context.Context) ([]CategoryResponse, error)
}

type ListRequest struct {
	Name       string
	CategoryID *int64
	Active     *bool
	SortBy     string
	OrderBy    string
}

type CreateProductRequest struct {
	CategoryID  *string        `json:"category_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ImageURL    string         `json:"image_url"`
	PriceCents  int64          `json:"price_cents"`
	Stock       int            `json:"stock_quantity"`
	Active      *bool          `json:"active"`
	Metadata    map[string]any `json:"metadata"`
}

type UpdateProductRequest struct {
	ID          string         `json:"-"`
	CategoryID  *string        `json:"category_id"`
	Name        *string        `json:"name"`
	Description *string        `json:"description"`
	ImageURL    *string        `json:"image_url"`
	PriceCents  *int64         `json:"price_cents"`
	Active      *bool          `json:"active"`
	Metadata    map[string]any `json:"metadata"`
}

type SetStockRequest struct {
	Stock int `json:"stock_quantity"`
}

type CreateCategoryRequest struct {
	Name string `json:"name"`
}

type ProductResponse struct {
	ID            string         `json:"id"`
	CategoryID    *string        `json:"category_id,omitempty"`
	Name          string         `json:"name"`
	Slug          string         `json:"slug"`
	Description   string         `json:"description,omitempty"`
	ImageURL      string         `json:"image_url,omitempty"`
	PriceCents    int64          `json:"price_cents"`
	Currency      string         `json:"currency"`
	StockQuantity int            `json:"stock_quantity"`
	Active        bool           `json:"active"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

type CategoryResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
}

var (
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidStock    = errors.New("invalid_stock")
	ErrInvalidID       = errors.New("invalid_id")
	ErrNotFound        = errors.New("not_found")
	ErrDuplicateSlug   = errors.New("duplicate_slug")
	ErrInvalidCategory = errors.New("invalid_category")
)

// InsufficientStockError reports which product could not be reserved.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q: requested %d, available %d",
		e.ProductName, e.Requested, e.Available)
}

// IsInsufficientStock reports whether err is an InsufficientStockError.
func IsInsufficientStock(err error) (*InsufficientStockError, bool) {
	var target *InsufficientStockError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
