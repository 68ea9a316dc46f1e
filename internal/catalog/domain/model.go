package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Category struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"type:text;not null"`
	Slug      string    `json:"slug" gorm:"type:text;not null;uniqueIndex:idx_categories_slug"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Category) TableName() string { return "categories" }

type Product struct {
	ID            int64             `json:"id" gorm:"primaryKey"`
	CategoryID    *int64            `json:"category_id,omitempty" gorm:"column:category_id"`
	Name          string            `json:"name" gorm:"type:text;not null"`
	Slug          string            `json:"slug" gorm:"type:text;not null;uniqueIndex:idx_products_slug"`
	Description   string            `json:"description" gorm:"type:text"`
	ImageURL      string            `json:"image_url" gorm:"type:text"`
	PriceCents    int64             `json:"price_cents" gorm:"not null"`
	Currency      string            `json:"currency" gorm:"type:text;not null"`
	StockQuantity int               `json:"stock_quantity" gorm:"not null"`
	Active        bool              `json:"active" gorm:"not null;default:true"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt     time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }
