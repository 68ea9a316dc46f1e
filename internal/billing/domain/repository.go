package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, db *gorm.DB, receipt *Receipt) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Receipt, error)
	FindByNumber(ctx context.Context, db *gorm.DB, number string) (*Receipt, error)
	FindItems(ctx context.Context, db *gorm.DB, receiptID int64) ([]ReceiptItem, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Receipt, error)
}
