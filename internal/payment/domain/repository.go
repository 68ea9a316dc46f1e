package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// InsertEvent stores the event record unless one with the same
	// provider event id already exists. It reports whether the row was
	// inserted.
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id int64, processedAt time.Time) error
	ListUnprocessed(ctx context.Context, db *gorm.DB, limit int) ([]EventRecord, error)
}
