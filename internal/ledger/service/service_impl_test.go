package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/storefront/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/storefront/internal/ledger/repository"
	"github.com/smallbiznis/storefront/internal/migration"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*gorm.DB, domain.Service) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, migration.RunMigrations(sqlDB, "sqlite"))
	t.Cleanup(func() { _ = sqlDB.Close() })

	svc := New(Params{DB: db, Log: zap.NewNop(), Repo: ledgerrepo.Provide()})
	return db, svc
}

func seedRow(t *testing.T, db *gorm.DB, sourceType, number string, amount int64, status string, occurredAt time.Time) {
	t.Helper()
	require.NoError(t, db.Exec(
		`INSERT INTO revenue_transactions (source_type, source_id, source_number, amount_cents, currency, payment_status, occurred_at, created_at)
		 VALUES (?, ?, ?, ?, 'USD', ?, ?, ?)`,
		sourceType, time.Now().UnixNano(), number, amount, status, occurredAt, occurredAt,
	).Error)
}

func TestSummaryTotalsAndDailyBuckets(t *testing.T) {
	db, svc := newTestService(t)
	day1 := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 4, 2, 15, 0, 0, 0, time.UTC)

	seedRow(t, db, "order", "ORD-1", 2950, "paid", day1)
	seedRow(t, db, "receipt", "RCP-1", 1000, "paid", day1)
	seedRow(t, db, "order", "ORD-2", 500, "refunded", day2)

	resp, err := svc.Summary(context.Background(), domain.SummaryRequest{
		From: day1.Add(-time.Hour),
		To:   day2.Add(time.Hour),
	})
	require.NoError(t, err)

	require.Equal(t, int64(4450), resp.GrossCents)
	require.Equal(t, int64(500), resp.RefundedCents)
	require.Equal(t, int64(3950), resp.NetCents)
	require.Equal(t, int64(3), resp.Count)

	require.Len(t, resp.Daily, 2)
	require.Equal(t, "2025-04-01", resp.Daily[0].Day)
	require.Equal(t, int64(3950), resp.Daily[0].GrossCents)
	require.Equal(t, "2025-04-02", resp.Daily[1].Day)
	require.Equal(t, int64(500), resp.Daily[1].RefundedCents)
}

func TestSummaryRejectsInvertedRange(t *testing.T) {
	_, svc := newTestService(t)
	now := time.Now().UTC()

	_, err := svc.Summary(context.Background(), domain.SummaryRequest{From: now, To: now.Add(-time.Hour)})
	require.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestListFiltersAndPaginates(t *testing.T) {
	db, svc := newTestService(t)
	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		seedRow(t, db, "order", fmt.Sprintf("ORD-%d", i), 1000+int64(i), "paid", base.Add(time.Duration(i)*time.Minute))
	}
	seedRow(t, db, "receipt", "RCP-1", 700, "paid", base.Add(10*time.Minute))

	window := domain.ListRequest{
		From:     base.Add(-time.Hour),
		To:       base.Add(time.Hour),
		PageSize: 2,
	}

	// First page.
	resp, err := svc.List(context.Background(), domain.ListRequest{
		SourceType: "order", From: window.From, To: window.To, PageSize: 2,
	})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)
	require.Equal(t, "ORD-0", resp.Items[0].SourceNumber)
	require.Equal(t, "ORD-1", resp.Items[1].SourceNumber)
	require.True(t, resp.PageInfo.HasMore)
	require.NotEmpty(t, resp.PageInfo.NextPageToken)

	// Walk the cursor to the end.
	var seen []string
	for _, item := range resp.Items {
		seen = append(seen, item.SourceNumber)
	}
	token := resp.PageInfo.NextPageToken
	for token != "" {
		resp, err = svc.List(context.Background(), domain.ListRequest{
			SourceType: "order", From: window.From, To: window.To, PageSize: 2, PageToken: token,
		})
		require.NoError(t, err)
		for _, item := range resp.Items {
			seen = append(seen, item.SourceNumber)
		}
		if !resp.PageInfo.HasMore {
			break
		}
		token = resp.PageInfo.NextPageToken
	}
	require.Equal(t, []string{"ORD-0", "ORD-1", "ORD-2", "ORD-3", "ORD-4"}, seen)

	// Status filter.
	resp, err = svc.List(context.Background(), domain.ListRequest{
		PaymentStatus: "refunded", From: window.From, To: window.To,
	})
	require.NoError(t, err)
	require.Empty(t, resp.Items)
}

func TestExportCSVStreamsWindow(t *testing.T) {
	db, svc := newTestService(t)
	base := time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)
	seedRow(t, db, "order", "ORD-1", 2950, "paid", base)
	seedRow(t, db, "receipt", "RCP-1", 1000, "refunded", base.Add(time.Minute))

	var buf bytes.Buffer
	err := svc.ExportCSV(context.Background(), domain.ListRequest{
		From: base.Add(-time.Hour),
		To:   base.Add(time.Hour),
	}, &buf)
	require.NoError(t, err)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"id", "source_type", "source_number", "amount_cents", "currency", "payment_status", "occurred_at"}, records[0])
	require.Equal(t, "ORD-1", records[1][2])
	require.Equal(t, "2950", records[1][3])
	require.Equal(t, "refunded", records[2][5])
}
