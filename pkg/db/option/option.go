package option

import (
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/storefront/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 50
	maxPageSize     = 250
)

// Option applies a clause to a gorm statement.
type Option interface {
	Apply(stmt *gorm.DB) *gorm.DB
}

type sortBy struct {
	clause string
}

func (o sortBy) Apply(stmt *gorm.DB) *gorm.DB {
	if o.clause == "" {
		return stmt
	}
	return stmt.Order(o.clause)
}

// WithSortBy orders the query by the given clause.
func WithSortBy(clause string) Option {
	return sortBy{clause: clause}
}

type paginate struct {
	page       pagination.Pagination
	timeColumn string
}

func (o paginate) Apply(stmt *gorm.DB) *gorm.DB {
	size := PageSize(o.page)

	if o.page.PageToken != "" {
		cur, err := pagination.DecodeCursor(o.page.PageToken)
		if err == nil && cur.CreatedAt != "" {
			if ts, terr := time.Parse(time.RFC3339Nano, cur.CreatedAt); terr == nil {
				stmt = stmt.Where(
					o.timeColumn+" > ? OR ("+o.timeColumn+" = ? AND id > ?)",
					ts, ts, cursorID(cur.ID),
				)
			}
		}
	}

	// One extra row so the caller can tell whether another page exists.
	return stmt.Limit(size + 1)
}

// ApplyPagination seeks past an encoded cursor and caps the page. The
// query must order by (timeColumn ASC, id ASC).
func ApplyPagination(page pagination.Pagination, timeColumn string) Option {
	return paginate{page: page, timeColumn: timeColumn}
}

// PageSize clamps the requested page size into the allowed range.
func PageSize(page pagination.Pagination) int {
	size := page.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return size
}

func cursorID(raw string) any {
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return id
	}
	return raw
}

// WithQuerySortBy validates user-supplied sort parameters against the
// allowed column set and returns a safe ORDER BY clause.
func WithQuerySortBy(field, direction string, allowed map[string]bool) string {
	field = strings.ToLower(strings.TrimSpace(field))
	if field == "" || !allowed[field] {
		field = "created_at"
	}

	direction = strings.ToLower(strings.TrimSpace(direction))
	if direction != "desc" {
		direction = "asc"
	}

	return field + " " + direction
}
