package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/safar/storefront/internal/database"
)

const (
	ProductPageSize   = 12
	FlashSalePageSize = 12
	ReviewPageSize    = 10
	DefaultPageSize   = 20
	MaxPageSize       = 100
)

// PageRequest is a 1-based page number and a size clamped to MaxPageSize.
type PageRequest struct {
	Page     int
	PageSize int
}

func (p PageRequest) normalize(defaultSize int) PageRequest {
	p.Page = max(p.Page, 1)
	if p.PageSize < 1 {
		p.PageSize = defaultSize
	}
	p.PageSize = min(p.PageSize, MaxPageSize)
	return p
}

func (p PageRequest) offset() int {
	return (p.Page - 1) * p.PageSize
}

// OffsetPage backs the numbered catalog and staff listings.
type OffsetPage struct {
	Items      any   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func newOffsetPage(items any, total int64, p PageRequest) *OffsetPage {
	return &OffsetPage{
		Items:      items,
		Total:      total,
		Page:       p.Page,
		PageSize:   p.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(p.PageSize))),
	}
}

// CursorPage backs a customer's order history, newest first.
type CursorPage struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

// OrderCursor points at the last order of the previous page.
type OrderCursor struct {
	CreatedAt time.Time `json:"t"`
	ID        int64     `json:"id"`
}

func EncodeCursor(cursor OrderCursor) string {
	data, err := json.Marshal(cursor)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeCursor returns a cursor ahead of every order for an empty token.
func DecodeCursor(encoded string) (OrderCursor, error) {
	if encoded == "" {
		return OrderCursor{
			CreatedAt: time.Now().Add(time.Minute),
			ID:        math.MaxInt64,
		}, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return OrderCursor{}, fmt.Errorf("%w: %v", database.ErrInvalidCursor, err)
	}

	var cursor OrderCursor
	if err := json.Unmarshal(data, &cursor); err != nil {
		return OrderCursor{}, fmt.Errorf("%w: %v", database.ErrInvalidCursor, err)
	}
	if cursor.ID <= 0 || cursor.CreatedAt.IsZero() {
		return OrderCursor{}, database.ErrInvalidCursor
	}
	return cursor, nil
}
