package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/store"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Success bool       `json:"success"`
	Message string     `json:"message,omitempty"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta carries offset pagination totals or the cursor of the next page.
type Meta struct {
	Total      int64  `json:"total,omitempty"`
	Page       int    `json:"page,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`
	TotalPages int    `json:"total_pages,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
	HasMore    bool   `json:"has_more"`
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// done answers a mutating request and queues message as a notification.
func done(c *gin.Context, status int, message string, data any) {
	notify(c, message)
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func offsetPage(c *gin.Context, page *store.OffsetPage) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    page.Items,
		Meta: &Meta{
			Total:      page.Total,
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalPages: page.TotalPages,
			HasMore:    page.Page < page.TotalPages,
		},
	})
}

func cursorPage(c *gin.Context, page *store.CursorPage) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    page.Items,
		Meta:    &Meta{NextCursor: page.NextCursor, HasMore: page.HasMore},
	})
}

func abortWith(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Message: message,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}
