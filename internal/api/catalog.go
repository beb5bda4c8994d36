package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

type handler struct {
	svc Shop
}

type pageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func (q pageQuery) request() store.PageRequest {
	return store.PageRequest{Page: q.Page, PageSize: q.PageSize}
}

type productQuery struct {
	pageQuery
	Query    string `form:"q" binding:"max=200"`
	Category string `form:"category" binding:"omitempty,slug"`
	MinPrice string `form:"min_price" binding:"omitempty,numeric"`
	MaxPrice string `form:"max_price" binding:"omitempty,numeric"`
	Sort     string `form:"sort" binding:"omitempty,oneof=price -price name -name created_at -created_at"`
}

func (q productQuery) filter() (store.ProductFilter, error) {
	f := store.ProductFilter{
		Query:        q.Query,
		CategorySlug: q.Category,
		Sort:         q.Sort,
		Page:         q.request(),
	}
	var err error
	if f.MinPrice, err = optionalDecimal(q.MinPrice); err != nil {
		return f, err
	}
	if f.MaxPrice, err = optionalDecimal(q.MaxPrice); err != nil {
		return f, err
	}
	return f, nil
}

func optionalDecimal(raw string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

// pathID parses the named path parameter, answering 400 when it is not a
// positive integer.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abortWith(c, http.StatusBadRequest, CodeValidation, "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *handler) home(c *gin.Context) {
	home, err := h.svc.Home(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, home)
}

func (h *handler) listProducts(c *gin.Context) {
	var q productQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		invalid(c, err)
		return
	}
	filter, err := q.filter()
	if err != nil {
		invalid(c, err)
		return
	}

	page, err := h.svc.ListProducts(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	offsetPage(c, page)
}

func (h *handler) productDetail(c *gin.Context) {
	detail, err := h.svc.ProductDetail(c.Request.Context(), identity(c), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, detail)
}

func (h *handler) listCategories(c *gin.Context) {
	categories, err := h.svc.ListCategories(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, categories)
}

func (h *handler) categoryDetail(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		invalid(c, err)
		return
	}
	detail, err := h.svc.CategoryDetail(c.Request.Context(), c.Param("slug"), q.request())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, detail)
}

func (h *handler) searchSuggestions(c *gin.Context) {
	suggestions, err := h.svc.SearchSuggestions(c.Request.Context(), c.Query("q"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, suggestions)
}

func (h *handler) flashSale(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		invalid(c, err)
		return
	}
	page, err := h.svc.ActiveFlashSale(c.Request.Context(), q.request())
	if err != nil {
		fail(c, err)
		return
	}
	offsetPage(c, page)
}
