package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/shop"
	"go.uber.org/zap"
)

type wishlistRequest struct {
	ProductID int64 `json:"product_id" binding:"required,min=1"`
}

type reviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

func (h *handler) listWishlist(c *gin.Context) {
	items, err := h.svc.ListWishlist(c.Request.Context(), identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, items)
}

func (h *handler) addToWishlist(c *gin.Context) {
	var req wishlistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	status, err := h.svc.AddToWishlist(c.Request.Context(), identity(c), req.ProductID)
	if err != nil {
		fail(c, err)
		return
	}

	message, code := "added to wishlist", http.StatusCreated
	if status == shop.WishlistExists {
		message, code = "already in wishlist", http.StatusOK
	}
	done(c, code, message, gin.H{"status": status})
}

func (h *handler) removeFromWishlist(c *gin.Context) {
	productID, valid := pathID(c, "id")
	if !valid {
		return
	}
	if err := h.svc.RemoveFromWishlist(c.Request.Context(), identity(c), productID); err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "removed from wishlist", nil)
}

func (h *handler) productReviews(c *gin.Context) {
	reviews, err := h.svc.ListProductReviews(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, reviews)
}

func (h *handler) addReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	review, err := h.svc.AddReview(c.Request.Context(), identity(c), c.Param("slug"), req.Rating, req.Comment)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusCreated, "thanks for your review", review)
}

func (h *handler) listReviews(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		invalid(c, err)
		return
	}
	page, err := h.svc.ListReviews(c.Request.Context(), q.request())
	if err != nil {
		fail(c, err)
		return
	}
	offsetPage(c, page)
}

// notifications drains the session's pending messages; each is returned once.
func (h *handler) notifications(c *gin.Context) {
	v, _ := c.Get(sessionsKey)
	sessions, isSessions := v.(Sessions)
	if !isSessions {
		ok(c, []string{})
		return
	}
	messages, err := sessions.Flashes(c.Writer, c.Request)
	if err != nil {
		logger.FromGin(c).Warn("notifications unavailable", zap.Error(err))
		messages = []string{}
	}
	ok(c, messages)
}
