package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/models"
)

type cartLineRequest struct {
	ProductID int64 `json:"product_id" binding:"required,min=1"`
	Quantity  int   `json:"quantity" binding:"omitempty,min=1"`
}

type cartQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type checkoutRequest struct {
	Shipping models.ShippingDetails `json:"shipping"`
}

// cartView adds the derived total to the cart payload.
type cartView struct {
	*models.Cart
	Total      string `json:"total"`
	TotalItems int    `json:"total_items"`
}

func newCartView(cart *models.Cart) cartView {
	return cartView{Cart: cart, Total: cart.TotalPrice().StringFixed(2), TotalItems: cart.TotalItems()}
}

func (h *handler) getCart(c *gin.Context) {
	cart, err := h.svc.ResolveCart(c.Request.Context(), identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, newCartView(cart))
}

func (h *handler) addToCart(c *gin.Context) {
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart, err := h.svc.AddToCart(c.Request.Context(), identity(c), req.ProductID, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "added to cart", newCartView(cart))
}

func (h *handler) updateCartLine(c *gin.Context) {
	itemID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req cartQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}

	cart, err := h.svc.UpdateCartLine(c.Request.Context(), identity(c), itemID, *req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "cart updated", newCartView(cart))
}

func (h *handler) removeCartLine(c *gin.Context) {
	itemID, valid := pathID(c, "id")
	if !valid {
		return
	}
	cart, err := h.svc.RemoveCartLine(c.Request.Context(), identity(c), itemID)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "item removed from cart", newCartView(cart))
}

func (h *handler) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	order, err := h.svc.CheckoutCart(c.Request.Context(), identity(c), req.Shipping)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusCreated, "order "+order.OrderNumber+" placed", order)
}

func (h *handler) buyNow(c *gin.Context) {
	var req cartLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	order, err := h.svc.BuyNow(c.Request.Context(), identity(c), req.ProductID, req.Quantity)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusCreated, "order "+order.OrderNumber+" placed", order)
}
