package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/payment"
	"github.com/safar/storefront/internal/store"
	"go.uber.org/zap"
)

// Stripe webhook bodies are small; anything larger is refused unread.
const maxWebhookPayload = 64 << 10

const signatureHeader = "Stripe-Signature"

type orderListQuery struct {
	Cursor string `form:"cursor"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
}

type adminOrderQuery struct {
	pageQuery
	Status string `form:"status"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type assignRequest struct {
	AgentID int64 `json:"agent_id" binding:"required,min=1"`
}

type availabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

func (h *handler) listMyOrders(c *gin.Context) {
	var q orderListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		invalid(c, err)
		return
	}
	page, err := h.svc.ListMyOrders(c.Request.Context(), identity(c), q.Cursor, q.Limit)
	if err != nil {
		fail(c, err)
		return
	}
	cursorPage(c, page)
}

func (h *handler) getOrder(c *gin.Context) {
	orderID, valid := pathID(c, "id")
	if !valid {
		return
	}
	order, err := h.svc.GetOrder(c.Request.Context(), identity(c), orderID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, order)
}

func (h *handler) updateShipping(c *gin.Context) {
	orderID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var shipping models.ShippingDetails
	if err := c.ShouldBindJSON(&shipping); err != nil {
		invalid(c, err)
		return
	}
	order, err := h.svc.UpdateOrderShipping(c.Request.Context(), identity(c), orderID, shipping)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "shipping details saved", order)
}

func (h *handler) updateStatus(c *gin.Context) {
	orderID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	order, err := h.svc.UpdateOrderStatus(c.Request.Context(), identity(c), orderID, req.Status)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "order "+order.OrderNumber+" is now "+string(order.Status), order)
}

func (h *handler) createPaymentIntent(c *gin.Context) {
	orderID, valid := pathID(c, "id")
	if !valid {
		return
	}
	session, err := h.svc.CreatePaymentIntent(c.Request.Context(), identity(c), orderID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, session)
}

func (h *handler) listAllOrders(c *gin.Context) {
	var q adminOrderQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		invalid(c, err)
		return
	}
	page, err := h.svc.ListAllOrders(c.Request.Context(), identity(c), store.OrderFilter{
		Status: models.OrderStatus(q.Status),
		Page:   q.request(),
	})
	if err != nil {
		fail(c, err)
		return
	}
	offsetPage(c, page)
}

func (h *handler) assignDelivery(c *gin.Context) {
	orderID, valid := pathID(c, "id")
	if !valid {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	order, err := h.svc.AssignDelivery(c.Request.Context(), identity(c), orderID, req.AgentID)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "order "+order.OrderNumber+" assigned for delivery", order)
}

func (h *handler) markPaid(c *gin.Context) {
	orderID, valid := pathID(c, "id")
	if !valid {
		return
	}
	order, err := h.svc.MarkPaid(c.Request.Context(), identity(c), orderID)
	if err != nil {
		fail(c, err)
		return
	}
	done(c, http.StatusOK, "order "+order.OrderNumber+" marked as paid", order)
}

func (h *handler) deliveryDashboard(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		invalid(c, err)
		return
	}
	dash, err := h.svc.DeliveryDashboard(c.Request.Context(), identity(c), q.request())
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, dash)
}

func (h *handler) setAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalid(c, err)
		return
	}
	agent, err := h.svc.SetMyAvailability(c.Request.Context(), identity(c), *req.Available)
	if err != nil {
		fail(c, err)
		return
	}
	message := "you are now unavailable"
	if agent.IsAvailable {
		message = "you are now available"
	}
	done(c, http.StatusOK, message, agent)
}

// stripeWebhook answers 200 once an event is applied or deliberately
// ignored. Any other failure answers 500 so the provider redelivers it.
func (h *handler) stripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookPayload+1))
	if err != nil {
		abortWith(c, http.StatusBadRequest, CodeBadRequest, "failed to read request body")
		return
	}
	if len(payload) > maxWebhookPayload {
		abortWith(c, http.StatusRequestEntityTooLarge, CodeBadRequest, "payload too large")
		return
	}

	signature := c.GetHeader(signatureHeader)
	if signature == "" {
		abortWith(c, http.StatusBadRequest, CodeBadRequest, "missing "+signatureHeader+" header")
		return
	}

	if err := h.svc.HandlePaymentWebhook(c.Request.Context(), payload, signature); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			abortWith(c, http.StatusBadRequest, CodeBadRequest, err.Error())
			return
		}
		logger.FromGin(c).Error("webhook processing failed", zap.Error(err))
		abortWith(c, http.StatusInternalServerError, CodeInternal, "webhook processing failed")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"received": true}})
}
