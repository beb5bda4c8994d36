// Package api is the JSON HTTP surface of the storefront. Handlers bind and
// validate requests, call the shop service with the caller's identity and
// map its sentinel errors onto status codes.
package api

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	ServiceName  string
	AllowOrigins []string
	// MaxUploadBytes bounds multipart memory for catalog imports.
	MaxUploadBytes int64
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", logger.RequestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", logger.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func NewRouter(cfg RouterConfig, svc Shop, tokens TokenVerifier, sessions Sessions, log *zap.Logger) *gin.Engine {
	if err := RegisterValidators(); err != nil {
		log.Warn("custom validators not registered", zap.Error(err))
	}

	r := gin.New()
	if cfg.MaxUploadBytes > 0 {
		r.MaxMultipartMemory = cfg.MaxUploadBytes
	}

	r.Use(
		otelgin.Middleware(cfg.ServiceName),
		logger.RequestID(),
		logger.Middleware(log),
		logger.Recovery(log),
		cors.New(corsConfig(cfg.AllowOrigins)),
	)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"status": "ok"}})
	})

	h := &handler{svc: svc}
	v1 := r.Group("/api/v1")

	// Signed by the payment provider; no session or bearer token.
	v1.POST("/webhooks/stripe", h.stripeWebhook)

	api := v1.Group("", Authenticate(tokens, sessions))
	{
		api.GET("/home", h.home)
		api.GET("/products", h.listProducts)
		api.GET("/products/:slug", h.productDetail)
		api.GET("/products/:slug/reviews", h.productReviews)
		api.POST("/products/:slug/reviews", h.addReview)
		api.GET("/categories", h.listCategories)
		api.GET("/categories/:slug", h.categoryDetail)
		api.GET("/search/suggestions", h.searchSuggestions)
		api.GET("/flash-sale", h.flashSale)
		api.GET("/reviews", h.listReviews)
		api.GET("/notifications", h.notifications)

		api.GET("/cart", h.getCart)
		api.POST("/cart/items", h.addToCart)
		api.PUT("/cart/items/:id", h.updateCartLine)
		api.DELETE("/cart/items/:id", h.removeCartLine)

		api.POST("/checkout", h.checkout)
		api.POST("/buy-now", h.buyNow)

		api.GET("/orders", h.listMyOrders)
		api.GET("/orders/:id", h.getOrder)
		api.PUT("/orders/:id/shipping", h.updateShipping)
		api.PUT("/orders/:id/status", h.updateStatus)
		api.POST("/orders/:id/payment-intent", h.createPaymentIntent)

		api.GET("/wishlist", h.listWishlist)
		api.POST("/wishlist", h.addToWishlist)
		api.DELETE("/wishlist/:id", h.removeFromWishlist)

		api.GET("/delivery/dashboard", h.deliveryDashboard)
		api.PUT("/delivery/availability", h.setAvailability)
	}

	admin := api.Group("/admin")
	{
		admin.POST("/categories", h.createCategory)
		admin.PUT("/categories/:id", h.updateCategory)

		admin.POST("/products", h.createProduct)
		admin.PUT("/products/:id", h.updateProduct)
		admin.POST("/products/:id/images", h.addProductImage)
		admin.PUT("/products/:id/sale-price", h.updateSalePrice)
		admin.POST("/imports/products", h.importProducts)
		admin.GET("/exports/products", h.exportProducts)

		admin.POST("/flash-sales", h.createCampaign)
		admin.PUT("/flash-sales/:id/items", h.saveFlashItem)

		admin.GET("/orders", h.listAllOrders)
		admin.POST("/orders/:id/assign", h.assignDelivery)
		admin.POST("/orders/:id/mark-paid", h.markPaid)

		admin.GET("/users", h.listUsers)
		admin.POST("/users", h.createUser)
		admin.PUT("/users/:id/role", h.setUserRole)
		admin.GET("/delivery-agents", h.listAgents)
		admin.POST("/delivery-agents", h.createAgent)
	}

	return r
}
