package api

import (
	"context"
	"io"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/shop"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
)

// Shop is the slice of *shop.Service the handlers call.
type Shop interface {
	Home(ctx context.Context) (*shop.Home, error)
	ListProducts(ctx context.Context, filter store.ProductFilter) (*store.OffsetPage, error)
	ProductDetail(ctx context.Context, id auth.Identity, slug string) (*shop.ProductDetail, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
	CategoryDetail(ctx context.Context, slug string, page store.PageRequest) (*shop.CategoryDetail, error)
	SearchSuggestions(ctx context.Context, q string) ([]shop.SearchSuggestion, error)
	ActiveFlashSale(ctx context.Context, page store.PageRequest) (*store.OffsetPage, error)

	ResolveCart(ctx context.Context, id auth.Identity) (*models.Cart, error)
	AddToCart(ctx context.Context, id auth.Identity, productID int64, quantity int) (*models.Cart, error)
	UpdateCartLine(ctx context.Context, id auth.Identity, itemID int64, quantity int) (*models.Cart, error)
	RemoveCartLine(ctx context.Context, id auth.Identity, itemID int64) (*models.Cart, error)

	CheckoutCart(ctx context.Context, id auth.Identity, shipping models.ShippingDetails) (*models.Order, error)
	BuyNow(ctx context.Context, id auth.Identity, productID int64, quantity int) (*models.Order, error)
	UpdateOrderShipping(ctx context.Context, id auth.Identity, orderID int64, shipping models.ShippingDetails) (*models.Order, error)
	GetOrder(ctx context.Context, id auth.Identity, orderID int64) (*models.Order, error)
	ListMyOrders(ctx context.Context, id auth.Identity, cursor string, limit int) (*store.CursorPage, error)
	ListAllOrders(ctx context.Context, id auth.Identity, filter store.OrderFilter) (*store.OffsetPage, error)
	AssignDelivery(ctx context.Context, id auth.Identity, orderID, agentID int64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id auth.Identity, orderID int64, status string) (*models.Order, error)
	MarkPaid(ctx context.Context, id auth.Identity, orderID int64) (*models.Order, error)
	DeliveryDashboard(ctx context.Context, id auth.Identity, page store.PageRequest) (*shop.DeliveryDashboard, error)

	CreatePaymentIntent(ctx context.Context, id auth.Identity, orderID int64) (*shop.PaymentSession, error)
	HandlePaymentWebhook(ctx context.Context, payload []byte, signature string) error

	AddToWishlist(ctx context.Context, id auth.Identity, productID int64) (string, error)
	RemoveFromWishlist(ctx context.Context, id auth.Identity, productID int64) error
	ListWishlist(ctx context.Context, id auth.Identity) ([]models.WishlistItem, error)
	AddReview(ctx context.Context, id auth.Identity, slug string, rating int, comment string) (*models.Review, error)
	ListProductReviews(ctx context.Context, slug string) ([]models.Review, error)
	ListReviews(ctx context.Context, page store.PageRequest) (*store.OffsetPage, error)

	CreateCategory(ctx context.Context, id auth.Identity, in store.CategoryInput) (*models.Category, error)
	UpdateCategory(ctx context.Context, id auth.Identity, categoryID int64, in store.CategoryInput) (*models.Category, error)
	CreateProduct(ctx context.Context, id auth.Identity, in store.ProductInput) (*models.Product, error)
	UpdateProduct(ctx context.Context, id auth.Identity, productID int64, version int, in store.ProductInput) (*models.Product, error)
	AddProductImage(ctx context.Context, id auth.Identity, img models.ProductImage) (*models.ProductImage, error)
	UpdateProductSalePrice(ctx context.Context, id auth.Identity, productID int64, price decimal.NullDecimal) (*models.Product, error)
	CreateFlashSaleCampaign(ctx context.Context, id auth.Identity, c models.FlashSaleCampaign) (*models.FlashSaleCampaign, error)
	SaveFlashSaleItem(ctx context.Context, id auth.Identity, item models.FlashSaleItem) (*models.FlashSaleItem, error)
	ImportProducts(ctx context.Context, id auth.Identity, r io.ReaderAt, size int64) (*shop.ImportResult, error)
	ExportProducts(ctx context.Context, id auth.Identity, w io.Writer) error

	CreateUser(ctx context.Context, id auth.Identity, email, name, role string) (*models.User, error)
	ListUsers(ctx context.Context, id auth.Identity, page store.PageRequest) (*store.OffsetPage, error)
	SetUserRole(ctx context.Context, id auth.Identity, userID int64, role string) (*models.User, error)
	CreateDeliveryAgent(ctx context.Context, id auth.Identity, userID int64, phone string) (*models.DeliveryAgent, error)
	ListDeliveryAgents(ctx context.Context, id auth.Identity, availableOnly bool) ([]models.DeliveryAgent, error)
	SetMyAvailability(ctx context.Context, id auth.Identity, available bool) (*models.DeliveryAgent, error)
}

var _ Shop = (*shop.Service)(nil)
