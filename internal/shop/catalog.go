package shop

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/catalogimport"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	homeFeaturedLimit   = 8
	homeLatestLimit     = 4
	homeCategoryLimit   = 6
	relatedProductLimit = 4
	suggestionLimit     = 5
)

type ProductDetail struct {
	Product       *models.Product  `json:"product"`
	AverageRating decimal.Decimal  `json:"average_rating"`
	Reviews       []models.Review  `json:"reviews"`
	Related       []models.Product `json:"related_products"`
	InWishlist    bool             `json:"is_in_wishlist"`

	// FlashSale lists the product's offers that are running right now.
	FlashSale []models.FlashSaleItem `json:"flash_sale"`
}

type CategoryDetail struct {
	Category *models.Category  `json:"category"`
	Products *store.OffsetPage `json:"products"`
}

type Home struct {
	Featured   []models.Product  `json:"featured_products"`
	Latest     []models.Product  `json:"latest_products"`
	Categories []models.Category `json:"categories"`
}

type SearchSuggestion struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Slug  string          `json:"slug"`
	Image string          `json:"image"`
}

func (s *Service) ListProducts(ctx context.Context, filter store.ProductFilter) (*store.OffsetPage, error) {
	page, err := store.ListProducts(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if err := s.markFlashSales(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *Service) markFlashSales(ctx context.Context, page *store.OffsetPage) error {
	products, ok := page.Items.([]models.Product)
	if !ok {
		return nil
	}
	return store.MarkFlashSales(ctx, s.db, products, s.now())
}

func (s *Service) ProductDetail(ctx context.Context, id auth.Identity, slug string) (*ProductDetail, error) {
	product, err := store.GetProductBySlug(ctx, s.db, slug)
	if err != nil {
		return nil, err
	}
	if err := store.LoadProductImages(ctx, s.db, product); err != nil {
		return nil, err
	}

	detail := &ProductDetail{Product: product}

	if detail.AverageRating, err = store.AverageRating(ctx, s.db, product.ID); err != nil {
		return nil, err
	}
	if detail.Reviews, err = store.ListProductReviews(ctx, s.db, product.ID); err != nil {
		return nil, err
	}
	if detail.Related, err = store.ListRelatedProducts(ctx, s.db, product, relatedProductLimit); err != nil {
		return nil, err
	}

	offers, err := store.ListProductFlashSaleItems(ctx, s.db, product.ID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	detail.FlashSale = []models.FlashSaleItem{}
	for _, offer := range offers {
		if offer.IsAvailable(now) {
			detail.FlashSale = append(detail.FlashSale, offer)
		}
	}
	product.InFlashSale = len(detail.FlashSale) > 0
	if err := store.MarkFlashSales(ctx, s.db, detail.Related, now); err != nil {
		return nil, err
	}

	if id.IsAuthenticated() {
		if detail.InWishlist, err = store.IsWishlisted(ctx, s.db, id.UserID, product.ID); err != nil {
			return nil, err
		}
	}

	return detail, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return store.ListCategories(ctx, s.db, 0)
}

func (s *Service) CategoryDetail(ctx context.Context, slug string, page store.PageRequest) (*CategoryDetail, error) {
	category, err := store.GetCategoryBySlug(ctx, s.db, slug)
	if err != nil {
		return nil, err
	}

	products, err := s.ListProducts(ctx, store.ProductFilter{CategorySlug: slug, Page: page})
	if err != nil {
		return nil, err
	}
	return &CategoryDetail{Category: category, Products: products}, nil
}

// SearchSuggestions backs the search-as-you-type box. A blank query yields
// no results rather than the whole catalog.
func (s *Service) SearchSuggestions(ctx context.Context, q string) ([]SearchSuggestion, error) {
	out := []SearchSuggestion{}
	if q == "" {
		return out, nil
	}

	products, err := store.SearchProducts(ctx, s.db, q, suggestionLimit)
	if err != nil {
		return nil, err
	}
	for _, p := range products {
		out = append(out, SearchSuggestion{
			ID:    p.ID,
			Name:  p.Name,
			Price: p.EffectivePrice(),
			Slug:  p.Slug,
			Image: p.ImageSource(),
		})
	}
	return out, nil
}

func (s *Service) Home(ctx context.Context) (*Home, error) {
	var (
		h   Home
		err error
	)
	if h.Featured, err = store.ListFeaturedProducts(ctx, s.db, homeFeaturedLimit); err != nil {
		return nil, err
	}
	if h.Latest, err = store.ListLatestProducts(ctx, s.db, homeLatestLimit); err != nil {
		return nil, err
	}
	if h.Categories, err = store.ListCategories(ctx, s.db, homeCategoryLimit); err != nil {
		return nil, err
	}
	now := s.now()
	for _, products := range [][]models.Product{h.Featured, h.Latest} {
		if err := store.MarkFlashSales(ctx, s.db, products, now); err != nil {
			return nil, err
		}
	}
	return &h, nil
}

func (s *Service) CreateCategory(ctx context.Context, id auth.Identity, in store.CategoryInput) (*models.Category, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	if in.Slug == "" {
		in.Slug = catalogimport.Slugify(in.Name)
	}

	c, err := store.CreateCategory(ctx, s.db, in)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, fmt.Errorf("category slug %q: %w", in.Slug, database.ErrAlreadyExists)
		}
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id auth.Identity, categoryID int64, in store.CategoryInput) (*models.Category, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	if in.Slug == "" {
		in.Slug = catalogimport.Slugify(in.Name)
	}

	c, err := store.UpdateCategory(ctx, s.db, categoryID, in)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, fmt.Errorf("category slug %q: %w", in.Slug, database.ErrAlreadyExists)
		}
		return nil, err
	}
	return c, nil
}

func validateProductInput(in *store.ProductInput) error {
	if in.Slug == "" {
		in.Slug = catalogimport.Slugify(in.Name)
	}
	if in.Price.IsNegative() {
		return database.ErrInvalidPrice
	}
	if in.SalePrice.Valid && in.SalePrice.Decimal.IsNegative() {
		return database.ErrInvalidPrice
	}
	if in.Stock < 0 {
		return database.ErrInvalidQuantity
	}
	return nil
}

func (s *Service) CreateProduct(ctx context.Context, id auth.Identity, in store.ProductInput) (*models.Product, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	if err := validateProductInput(&in); err != nil {
		return nil, err
	}

	p, err := store.CreateProduct(ctx, s.db, in)
	if err != nil {
		if database.IsUniqueViolation(err, "") {
			return nil, fmt.Errorf("product slug %q: %w", in.Slug, database.ErrAlreadyExists)
		}
		return nil, err
	}

	s.logger.Info("product created", zap.Int64("product_id", p.ID), zap.String("slug", p.Slug))
	return p, nil
}

// UpdateProduct writes the product and reconciles its sale price with the
// product's flash-sale items in the same transaction. Stock is not editable
// here; it moves through orders and imports.
func (s *Service) UpdateProduct(ctx context.Context, id auth.Identity, productID int64, version int, in store.ProductInput) (*models.Product, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	if err := validateProductInput(&in); err != nil {
		return nil, err
	}

	var product *models.Product
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if _, err := store.UpdateProduct(ctx, tx, productID, version, in); err != nil {
			if database.IsUniqueViolation(err, "") {
				return fmt.Errorf("product slug %q: %w", in.Slug, database.ErrAlreadyExists)
			}
			return err
		}
		if err := store.SyncSalePrice(ctx, tx, productID, in.SalePrice); err != nil {
			return err
		}

		var err error
		product, err = store.GetProduct(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return product, nil
}

func (s *Service) AddProductImage(ctx context.Context, id auth.Identity, img models.ProductImage) (*models.ProductImage, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	return store.AddProductImage(ctx, s.db, img)
}
