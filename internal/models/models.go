package models

import (
	"time"

	"github.com/safar/storefront/internal/database"
	"github.com/shopspring/decimal"
)

// PlaceholderImage is served when a product or category has no image.
const PlaceholderImage = "/static/images/placeholder.png"

type Role string

const (
	RoleCustomer      Role = "customer"
	RoleStaff         Role = "staff"
	RoleDeliveryAgent Role = "delivery_agent"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleStaff, RoleDeliveryAgent:
		return r, nil
	}
	return "", database.ErrInvalidRole
}

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int       `json:"version"`
}

type Category struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (c Category) ImageSource() string {
	if c.ImageURL != "" {
		return c.ImageURL
	}
	return PlaceholderImage
}

type Product struct {
	ID          int64               `json:"id"`
	CategoryID  int64               `json:"category_id"`
	Name        string              `json:"name"`
	Slug        string              `json:"slug"`
	Description string              `json:"description,omitempty"`
	Price       decimal.Decimal     `json:"price"`
	SalePrice   decimal.NullDecimal `json:"sale_price"`
	Stock       int                 `json:"stock"`
	Available   bool                `json:"available"`
	Featured    bool                `json:"featured"`
	ImageURL    string              `json:"image_url,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
	Version     int                 `json:"version"`
	Images      []ProductImage      `json:"images,omitempty"`

	// InFlashSale is set by the catalog reads when a running campaign still
	// has quantity for the product.
	InFlashSale bool `json:"in_flash_sale"`
}

// IsOnSale reports whether a sale price is set and strictly below the list price.
func (p Product) IsOnSale() bool {
	return p.SalePrice.Valid && p.SalePrice.Decimal.LessThan(p.Price)
}

func (p Product) EffectivePrice() decimal.Decimal {
	if p.IsOnSale() {
		return p.SalePrice.Decimal
	}
	return p.Price
}

// DiscountPercentage is rounded to two places; zero when not on sale.
func (p Product) DiscountPercentage() decimal.Decimal {
	if !p.IsOnSale() || p.Price.IsZero() {
		return decimal.Zero
	}
	return p.Price.Sub(p.SalePrice.Decimal).
		Div(p.Price).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}

// ImageSource picks the product's own URL, then the primary image, then the
// first image, then the placeholder.
func (p Product) ImageSource() string {
	if p.ImageURL != "" {
		return p.ImageURL
	}
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.ImageURL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].ImageURL
	}
	return PlaceholderImage
}

type ProductImage struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	ImageURL  string    `json:"image_url"`
	AltText   string    `json:"alt_text,omitempty"`
	IsPrimary bool      `json:"is_primary"`
	CreatedAt time.Time `json:"created_at"`
}

type DeliveryAgent struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	IsAvailable bool      `json:"is_available"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type WishlistItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Product   *Product  `json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Review struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	UserID    int64     `json:"user_id"`
	UserName  string    `json:"user_name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return database.ErrInvalidRating
	}
	return nil
}

type ImportedProduct struct {
	ID               int64               `json:"id"`
	Name             string              `json:"name"`
	Slug             string              `json:"slug"`
	Description      string              `json:"description,omitempty"`
	CostPrice        decimal.Decimal     `json:"cost_price"`
	SellingPrice     decimal.NullDecimal `json:"selling_price"`
	Supplier         string              `json:"supplier,omitempty"`
	QuantityImported int                 `json:"quantity_imported"`
	CategoryID       *int64              `json:"category_id,omitempty"`
	ProductID        *int64              `json:"product_id,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// StorePrice is the price a linked store product is listed at.
func (p ImportedProduct) StorePrice() decimal.Decimal {
	if p.SellingPrice.Valid {
		return p.SellingPrice.Decimal
	}
	return p.CostPrice
}
