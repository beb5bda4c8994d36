package models

import (
	"testing"
	"time"

	"github.com/safar/storefront/internal/database"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func price(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func salePrice(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestEffectivePrice(t *testing.T) {
	tests := []struct {
		name     string
		product  Product
		expected string
	}{
		{"no sale price", Product{Price: price("100")}, "100"},
		{"lower sale price", Product{Price: price("100"), SalePrice: salePrice("80")}, "80"},
		{"equal sale price", Product{Price: price("100"), SalePrice: salePrice("100")}, "100"},
		{"higher sale price", Product{Price: price("100"), SalePrice: salePrice("120")}, "100"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.product.EffectivePrice().Equal(price(tt.expected)),
				"got %s", tt.product.EffectivePrice())
		})
	}
}

func TestDiscountPercentage(t *testing.T) {
	p := Product{Price: price("30"), SalePrice: salePrice("20")}
	assert.Equal(t, "33.33", p.DiscountPercentage().StringFixed(2))

	assert.True(t, Product{Price: price("30")}.DiscountPercentage().IsZero())
}

func TestProductImageSource(t *testing.T) {
	images := []ProductImage{
		{ImageURL: "https://cdn/first.jpg"},
		{ImageURL: "https://cdn/primary.jpg", IsPrimary: true},
	}

	assert.Equal(t, "https://cdn/own.jpg", Product{ImageURL: "https://cdn/own.jpg", Images: images}.ImageSource())
	assert.Equal(t, "https://cdn/primary.jpg", Product{Images: images}.ImageSource())
	assert.Equal(t, "https://cdn/first.jpg", Product{Images: images[:1]}.ImageSource())
	assert.Equal(t, PlaceholderImage, Product{}.ImageSource())
}

func TestCartTotalPrice(t *testing.T) {
	cart := Cart{Items: []CartItem{
		{Quantity: 2, Product: Product{Price: price("100"), SalePrice: salePrice("90")}},
		{Quantity: 1, Product: Product{Price: price("50")}},
	}}

	assert.True(t, cart.TotalPrice().Equal(price("230")), "got %s", cart.TotalPrice())
	assert.Equal(t, 3, cart.TotalItems())
	assert.False(t, cart.IsEmpty())
	assert.True(t, Cart{}.TotalPrice().IsZero())
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("delivery_agent")
	assert.NoError(t, err)
	assert.Equal(t, RoleDeliveryAgent, role)

	_, err = ParseRole("admin")
	assert.ErrorIs(t, err, database.ErrInvalidRole)
}

func TestValidateRating(t *testing.T) {
	assert.NoError(t, ValidateRating(1))
	assert.NoError(t, ValidateRating(5))
	assert.ErrorIs(t, ValidateRating(0), database.ErrInvalidRating)
	assert.ErrorIs(t, ValidateRating(6), database.ErrInvalidRating)
}

func TestFlashSaleAvailability(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	campaign := FlashSaleCampaign{
		IsActive:  true,
		StartDate: now.Add(-time.Hour),
		EndDate:   now.Add(time.Hour),
	}

	item := FlashSaleItem{Campaign: campaign, QuantityAvailable: 3}
	assert.True(t, item.IsAvailable(now))

	item.QuantityAvailable = 0
	assert.False(t, item.IsAvailable(now))

	item.QuantityAvailable = 3
	assert.False(t, item.IsAvailable(now.Add(2*time.Hour)))

	campaign.IsActive = false
	assert.False(t, campaign.IsCurrentlyActive(now))

	boundary := FlashSaleCampaign{IsActive: true, StartDate: now, EndDate: now}
	assert.True(t, boundary.IsCurrentlyActive(now))
}

func TestImportedStorePrice(t *testing.T) {
	p := ImportedProduct{CostPrice: price("4")}
	assert.True(t, p.StorePrice().Equal(price("4")))

	p.SellingPrice = salePrice("7.5")
	assert.True(t, p.StorePrice().Equal(price("7.5")))
}
