package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type FlashSaleCampaign struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c FlashSaleCampaign) IsCurrentlyActive(now time.Time) bool {
	return c.IsActive && !now.Before(c.StartDate) && !now.After(c.EndDate)
}

type FlashSaleItem struct {
	ID                int64             `json:"id"`
	CampaignID        int64             `json:"campaign_id"`
	ProductID         int64             `json:"product_id"`
	SalePrice         decimal.Decimal   `json:"sale_price"`
	QuantityAvailable int               `json:"quantity_available"`
	Product           *Product          `json:"product,omitempty"`
	Campaign          FlashSaleCampaign `json:"campaign"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (i FlashSaleItem) IsAvailable(now time.Time) bool {
	return i.Campaign.IsCurrentlyActive(now) && i.QuantityAvailable > 0
}

// DiscountPercentage compares the flash price against the product's list price.
func (i FlashSaleItem) DiscountPercentage() decimal.Decimal {
	if i.Product == nil || i.Product.Price.IsZero() || !i.SalePrice.LessThan(i.Product.Price) {
		return decimal.Zero
	}
	return i.Product.Price.Sub(i.SalePrice).
		Div(i.Product.Price).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}
