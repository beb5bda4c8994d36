package shop

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) CreateFlashSaleCampaign(ctx context.Context, id auth.Identity, c models.FlashSaleCampaign) (*models.FlashSaleCampaign, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	if !c.EndDate.After(c.StartDate) {
		return nil, database.ErrInvalidSchedule
	}
	return store.CreateFlashSaleCampaign(ctx, s.db, c)
}

// SaveFlashSaleItem creates or replaces a campaign entry and pushes its
// price onto the product, which in turn aligns the product's other flash
// items.
func (s *Service) SaveFlashSaleItem(ctx context.Context, id auth.Identity, item models.FlashSaleItem) (*models.FlashSaleItem, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	if item.SalePrice.IsNegative() {
		return nil, database.ErrInvalidPrice
	}
	if item.QuantityAvailable < 0 {
		return nil, database.ErrInvalidQuantity
	}

	var saved *models.FlashSaleItem
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		campaign, err := store.GetFlashSaleCampaign(ctx, tx, item.CampaignID)
		if err != nil {
			return err
		}

		saved, err = store.UpsertFlashSaleItem(ctx, tx, item)
		if err != nil {
			return err
		}
		saved.Campaign = *campaign
		return store.SyncSalePrice(ctx, tx, saved.ProductID, decimal.NewNullDecimal(saved.SalePrice))
	})
	if err != nil {
		return nil, fmt.Errorf("save flash sale item: %w", err)
	}

	s.logger.Info("flash sale item saved",
		zap.Int64("campaign_id", saved.CampaignID),
		zap.Int64("product_id", saved.ProductID),
		zap.String("sale_price", saved.SalePrice.String()))

	return saved, nil
}

// UpdateProductSalePrice sets or clears a product's sale price. Setting it
// also rewrites the price of the product's flash-sale items.
func (s *Service) UpdateProductSalePrice(ctx context.Context, id auth.Identity, productID int64, price decimal.NullDecimal) (*models.Product, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}
	if price.Valid && price.Decimal.IsNegative() {
		return nil, database.ErrInvalidPrice
	}

	var product *models.Product
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		if err := store.SyncSalePrice(ctx, tx, productID, price); err != nil {
			return err
		}
		var err error
		product, err = store.GetProduct(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update sale price: %w", err)
	}
	return product, nil
}

func (s *Service) ActiveFlashSale(ctx context.Context, page store.PageRequest) (*store.OffsetPage, error) {
	return store.ListActiveFlashSaleItems(ctx, s.db, s.now(), page)
}
