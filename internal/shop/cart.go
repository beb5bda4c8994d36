package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"go.uber.org/zap"
)

// ResolveCart returns the caller's cart, creating it on first use.
func (s *Service) ResolveCart(ctx context.Context, id auth.Identity) (*models.Cart, error) {
	return store.GetOrCreateCart(ctx, s.db, id.CartOwner())
}

// AddToCart adds quantity of an available product to the caller's cart. The
// product's stock is not touched.
func (s *Service) AddToCart(ctx context.Context, id auth.Identity, productID int64, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, database.ErrInvalidQuantity
	}

	var cart *models.Cart
	err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		product, err := store.GetProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if !product.Available {
			return database.ErrProductNotFound
		}
		if quantity > product.Stock {
			return database.ErrInsufficientStock
		}

		c, err := store.GetOrCreateCart(ctx, tx, id.CartOwner())
		if err != nil {
			return err
		}
		if _, err := store.AddCartItem(ctx, tx, c.ID, productID, quantity); err != nil {
			return err
		}

		cart, err = store.FindCart(ctx, tx, id.CartOwner())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("add to cart: %w", err)
	}

	s.logger.Debug("cart line added",
		zap.Int64("cart_id", cart.ID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity))

	return cart, nil
}

// UpdateCartLine sets a line's quantity; zero or less removes the line.
func (s *Service) UpdateCartLine(ctx context.Context, id auth.Identity, itemID int64, quantity int) (*models.Cart, error) {
	cart, err := store.FindCart(ctx, s.db, id.CartOwner())
	if err != nil {
		if errors.Is(err, database.ErrCartNotFound) {
			return nil, database.ErrCartItemNotFound
		}
		return nil, err
	}

	if quantity <= 0 {
		err = store.RemoveCartItem(ctx, s.db, cart.ID, itemID)
	} else {
		err = store.UpdateCartItem(ctx, s.db, cart.ID, itemID, quantity)
	}
	if err != nil {
		return nil, fmt.Errorf("update cart line: %w", err)
	}

	return store.FindCart(ctx, s.db, id.CartOwner())
}

func (s *Service) RemoveCartLine(ctx context.Context, id auth.Identity, itemID int64) (*models.Cart, error) {
	return s.UpdateCartLine(ctx, id, itemID, 0)
}
