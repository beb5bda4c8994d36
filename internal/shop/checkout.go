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

// CheckoutCart converts the caller's cart into a pending order and deletes
// the cart. Stock is reserved in the same transaction.
func (s *Service) CheckoutCart(ctx context.Context, id auth.Identity, shipping models.ShippingDetails) (*models.Order, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	if err := shipping.Validate(); err != nil {
		return nil, err
	}

	var order *models.Order
	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		cart, err := store.FindCart(ctx, tx, id.CartOwner())
		if err != nil {
			if errors.Is(err, database.ErrCartNotFound) {
				return database.ErrEmptyCart
			}
			return err
		}
		if cart.IsEmpty() {
			return database.ErrEmptyCart
		}

		items := make([]store.OrderItemRequest, 0, len(cart.Items))
		for _, line := range cart.Items {
			items = append(items, store.OrderItemRequest{ProductID: line.ProductID, Quantity: line.Quantity})
		}

		order, err = store.PlaceOrder(ctx, tx, store.PlaceOrderRequest{
			UserID:   id.UserID,
			Shipping: shipping,
			Items:    items,
			Now:      s.now(),
		})
		if err != nil {
			return err
		}

		return store.DeleteCart(ctx, tx, cart.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("checkout: %w", err)
	}

	s.logger.Info("order placed from cart",
		zap.Int64("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", id.UserID),
		zap.String("total", order.TotalAmount.String()))

	return order, nil
}

// BuyNow places a single-item order without going through the cart. The
// shipping snapshot stays empty until UpdateOrderShipping fills it in.
func (s *Service) BuyNow(ctx context.Context, id auth.Identity, productID int64, quantity int) (*models.Order, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	if quantity < 1 {
		return nil, database.ErrInvalidQuantity
	}

	var order *models.Order
	err := database.WithRetry(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		var err error
		order, err = store.PlaceOrder(ctx, tx, store.PlaceOrderRequest{
			UserID: id.UserID,
			Items:  []store.OrderItemRequest{{ProductID: productID, Quantity: quantity}},
			Now:    s.now(),
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("buy now: %w", err)
	}

	s.logger.Info("order placed by buy now",
		zap.Int64("order_id", order.ID),
		zap.Int64("product_id", productID),
		zap.Int("quantity", quantity))

	return order, nil
}

// UpdateOrderShipping lets the owner complete or correct the shipping
// details of an order that is still pending.
func (s *Service) UpdateOrderShipping(ctx context.Context, id auth.Identity, orderID int64, shipping models.ShippingDetails) (*models.Order, error) {
	if err := requireUser(id); err != nil {
		return nil, err
	}
	if err := shipping.Validate(); err != nil {
		return nil, err
	}

	if _, err := store.UpdateOrderShipping(ctx, s.db, orderID, id.UserID, shipping); err != nil {
		return nil, fmt.Errorf("update shipping: %w", err)
	}
	return store.GetOrder(ctx, s.db, orderID)
}
