package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

// CartOwner identifies a cart by user id or, for anonymous visitors, by
// session key. Exactly one of the two is set.
type CartOwner struct {
	UserID     int64
	SessionKey string
}

func (o CartOwner) valid() bool {
	return (o.UserID != 0) != (o.SessionKey != "")
}

func (o CartOwner) lookup() (string, any) {
	if o.SessionKey != "" {
		return "session_key", o.SessionKey
	}
	return "user_id", o.UserID
}

// GetOrCreateCart converges concurrent first requests on a single row: the
// insert is a no-op when the owner already has a cart.
func GetOrCreateCart(ctx context.Context, db database.DBTX, owner CartOwner) (*models.Cart, error) {
	if !owner.valid() {
		return nil, database.ErrAuthenticationRequired
	}

	column, key := owner.lookup()

	_, err := db.ExecContext(ctx,
		`INSERT INTO carts (`+column+`, created_at, updated_at)
		 VALUES ($1, NOW(), NOW())
		 ON CONFLICT (`+column+`) DO NOTHING`,
		key)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	return FindCart(ctx, db, owner)
}

// FindCart returns the owner's cart without creating one.
func FindCart(ctx context.Context, db database.DBTX, owner CartOwner) (*models.Cart, error) {
	if !owner.valid() {
		return nil, database.ErrCartNotFound
	}

	column, key := owner.lookup()

	cart := &models.Cart{}
	var userID sql.NullInt64
	var sessionKey sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, user_id, session_key, created_at, updated_at
		 FROM carts WHERE `+column+` = $1`,
		key).Scan(&cart.ID, &userID, &sessionKey, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCartNotFound
		}
		return nil, fmt.Errorf("find cart: %w", err)
	}
	if userID.Valid {
		cart.UserID = &userID.Int64
	}
	if sessionKey.Valid {
		cart.SessionKey = &sessionKey.String
	}

	items, err := ListCartItems(ctx, db, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

func ListCartItems(ctx context.Context, db database.DBTX, cartID int64) ([]models.CartItem, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at, ` + productColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.id`

	rows, err := db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		p := &item.Product
		err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
			&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.SalePrice,
			&p.Stock, &p.Available, &p.Featured, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt, &p.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

// AddCartItem inserts a line or accumulates onto the existing one. The
// resulting quantity is checked against the product's stock in the same
// statement, so nothing is written when it would exceed stock.
func AddCartItem(ctx context.Context, db database.DBTX, cartID, productID int64, quantity int) (*models.CartItem, error) {
	if quantity < 1 {
		return nil, database.ErrInvalidQuantity
	}

	item := &models.CartItem{}
	err := db.QueryRowContext(ctx,
		`INSERT INTO cart_items (cart_id, product_id, quantity, created_at, updated_at)
		 SELECT $1, p.id, $3, NOW(), NOW()
		 FROM products p
		 WHERE p.id = $2 AND p.stock >= $3
		 ON CONFLICT ON CONSTRAINT cart_items_cart_product_key DO UPDATE
		 SET quantity = cart_items.quantity + EXCLUDED.quantity,
		     updated_at = NOW()
		 WHERE cart_items.quantity + EXCLUDED.quantity <=
		       (SELECT stock FROM products WHERE id = EXCLUDED.product_id)
		 RETURNING id, cart_id, product_id, quantity, created_at, updated_at`,
		cartID, productID, quantity).Scan(
		&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrInsufficientStock
		}
		return nil, fmt.Errorf("add cart item: %w", err)
	}

	return item, nil
}

// UpdateCartItem sets the quantity of a line in cartID. Lines of other carts
// are reported as not found.
func UpdateCartItem(ctx context.Context, db database.DBTX, cartID, itemID int64, quantity int) error {
	if quantity < 1 {
		return database.ErrInvalidQuantity
	}

	result, err := db.ExecContext(ctx,
		`UPDATE cart_items ci
		 SET quantity = $3, updated_at = NOW()
		 FROM products p
		 WHERE ci.id = $1
		   AND ci.cart_id = $2
		   AND p.id = ci.product_id
		   AND p.stock >= $3`,
		itemID, cartID, quantity)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	var exists bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM cart_items WHERE id = $1 AND cart_id = $2)`,
		itemID, cartID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check cart item exists: %w", err)
	}
	if !exists {
		return database.ErrCartItemNotFound
	}
	return database.ErrInsufficientStock
}

func RemoveCartItem(ctx context.Context, db database.DBTX, cartID, itemID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`,
		itemID, cartID)
	if err != nil {
		return fmt.Errorf("remove cart item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrCartItemNotFound
	}
	return nil
}

// DeleteCart removes the cart and, by cascade, its items.
func DeleteCart(ctx context.Context, db database.DBTX, cartID int64) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, cartID); err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	return nil
}
