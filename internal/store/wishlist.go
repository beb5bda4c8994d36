package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

// AddWishlistItem reports false when the product was already wishlisted.
func AddWishlistItem(ctx context.Context, db database.DBTX, userID, productID int64) (bool, error) {
	result, err := db.ExecContext(ctx,
		`INSERT INTO wishlist_items (user_id, product_id, created_at)
		 VALUES ($1, $2, NOW())
		 ON CONFLICT ON CONSTRAINT wishlist_items_user_product_key DO NOTHING`,
		userID, productID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return false, database.ErrProductNotFound
		}
		return false, fmt.Errorf("add wishlist item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

func RemoveWishlistItem(ctx context.Context, db database.DBTX, userID, productID int64) error {
	result, err := db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID)
	if err != nil {
		return fmt.Errorf("remove wishlist item: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrWishlistItemNotFound
	}
	return nil
}

func IsWishlisted(ctx context.Context, db database.DBTX, userID, productID int64) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM wishlist_items WHERE user_id = $1 AND product_id = $2)`,
		userID, productID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check wishlist: %w", err)
	}
	return exists, nil
}

func ListWishlist(ctx context.Context, db database.DBTX, userID int64) ([]models.WishlistItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT w.id, w.user_id, w.product_id, w.created_at, `+productColumns+`
		 FROM wishlist_items w
		 JOIN products p ON p.id = w.product_id
		 WHERE w.user_id = $1
		 ORDER BY w.created_at DESC, w.id DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	defer rows.Close()

	items := []models.WishlistItem{}
	for rows.Next() {
		var item models.WishlistItem
		p := &models.Product{}
		err := rows.Scan(
			&item.ID, &item.UserID, &item.ProductID, &item.CreatedAt,
			&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.SalePrice,
			&p.Stock, &p.Available, &p.Featured, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt, &p.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wishlist item: %w", err)
		}
		item.Product = p
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}
