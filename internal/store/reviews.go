package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const reviewColumns = `r.id, r.product_id, r.user_id, u.name, r.rating, r.comment, r.created_at`

func collectReviews(rows *sql.Rows) ([]models.Review, error) {
	defer rows.Close()

	reviews := []models.Review{}
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.ProductID, &r.UserID, &r.UserName, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return reviews, nil
}

func CreateReview(ctx context.Context, db database.DBTX, productID, userID int64, rating int, comment string) (*models.Review, error) {
	if err := models.ValidateRating(rating); err != nil {
		return nil, err
	}

	r := &models.Review{}
	err := db.QueryRowContext(ctx,
		`WITH inserted AS (
			INSERT INTO reviews (product_id, user_id, rating, comment, created_at)
			VALUES ($1, $2, $3, $4, NOW())
			RETURNING id, product_id, user_id, rating, comment, created_at
		)
		SELECT r.id, r.product_id, r.user_id, u.name, r.rating, r.comment, r.created_at
		FROM inserted r JOIN users u ON u.id = r.user_id`,
		productID, userID, rating, comment).Scan(
		&r.ID, &r.ProductID, &r.UserID, &r.UserName, &r.Rating, &r.Comment, &r.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, "reviews_product_user_key") {
			return nil, database.ErrDuplicateReview
		}
		return nil, fmt.Errorf("create review: %w", err)
	}
	return r, nil
}

func ListProductReviews(ctx context.Context, db database.DBTX, productID int64) ([]models.Review, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+reviewColumns+`
		 FROM reviews r JOIN users u ON u.id = r.user_id
		 WHERE r.product_id = $1
		 ORDER BY r.created_at DESC, r.id DESC`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("list product reviews: %w", err)
	}
	return collectReviews(rows)
}

func ListReviews(ctx context.Context, db database.DBTX, page PageRequest) (*OffsetPage, error) {
	page = page.normalize(ReviewPageSize)

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count reviews: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+reviewColumns+`
		 FROM reviews r JOIN users u ON u.id = r.user_id
		 ORDER BY r.created_at DESC, r.id DESC
		 LIMIT $1 OFFSET $2`,
		page.PageSize, page.offset())
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	reviews, err := collectReviews(rows)
	if err != nil {
		return nil, err
	}

	return newOffsetPage(reviews, total, page), nil
}

// AverageRating is zero for products without reviews.
func AverageRating(ctx context.Context, db database.DBTX, productID int64) (decimal.Decimal, error) {
	var avg decimal.NullDecimal
	err := db.QueryRowContext(ctx,
		`SELECT AVG(rating) FROM reviews WHERE product_id = $1`,
		productID).Scan(&avg)
	if err != nil {
		return decimal.Zero, fmt.Errorf("average rating: %w", err)
	}
	if !avg.Valid {
		return decimal.Zero, nil
	}
	return avg.Decimal.Round(1), nil
}
