package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const categoryColumns = `id, name, slug, description, image_url, created_at, updated_at`

type CategoryInput struct {
	Name        string
	Slug        string
	Description string
	ImageURL    string
}

func scanCategory(row interface{ Scan(...any) error }) (*models.Category, error) {
	c := &models.Category{}
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func CreateCategory(ctx context.Context, db database.DBTX, in CategoryInput) (*models.Category, error) {
	query := `
		INSERT INTO categories (name, slug, description, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + categoryColumns

	c, err := scanCategory(db.QueryRowContext(ctx, query, in.Name, in.Slug, in.Description, in.ImageURL))
	if err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func UpdateCategory(ctx context.Context, db database.DBTX, id int64, in CategoryInput) (*models.Category, error) {
	query := `
		UPDATE categories
		SET name = $2, slug = $3, description = $4, image_url = $5, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + categoryColumns

	c, err := scanCategory(db.QueryRowContext(ctx, query, id, in.Name, in.Slug, in.Description, in.ImageURL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("update category: %w", err)
	}
	return c, nil
}

// EnsureCategory returns the category with slug, creating it when absent.
func EnsureCategory(ctx context.Context, db database.DBTX, slug, name string) (*models.Category, error) {
	_, err := db.ExecContext(ctx,
		`INSERT INTO categories (name, slug, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT (slug) DO NOTHING`,
		name, slug)
	if err != nil {
		return nil, fmt.Errorf("ensure category: %w", err)
	}
	return GetCategoryBySlug(ctx, db, slug)
}

func GetCategoryBySlug(ctx context.Context, db database.DBTX, slug string) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE slug = $1`

	c, err := scanCategory(db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories returns categories by name; limit <= 0 means all.
func ListCategories(ctx context.Context, db database.DBTX, limit int) ([]models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY name`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []models.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return categories, nil
}
