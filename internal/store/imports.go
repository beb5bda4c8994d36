package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const importColumns = `id, name, slug, description, cost_price, selling_price, supplier,
	quantity_imported, category_id, product_id, created_at, updated_at`

func scanImport(row interface{ Scan(...any) error }) (*models.ImportedProduct, error) {
	p := &models.ImportedProduct{}
	var categoryID, productID sql.NullInt64
	err := row.Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.CostPrice, &p.SellingPrice, &p.Supplier,
		&p.QuantityImported, &categoryID, &productID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		p.CategoryID = &categoryID.Int64
	}
	if productID.Valid {
		p.ProductID = &productID.Int64
	}
	return p, nil
}

// SlugInUse checks both imports and store products, since an imported row
// lends its slug to the product it creates.
func SlugInUse(ctx context.Context, db database.DBTX, slug string) (bool, error) {
	var used bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM imported_products WHERE slug = $1)
		     OR EXISTS(SELECT 1 FROM products WHERE slug = $1)`,
		slug).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return used, nil
}

// ProductSlugTaken checks store products only.
func ProductSlugTaken(ctx context.Context, db database.DBTX, slug string) (bool, error) {
	var taken bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM products WHERE slug = $1)`, slug).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check product slug: %w", err)
	}
	return taken, nil
}

// UniqueSlug returns base, or base-1, base-2, ... for the first free value.
func UniqueSlug(ctx context.Context, db database.DBTX, base string) (string, error) {
	slug := base
	for n := 1; ; n++ {
		used, err := SlugInUse(ctx, db, slug)
		if err != nil {
			return "", err
		}
		if !used {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, n)
	}
}

func GetImportBySlug(ctx context.Context, db database.DBTX, slug string) (*models.ImportedProduct, error) {
	p, err := scanImport(db.QueryRowContext(ctx,
		`SELECT `+importColumns+` FROM imported_products WHERE slug = $1`, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get imported product: %w", err)
	}
	return p, nil
}

func CreateImportedProduct(ctx context.Context, db database.DBTX, in models.ImportedProduct) (*models.ImportedProduct, error) {
	p, err := scanImport(db.QueryRowContext(ctx,
		`INSERT INTO imported_products (name, slug, description, cost_price, selling_price, supplier,
			quantity_imported, category_id, product_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		 RETURNING `+importColumns,
		in.Name, in.Slug, in.Description, in.CostPrice, in.SellingPrice, in.Supplier,
		in.QuantityImported, in.CategoryID, in.ProductID))
	if err != nil {
		return nil, fmt.Errorf("create imported product: %w", err)
	}
	return p, nil
}

// RecordReimport refreshes the import row and accumulates quantity.
func RecordReimport(ctx context.Context, db database.DBTX, id int64, in models.ImportedProduct) (*models.ImportedProduct, error) {
	p, err := scanImport(db.QueryRowContext(ctx,
		`UPDATE imported_products
		 SET name = $2, description = $3, cost_price = $4, selling_price = $5, supplier = $6,
		     quantity_imported = quantity_imported + $7,
		     category_id = COALESCE($8, category_id),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+importColumns,
		id, in.Name, in.Description, in.CostPrice, in.SellingPrice, in.Supplier,
		in.QuantityImported, in.CategoryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("update imported product: %w", err)
	}
	return p, nil
}

func LinkImportedProduct(ctx context.Context, db database.DBTX, importID, productID int64) error {
	_, err := db.ExecContext(ctx,
		`UPDATE imported_products SET product_id = $2, updated_at = NOW() WHERE id = $1`,
		importID, productID)
	if err != nil {
		return fmt.Errorf("link imported product: %w", err)
	}
	return nil
}

// RestockFromImport refreshes the store product from a re-import and adds
// quantity to its stock.
func RestockFromImport(ctx context.Context, db database.DBTX, productID int64, name, description string,
	price decimal.Decimal, quantity int, categoryID *int64) error {
	result, err := db.ExecContext(ctx,
		`UPDATE products
		 SET name = $2, description = $3, price = $4, stock = stock + $5,
		     category_id = COALESCE($6, category_id),
		     updated_at = NOW(), version = version + 1
		 WHERE id = $1`,
		productID, name, description, price, quantity, categoryID)
	if err != nil {
		return fmt.Errorf("restock product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}
	return nil
}
