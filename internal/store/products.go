package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const productColumns = `p.id, p.category_id, p.name, p.slug, p.description, p.price, p.sale_price,
	p.stock, p.available, p.featured, p.image_url, p.created_at, p.updated_at, p.version`

// effectivePriceExpr mirrors models.Product.EffectivePrice in SQL.
const effectivePriceExpr = `CASE WHEN p.sale_price IS NOT NULL AND p.sale_price < p.price THEN p.sale_price ELSE p.price END`

var productSorts = map[string]string{
	"price":       effectivePriceExpr + ` ASC, p.id ASC`,
	"-price":      effectivePriceExpr + ` DESC, p.id DESC`,
	"name":        `p.name ASC, p.id ASC`,
	"-name":       `p.name DESC, p.id DESC`,
	"created_at":  `p.created_at ASC, p.id ASC`,
	"-created_at": `p.created_at DESC, p.id DESC`,
}

type ProductInput struct {
	CategoryID  int64
	Name        string
	Slug        string
	Description string
	Price       decimal.Decimal
	SalePrice   decimal.NullDecimal
	Stock       int
	Available   bool
	Featured    bool
	ImageURL    string
}

type ProductFilter struct {
	Query        string
	CategorySlug string
	MinPrice     decimal.NullDecimal
	MaxPrice     decimal.NullDecimal
	Sort         string
	Page         PageRequest
}

func scanProduct(row interface{ Scan(...any) error }) (*models.Product, error) {
	p := &models.Product{}
	err := row.Scan(
		&p.ID,
		&p.CategoryID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Price,
		&p.SalePrice,
		&p.Stock,
		&p.Available,
		&p.Featured,
		&p.ImageURL,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func collectProducts(rows *sql.Rows) ([]models.Product, error) {
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return products, nil
}

func CreateProduct(ctx context.Context, db database.DBTX, in ProductInput) (*models.Product, error) {
	query := `
		INSERT INTO products AS p (category_id, name, slug, description, price, sale_price, stock,
			available, featured, image_url, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	p, err := scanProduct(db.QueryRowContext(ctx, query,
		in.CategoryID, in.Name, in.Slug, in.Description, in.Price, in.SalePrice, in.Stock,
		in.Available, in.Featured, in.ImageURL))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return p, nil
}

// UpdateProduct writes everything except stock and sale_price, which have
// their own conditional writers (DecrementStock, SyncSalePrice).
func UpdateProduct(ctx context.Context, db database.DBTX, id int64, version int, in ProductInput) (*models.Product, error) {
	query := `
		UPDATE products AS p
		SET category_id = $3, name = $4, slug = $5, description = $6, price = $7,
		    available = $8, featured = $9, image_url = $10,
		    updated_at = NOW(), version = version + 1
		WHERE p.id = $1 AND p.version = $2
		RETURNING ` + productColumns

	p, err := scanProduct(db.QueryRowContext(ctx, query,
		id, version, in.CategoryID, in.Name, in.Slug, in.Description, in.Price,
		in.Available, in.Featured, in.ImageURL))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("update product: %w", err)
	}

	if _, getErr := GetProduct(ctx, db, id); getErr != nil {
		return nil, getErr
	}
	return nil, database.ErrOptimisticLockFailed
}

func GetProduct(ctx context.Context, db database.DBTX, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1`

	p, err := scanProduct(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return p, nil
}

// GetProductBySlug only returns available products.
func GetProductBySlug(ctx context.Context, db database.DBTX, slug string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.slug = $1 AND p.available`

	p, err := scanProduct(db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product by slug: %w", err)
	}

	return p, nil
}

// LockProduct takes a row lock for the rest of tx.
func LockProduct(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE p.id = $1 FOR UPDATE`

	p, err := scanProduct(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product: %w", err)
	}

	return p, nil
}

func DecrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock = stock - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, productID)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

func ListProducts(ctx context.Context, db database.DBTX, f ProductFilter) (*OffsetPage, error) {
	page := f.Page.normalize(ProductPageSize)

	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	where = append(where, "p.available")
	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := arg("%" + q + "%")
		where = append(where, "(p.name ILIKE "+pattern+" OR p.description ILIKE "+pattern+")")
	}
	if f.CategorySlug != "" {
		where = append(where, "c.slug = "+arg(f.CategorySlug))
	}
	if f.MinPrice.Valid {
		where = append(where, effectivePriceExpr+" >= "+arg(f.MinPrice.Decimal))
	}
	if f.MaxPrice.Valid {
		where = append(where, effectivePriceExpr+" <= "+arg(f.MaxPrice.Decimal))
	}

	from := ` FROM products p JOIN categories c ON c.id = p.category_id WHERE ` + strings.Join(where, " AND ")

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	order, ok := productSorts[f.Sort]
	if !ok {
		order = productSorts["-created_at"]
	}

	query := `SELECT ` + productColumns + from +
		` ORDER BY ` + order +
		` LIMIT ` + arg(page.PageSize) + ` OFFSET ` + arg(page.offset())

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}

	if err := attachImages(ctx, db, products); err != nil {
		return nil, err
	}

	return newOffsetPage(products, total, page), nil
}

func SearchProducts(ctx context.Context, db database.DBTX, q string, limit int) ([]models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.available AND (p.name ILIKE $1 OR p.description ILIKE $1)
		ORDER BY p.name
		LIMIT $2`

	rows, err := db.QueryContext(ctx, query, "%"+strings.TrimSpace(q)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	return products, attachImages(ctx, db, products)
}

func ListFeaturedProducts(ctx context.Context, db database.DBTX, limit int) ([]models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.available AND p.featured
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list featured products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	return products, attachImages(ctx, db, products)
}

func ListLatestProducts(ctx context.Context, db database.DBTX, limit int) ([]models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.available
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $1`

	rows, err := db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list latest products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	return products, attachImages(ctx, db, products)
}

// ListAllProducts returns the whole catalog, including unavailable products,
// for staff exports.
func ListAllProducts(ctx context.Context, db database.DBTX) ([]models.Product, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+productColumns+` FROM products p ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("list all products: %w", err)
	}
	return collectProducts(rows)
}

// ListRelatedProducts returns other available products of the same category.
func ListRelatedProducts(ctx context.Context, db database.DBTX, product *models.Product, limit int) ([]models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.available AND p.category_id = $1 AND p.id <> $2
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $3`

	rows, err := db.QueryContext(ctx, query, product.CategoryID, product.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list related products: %w", err)
	}
	products, err := collectProducts(rows)
	if err != nil {
		return nil, err
	}
	return products, attachImages(ctx, db, products)
}

func AddProductImage(ctx context.Context, db database.DBTX, img models.ProductImage) (*models.ProductImage, error) {
	out := &models.ProductImage{}
	err := db.QueryRowContext(ctx,
		`INSERT INTO product_images (product_id, image_url, alt_text, is_primary, created_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 RETURNING id, product_id, image_url, alt_text, is_primary, created_at`,
		img.ProductID, img.ImageURL, img.AltText, img.IsPrimary).Scan(
		&out.ID, &out.ProductID, &out.ImageURL, &out.AltText, &out.IsPrimary, &out.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("add product image: %w", err)
	}
	return out, nil
}

// attachImages loads images for all products in one query.
func attachImages(ctx context.Context, db database.DBTX, products []models.Product) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]int64, len(products))
	index := make(map[int64]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = i
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, product_id, image_url, alt_text, is_primary, created_at
		 FROM product_images
		 WHERE product_id = ANY($1)
		 ORDER BY product_id, id`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("list product images: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var img models.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.ImageURL, &img.AltText, &img.IsPrimary, &img.CreatedAt); err != nil {
			return fmt.Errorf("scan product image: %w", err)
		}
		i := index[img.ProductID]
		products[i].Images = append(products[i].Images, img)
	}

	return rows.Err()
}

// LoadProductImages fills p.Images.
func LoadProductImages(ctx context.Context, db database.DBTX, p *models.Product) error {
	one := []models.Product{*p}
	if err := attachImages(ctx, db, one); err != nil {
		return err
	}
	p.Images = one[0].Images
	return nil
}
