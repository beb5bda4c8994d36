package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

const campaignColumns = `c.id, c.name, c.start_date, c.end_date, c.is_active, c.created_at, c.updated_at`

func scanCampaign(row interface{ Scan(...any) error }) (*models.FlashSaleCampaign, error) {
	c := &models.FlashSaleCampaign{}
	err := row.Scan(&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func CreateFlashSaleCampaign(ctx context.Context, db database.DBTX, c models.FlashSaleCampaign) (*models.FlashSaleCampaign, error) {
	query := `
		INSERT INTO flash_sale_campaigns AS c (name, start_date, end_date, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + campaignColumns

	out, err := scanCampaign(db.QueryRowContext(ctx, query, c.Name, c.StartDate, c.EndDate, c.IsActive))
	if err != nil {
		return nil, fmt.Errorf("create flash sale campaign: %w", err)
	}
	return out, nil
}

func GetFlashSaleCampaign(ctx context.Context, db database.DBTX, id int64) (*models.FlashSaleCampaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM flash_sale_campaigns c WHERE c.id = $1`

	out, err := scanCampaign(db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCampaignNotFound
		}
		return nil, fmt.Errorf("get flash sale campaign: %w", err)
	}
	return out, nil
}

// UpsertFlashSaleItem creates or replaces the (campaign, product) entry.
func UpsertFlashSaleItem(ctx context.Context, db database.DBTX, item models.FlashSaleItem) (*models.FlashSaleItem, error) {
	out := &models.FlashSaleItem{}
	err := db.QueryRowContext(ctx,
		`INSERT INTO flash_sale_items (campaign_id, product_id, sale_price, quantity_available, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, NOW(), NOW())
		 ON CONFLICT ON CONSTRAINT flash_sale_items_campaign_product_key DO UPDATE
		 SET sale_price = EXCLUDED.sale_price,
		     quantity_available = EXCLUDED.quantity_available,
		     updated_at = NOW()
		 RETURNING id, campaign_id, product_id, sale_price, quantity_available, created_at, updated_at`,
		item.CampaignID, item.ProductID, item.SalePrice, item.QuantityAvailable).Scan(
		&out.ID, &out.CampaignID, &out.ProductID, &out.SalePrice, &out.QuantityAvailable, &out.CreatedAt, &out.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			if pqErr.Constraint == "flash_sale_items_campaign_id_fkey" {
				return nil, database.ErrCampaignNotFound
			}
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("save flash sale item: %w", err)
	}
	return out, nil
}

// SyncSalePrice is the single reconciliation point between a product's
// sale_price and its flash-sale items. It writes both sides with plain
// statements, so neither write triggers the other. A NULL price clears the
// product's sale price and leaves flash items as they are.
func SyncSalePrice(ctx context.Context, tx *sql.Tx, productID int64, salePrice decimal.NullDecimal) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products SET sale_price = $2, updated_at = NOW(), version = version + 1 WHERE id = $1`,
		productID, salePrice)
	if err != nil {
		return fmt.Errorf("sync product sale price: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrProductNotFound
	}

	if !salePrice.Valid {
		return nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE flash_sale_items SET sale_price = $2, updated_at = NOW()
		 WHERE product_id = $1 AND sale_price <> $2`,
		productID, salePrice.Decimal)
	if err != nil {
		return fmt.Errorf("sync flash sale prices: %w", err)
	}
	return nil
}

// ConsumeFlashSaleQuantity draws quantity from every currently active flash
// item of the product, never below zero.
func ConsumeFlashSaleQuantity(ctx context.Context, tx *sql.Tx, productID int64, quantity int, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE flash_sale_items fi
		 SET quantity_available = GREATEST(fi.quantity_available - $2, 0),
		     updated_at = NOW()
		 FROM flash_sale_campaigns c
		 WHERE fi.campaign_id = c.id
		   AND fi.product_id = $1
		   AND c.is_active
		   AND c.start_date <= $3
		   AND c.end_date >= $3`,
		productID, quantity, now)
	if err != nil {
		return fmt.Errorf("consume flash sale quantity: %w", err)
	}
	return nil
}

// MarkFlashSales sets InFlashSale on every product with an item of a
// campaign running at now and quantity left.
func MarkFlashSales(ctx context.Context, db database.DBTX, products []models.Product, now time.Time) error {
	if len(products) == 0 {
		return nil
	}

	ids := make([]int64, len(products))
	index := make(map[int64][]int, len(products))
	for i, p := range products {
		ids[i] = p.ID
		index[p.ID] = append(index[p.ID], i)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT DISTINCT fi.product_id
		 FROM flash_sale_items fi
		 JOIN flash_sale_campaigns c ON c.id = fi.campaign_id
		 WHERE fi.product_id = ANY($1)
		   AND fi.quantity_available > 0
		   AND c.is_active
		   AND c.start_date <= $2
		   AND c.end_date >= $2`,
		pq.Array(ids), now)
	if err != nil {
		return fmt.Errorf("find flash sale products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scan flash sale product: %w", err)
		}
		for _, i := range index[id] {
			products[i].InFlashSale = true
		}
	}
	return rows.Err()
}

// ListActiveFlashSaleItems returns items of running campaigns that still have
// quantity and whose product is available, ordered by product name.
func ListActiveFlashSaleItems(ctx context.Context, db database.DBTX, now time.Time, page PageRequest) (*OffsetPage, error) {
	page = page.normalize(FlashSalePageSize)

	from := `
		FROM flash_sale_items fi
		JOIN flash_sale_campaigns c ON c.id = fi.campaign_id
		JOIN products p ON p.id = fi.product_id
		WHERE c.is_active AND c.start_date <= $1 AND c.end_date >= $1
		  AND fi.quantity_available > 0
		  AND p.available`

	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*)`+from, now).Scan(&total); err != nil {
		return nil, fmt.Errorf("count flash sale items: %w", err)
	}

	query := `
		SELECT fi.id, fi.campaign_id, fi.product_id, fi.sale_price, fi.quantity_available,
		       fi.created_at, fi.updated_at, ` + campaignColumns + `, ` + productColumns +
		from + `
		ORDER BY p.name, fi.id
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, now, page.PageSize, page.offset())
	if err != nil {
		return nil, fmt.Errorf("list flash sale items: %w", err)
	}
	defer rows.Close()

	items := []models.FlashSaleItem{}
	for rows.Next() {
		var item models.FlashSaleItem
		p := &models.Product{}
		c := &item.Campaign
		err := rows.Scan(
			&item.ID, &item.CampaignID, &item.ProductID, &item.SalePrice, &item.QuantityAvailable,
			&item.CreatedAt, &item.UpdatedAt,
			&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
			&p.ID, &p.CategoryID, &p.Name, &p.Slug, &p.Description, &p.Price, &p.SalePrice,
			&p.Stock, &p.Available, &p.Featured, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt, &p.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("scan flash sale item: %w", err)
		}
		item.Product = p
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(items, total, page), nil
}

// ListProductFlashSaleItems returns every flash item of a product, any campaign state.
func ListProductFlashSaleItems(ctx context.Context, db database.DBTX, productID int64) ([]models.FlashSaleItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT fi.id, fi.campaign_id, fi.product_id, fi.sale_price, fi.quantity_available,
		        fi.created_at, fi.updated_at, `+campaignColumns+`
		 FROM flash_sale_items fi
		 JOIN flash_sale_campaigns c ON c.id = fi.campaign_id
		 WHERE fi.product_id = $1
		 ORDER BY fi.id`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("list product flash sale items: %w", err)
	}
	defer rows.Close()

	items := []models.FlashSaleItem{}
	for rows.Next() {
		var item models.FlashSaleItem
		c := &item.Campaign
		err := rows.Scan(
			&item.ID, &item.CampaignID, &item.ProductID, &item.SalePrice, &item.QuantityAvailable,
			&item.CreatedAt, &item.UpdatedAt,
			&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.IsActive, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan flash sale item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}
