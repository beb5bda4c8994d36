package shop

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/safar/storefront/internal/auth"
	"github.com/safar/storefront/internal/catalogimport"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"go.uber.org/zap"
)

const (
	fallbackCategorySlug = "uncategorized"
	fallbackCategoryName = "Uncategorized"
)

type ImportResult struct {
	Created int `json:"created_count"`
	Updated int `json:"updated_count"`
	Skipped int `json:"skipped_count"`
}

// ImportProducts loads a supplier sheet. Each row is applied in its own
// transaction; a row that fails is counted as skipped and the rest go on.
func (s *Service) ImportProducts(ctx context.Context, id auth.Identity, r io.ReaderAt, size int64) (*ImportResult, error) {
	if err := requireStaff(id); err != nil {
		return nil, err
	}

	sheet, err := catalogimport.Read(r, size)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{Skipped: sheet.Skipped}
	for _, row := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var updated bool
		err := database.WithTransaction(ctx, s.db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
			var err error
			updated, err = importRow(ctx, tx, row)
			return err
		})
		switch {
		case err != nil:
			s.logger.Warn("import row skipped",
				zap.Int("line", row.Line),
				zap.String("name", row.Name),
				zap.Error(err))
			res.Skipped++
		case updated:
			res.Updated++
		default:
			res.Created++
		}
	}

	s.logger.Info("product import finished",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped))

	return res, nil
}

// importRow restocks the product linked to an earlier import of the same
// name, relinks an earlier import whose product was deleted, or creates a
// new import record and store product. It reports whether an existing
// import was updated.
func importRow(ctx context.Context, tx *sql.Tx, row catalogimport.Row) (bool, error) {
	base := catalogimport.Slugify(row.Name)
	if base == "" {
		return false, fmt.Errorf("line %d: name has no usable characters", row.Line)
	}

	imp := row.Imported()

	var category *models.Category
	if row.CategorySlug != "" {
		c, err := store.GetCategoryBySlug(ctx, tx, row.CategorySlug)
		if err != nil && !errors.Is(err, database.ErrCategoryNotFound) {
			return false, err
		}
		category = c
	}

	existing, err := store.GetImportBySlug(ctx, tx, base)
	if err != nil && !errors.Is(err, database.ErrProductNotFound) {
		return false, err
	}

	if existing != nil {
		if category != nil {
			imp.CategoryID = &category.ID
		}
		updated, err := store.RecordReimport(ctx, tx, existing.ID, imp)
		if err != nil {
			return false, err
		}

		if existing.ProductID != nil {
			err := store.RestockFromImport(ctx, tx, *existing.ProductID, imp.Name, imp.Description,
				imp.StorePrice(), imp.QuantityImported, imp.CategoryID)
			return true, err
		}

		categoryID := updated.CategoryID
		if categoryID == nil {
			fallback, err := store.EnsureCategory(ctx, tx, fallbackCategorySlug, fallbackCategoryName)
			if err != nil {
				return false, err
			}
			categoryID = &fallback.ID
		}

		slug := existing.Slug
		taken, err := store.ProductSlugTaken(ctx, tx, slug)
		if err != nil {
			return false, err
		}
		if taken {
			if slug, err = store.UniqueSlug(ctx, tx, base); err != nil {
				return false, err
			}
		}

		product, err := store.CreateProduct(ctx, tx, store.ProductInput{
			CategoryID:  *categoryID,
			Name:        imp.Name,
			Slug:        slug,
			Description: imp.Description,
			Price:       imp.StorePrice(),
			Stock:       imp.QuantityImported,
			Available:   true,
		})
		if err != nil {
			return false, err
		}
		return true, store.LinkImportedProduct(ctx, tx, existing.ID, product.ID)
	}

	if category == nil {
		category, err = store.EnsureCategory(ctx, tx, fallbackCategorySlug, fallbackCategoryName)
		if err != nil {
			return false, err
		}
	}
	imp.CategoryID = &category.ID

	if imp.Slug, err = store.UniqueSlug(ctx, tx, base); err != nil {
		return false, err
	}

	created, err := store.CreateImportedProduct(ctx, tx, imp)
	if err != nil {
		return false, err
	}

	product, err := store.CreateProduct(ctx, tx, store.ProductInput{
		CategoryID:  category.ID,
		Name:        imp.Name,
		Slug:        imp.Slug,
		Description: imp.Description,
		Price:       imp.StorePrice(),
		Stock:       imp.QuantityImported,
		Available:   true,
	})
	if err != nil {
		return false, err
	}

	return false, store.LinkImportedProduct(ctx, tx, created.ID, product.ID)
}

// ExportProducts writes every product, available or not, as a spreadsheet.
func (s *Service) ExportProducts(ctx context.Context, id auth.Identity, w io.Writer) error {
	if err := requireStaff(id); err != nil {
		return err
	}

	products, err := store.ListAllProducts(ctx, s.db)
	if err != nil {
		return err
	}
	return catalogimport.Write(w, products)
}
