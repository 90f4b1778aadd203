package store

import (
	"context"
	"database/sql"

	"github.com/NZSopa/orderdhash-sub001/internal/apperr"
	"github.com/NZSopa/orderdhash-sub001/internal/models"
)

// The catalog (product_codes) is a reference table owned by the catalog
// sync; this service only ever reads it.

// GetCatalogEntry resolves a channel sales code to its canonical product.
func (s *Store) GetCatalogEntry(ctx context.Context, salesCode string) (*models.CatalogEntry, error) {
	var entry models.CatalogEntry
	err := s.db.GetContext(ctx, &entry, `
		SELECT sales_code, product_code, product_name, set_qty, sales_price,
			COALESCE(weight, 0) AS weight, COALESCE(sales_site, '') AS sales_site,
			COALESCE(shipping_from, '') AS shipping_from
		FROM product_codes
		WHERE sales_code = $1`, salesCode)
	if err == sql.ErrNoRows {
		return nil, apperr.NewNotFound("catalog entry", salesCode)
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListCatalogEntries returns the whole catalog, used to warm the cache
// at startup.
func (s *Store) ListCatalogEntries(ctx context.Context) ([]models.CatalogEntry, error) {
	var entries []models.CatalogEntry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT sales_code, product_code, product_name, set_qty, sales_price,
			COALESCE(weight, 0) AS weight, COALESCE(sales_site, '') AS sales_site,
			COALESCE(shipping_from, '') AS shipping_from
		FROM product_codes
		ORDER BY sales_code`)
	return entries, err
}
