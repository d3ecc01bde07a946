package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"stocksync/internal/models"
)

// UpsertCachedProduct writes one storefront product mirror row,
// keyed by (site, product_id). Last writer wins; the cache is a
// non-authoritative mirror.
func (db *DB) UpsertCachedProduct(ctx context.Context, p *models.CachedProduct) error {
	if p.LastSyncedAt.IsZero() {
		p.LastSyncedAt = time.Now().UTC()
	}
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO cached_products (site, product_id, parent_id, sku, name, publish_status, stock_status, quantity, modified_at, last_synced_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(site, product_id) DO UPDATE SET
            parent_id = excluded.parent_id,
            sku = excluded.sku,
            name = excluded.name,
            publish_status = excluded.publish_status,
            stock_status = excluded.stock_status,
            quantity = excluded.quantity,
            modified_at = excluded.modified_at,
            last_synced_at = excluded.last_synced_at`,
		p.Site, p.ProductID, p.ParentID, p.SKU, p.Name,
		p.PublishStatus, p.StockStatus, p.Quantity, p.ModifiedAt.UTC(), p.LastSyncedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert cached product: %w", err)
	}
	return nil
}

// GetCachedProductBySKU looks up the mirror by SKU. When several
// products share a SKU the most recently synced one wins.
func (db *DB) GetCachedProductBySKU(ctx context.Context, site, sku string) (*models.CachedProduct, error) {
	row := db.db.QueryRowContext(ctx,
		`SELECT site, product_id, parent_id, sku, name, publish_status, stock_status, quantity, modified_at, last_synced_at
         FROM cached_products WHERE site = ? AND sku = ?
         ORDER BY last_synced_at DESC LIMIT 1`, site, sku)
	p, err := scanCachedProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached product: %w", err)
	}
	return p, nil
}

func (db *DB) ListCachedProducts(ctx context.Context, site string) ([]models.CachedProduct, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT site, product_id, parent_id, sku, name, publish_status, stock_status, quantity, modified_at, last_synced_at
         FROM cached_products WHERE site = ? ORDER BY sku`, site)
	if err != nil {
		return nil, fmt.Errorf("failed to list cached products: %w", err)
	}
	defer rows.Close()

	var products []models.CachedProduct
	for rows.Next() {
		p, err := scanCachedProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cached product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func scanCachedProduct(row rowScanner) (*models.CachedProduct, error) {
	var p models.CachedProduct
	err := row.Scan(&p.Site, &p.ProductID, &p.ParentID, &p.SKU, &p.Name,
		&p.PublishStatus, &p.StockStatus, &p.Quantity, &p.ModifiedAt, &p.LastSyncedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
