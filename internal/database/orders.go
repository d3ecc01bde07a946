package database

import (
	"context"
	"fmt"
	"math"

	"stocksync/internal/models"
)

// UpsertOrders writes a batch of order mirror rows in one transaction,
// keyed by (site, external_id). The whole batch is rejected with a
// *RangeError when any row carries an out-of-range numeric; callers
// retry once with the offending rows excluded.
func (db *DB) UpsertOrders(ctx context.Context, site string, orders []models.OrderRecord) error {
	if len(orders) == 0 {
		return nil
	}

	var offending []int64
	for _, o := range orders {
		if !numericInRange(o.Total) || o.ItemCount < 0 {
			offending = append(offending, o.ExternalID)
		}
	}
	if len(offending) > 0 {
		return &RangeError{ExternalIDs: offending}
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin orders tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO orders (site, external_id, number, status, total, currency, customer, item_count, created_at, modified_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(site, external_id) DO UPDATE SET
            number = excluded.number,
            status = excluded.status,
            total = excluded.total,
            currency = excluded.currency,
            customer = excluded.customer,
            item_count = excluded.item_count,
            modified_at = excluded.modified_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare orders upsert: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		_, err := stmt.ExecContext(ctx,
			site, o.ExternalID, o.Number, o.Status, o.Total, o.Currency,
			o.Customer, o.ItemCount, o.CreatedAt.UTC(), o.ModifiedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to upsert order %d: %w", o.ExternalID, err)
		}
	}

	return tx.Commit()
}

func (db *DB) CountOrders(ctx context.Context, site string) (int64, error) {
	var count int64
	err := db.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE site = ?`, site).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}

func numericInRange(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= MaxNumeric
}
