package database

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"stocksync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderRecord(id int64, total float64) models.OrderRecord {
	ts := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC).Add(time.Duration(id) * time.Minute)
	return models.OrderRecord{
		ExternalID: id,
		Number:     fmt.Sprintf("N-%d", id),
		Status:     "completed",
		Total:      total,
		Currency:   "EUR",
		ItemCount:  1,
		CreatedAt:  ts,
		ModifiedAt: ts,
	}
}

func TestUpsertOrders_RoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	batch := []models.OrderRecord{orderRecord(1, 10.5), orderRecord(2, 99)}
	require.NoError(t, db.UpsertOrders(ctx, "shop-eu", batch))

	count, err := db.CountOrders(ctx, "shop-eu")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Upserting again must not create duplicates.
	require.NoError(t, db.UpsertOrders(ctx, "shop-eu", batch))
	count, err = db.CountOrders(ctx, "shop-eu")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestUpsertOrders_RangeErrorRejectsWholeBatch(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	batch := []models.OrderRecord{
		orderRecord(1, 10),
		orderRecord(2, 2e12), // beyond the accepted numeric range
		orderRecord(3, math.Inf(1)),
		orderRecord(4, 40),
	}

	err := db.UpsertOrders(ctx, "shop-eu", batch)
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.ElementsMatch(t, []int64{2, 3}, rangeErr.ExternalIDs)

	// Nothing from the batch may have been written.
	count, err := db.CountOrders(ctx, "shop-eu")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestUpsertOrders_NegativeItemCountRejected(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	bad := orderRecord(7, 10)
	bad.ItemCount = -1

	err := db.UpsertOrders(ctx, "shop-eu", []models.OrderRecord{bad})
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
	assert.Equal(t, []int64{7}, rangeErr.ExternalIDs)
}

func TestUpsertOrders_NaNRejected(t *testing.T) {
	db := setupTestDB(t)

	err := db.UpsertOrders(context.Background(), "shop-eu",
		[]models.OrderRecord{orderRecord(9, math.NaN())})
	var rangeErr *RangeError
	require.ErrorAs(t, err, &rangeErr)
}

func TestUpsertOrders_SitesIsolated(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertOrders(ctx, "shop-eu", []models.OrderRecord{orderRecord(1, 10)}))
	require.NoError(t, db.UpsertOrders(ctx, "shop-us", []models.OrderRecord{orderRecord(1, 10)}))

	count, err := db.CountOrders(ctx, "shop-eu")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
