package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"stocksync/internal/database"
	"stocksync/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setupExporter(t *testing.T) (*Exporter, *database.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewExporter(db, filepath.Join(dir, "exports")), db
}

func TestRunHistory(t *testing.T) {
	exporter, db := setupExporter(t)
	ctx := context.Background()

	errText := "erp unreachable"
	runs := []models.RunLog{
		{RunID: uuid.NewString(), Site: "shop-eu", Status: models.RunStatusSuccess,
			Checked: 40, SyncedInStock: 3, SyncedOutOfStock: 2, Duration: 1500 * time.Millisecond},
		{RunID: uuid.NewString(), Site: "shop-eu", Status: models.RunStatusFailed, Error: &errText},
	}
	for i := range runs {
		require.NoError(t, db.InsertRunLog(ctx, &runs[i]))
	}

	path, err := exporter.RunHistory(ctx, "shop-eu", 50)
	require.NoError(t, err)
	assert.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue("Runs", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Time", header)

	rows, err := f.GetRows("Runs")
	require.NoError(t, err)
	// Header plus one row per run.
	assert.Len(t, rows, 3)
}

func TestStockSnapshot(t *testing.T) {
	exporter, db := setupExporter(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertCachedProduct(ctx, &models.CachedProduct{
		Site: "shop-eu", ProductID: 42, SKU: "A1", Name: "Widget",
		PublishStatus: "publish", StockStatus: "instock", Quantity: 5,
		LastSyncedAt: time.Now().UTC(),
	}))

	path, err := exporter.StockSnapshot(ctx, "shop-eu")
	require.NoError(t, err)
	assert.FileExists(t, path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sku, err := f.GetCellValue("Stock", "A2")
	require.NoError(t, err)
	assert.Equal(t, "A1", sku)

	status, err := f.GetCellValue("Stock", "D2")
	require.NoError(t, err)
	assert.Equal(t, "instock", status)
}

func TestStockSnapshot_EmptyMirror(t *testing.T) {
	exporter, _ := setupExporter(t)

	path, err := exporter.StockSnapshot(context.Background(), "shop-eu")
	require.NoError(t, err)
	assert.FileExists(t, path)
}
