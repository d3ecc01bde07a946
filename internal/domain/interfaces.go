package domain

import (
	"context"
	"time"

	"stocksync/internal/models"
)

// Repository is the durable relational mirror (tasks, checkpoints,
// cached products, orders, run logs).
type Repository interface {
	CreateTask(ctx context.Context, task *models.SyncTask) error
	GetTask(ctx context.Context, id int64) (*models.SyncTask, error)
	ListTasks(ctx context.Context, status string, limit int) ([]models.SyncTask, error)
	ClaimPendingTasks(ctx context.Context, limit int) ([]models.SyncTask, error)
	HasActiveTask(ctx context.Context, site, kind string) (bool, error)
	UpdateTaskStatus(ctx context.Context, id int64, status string, errMsg string) error
	UpdateTaskProgress(ctx context.Context, id int64, progress string) error
	SetTaskResult(ctx context.Context, id int64, result string) error
	ResetTaskForRetry(ctx context.Context, id int64) error
	RequeueProcessingTasks(ctx context.Context) (int64, error)
	DeleteTask(ctx context.Context, id int64) error

	GetCheckpoint(ctx context.Context, site, kind string) (*models.Checkpoint, error)
	AdvanceCheckpoint(ctx context.Context, site, kind string, cursor models.Cursor, deltaCount int64, duration time.Duration) error
	MarkCheckpointFailed(ctx context.Context, site, kind string, errMsg string) error

	UpsertCachedProduct(ctx context.Context, product *models.CachedProduct) error
	GetCachedProductBySKU(ctx context.Context, site, sku string) (*models.CachedProduct, error)
	ListCachedProducts(ctx context.Context, site string) ([]models.CachedProduct, error)

	UpsertOrders(ctx context.Context, site string, orders []models.OrderRecord) error
	CountOrders(ctx context.Context, site string) (int64, error)

	InsertRunLog(ctx context.Context, run *models.RunLog) error
	ListRunLogs(ctx context.Context, site string, limit int) ([]models.RunLog, error)
}

// ProductCache is the fast per-SKU lookup layer in front of the
// repository's cached product table.
type ProductCache interface {
	Get(ctx context.Context, site, sku string) (*models.CachedProduct, error)
	Set(ctx context.Context, product *models.CachedProduct) error
	Invalidate(ctx context.Context, site, sku string) error
}

// ERPClient reads the inventory-of-record system.
type ERPClient interface {
	FetchInventory(ctx context.Context) ([]models.InventoryRow, error)
	FetchWarehouses(ctx context.Context) (map[string]string, error)
	FetchMappings(ctx context.Context) ([]models.SkuMapping, error)
}

// StorefrontProduct is the resolved shape of a lookup-by-SKU call.
type StorefrontProduct struct {
	ID            int64
	ParentID      int64
	SKU           string
	Name          string
	PublishStatus string
	StockStatus   string
	Quantity      float64
}

// StockUpdate is the mutation accepted by the storefront update endpoint.
type StockUpdate struct {
	StockStatus   string
	ManageStock   bool
	StockQuantity float64
}

// StorefrontClient talks to one storefront site.
type StorefrontClient interface {
	FindProductBySKU(ctx context.Context, sku string) (*StorefrontProduct, error)
	UpdateProductStock(ctx context.Context, productID int64, update StockUpdate) (*StorefrontProduct, error)
	UpdateVariationStock(ctx context.Context, parentID, variationID int64, update StockUpdate) (*StorefrontProduct, error)
	FetchOrdersPage(ctx context.Context, modifiedAfter time.Time, page int) ([]models.OrderRecord, error)
	FetchProductsPage(ctx context.Context, modifiedAfter time.Time, page int) ([]models.CachedProduct, error)
}

// Notifier pushes a run summary to an external sink. Best-effort:
// failures never affect the run outcome.
type Notifier interface {
	NotifyRun(ctx context.Context, run *models.RunLog) error
}

// EventPublisher emits in-process events.
type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}
