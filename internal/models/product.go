package models

import "time"

// Storefront stock statuses.
const (
	StockStatusInStock    = "instock"
	StockStatusOutOfStock = "outofstock"
)

// CachedProduct mirrors one storefront product or variation locally.
// Never the source of truth; always re-derivable from the storefront.
type CachedProduct struct {
	Site          string    `json:"site"`
	ProductID     int64     `json:"product_id"`
	ParentID      int64     `json:"parent_id,omitempty"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name,omitempty"`
	PublishStatus string    `json:"publish_status"`
	StockStatus   string    `json:"stock_status"`
	Quantity      float64   `json:"quantity"`
	ModifiedAt    time.Time `json:"modified_at"`
	LastSyncedAt  time.Time `json:"last_synced_at"`
}

// IsVariation reports whether the product is a variation of a parent
// and must be addressed through the parent's endpoint.
func (p *CachedProduct) IsVariation() bool {
	return p.ParentID != 0
}

// OrderRecord mirrors one storefront order for reporting.
type OrderRecord struct {
	Site       string    `json:"site"`
	ExternalID int64     `json:"external_id"`
	Number     string    `json:"number"`
	Status     string    `json:"status"`
	Total      float64   `json:"total"`
	Currency   string    `json:"currency"`
	Customer   string    `json:"customer,omitempty"`
	ItemCount  int       `json:"item_count"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}
