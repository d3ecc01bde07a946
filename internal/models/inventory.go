package models

// MergedWarehouse is the sentinel warehouse label of a normalized row
// that was merged from several per-warehouse rows.
const MergedWarehouse = "merged"

// InventoryRow is one per-warehouse stock row as reported by the ERP.
type InventoryRow struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Warehouse string  `json:"warehouse"`
	Available float64 `json:"available"`
	Shortfall float64 `json:"shortfall"`
	Category1 string  `json:"category1,omitempty"`
	Category2 string  `json:"category2,omitempty"`
	Category3 string  `json:"category3,omitempty"`
}

// NetStock is available minus backordered/shortfall quantity. This,
// not the raw available figure, is what reconciliation compares.
func (r InventoryRow) NetStock() float64 {
	return r.Available - r.Shortfall
}

// SkuMapping relates one ERP product code to one storefront SKU.
// A single ERP item may fulfil several storefront listings; Multiplier
// converts ERP units into storefront units.
type SkuMapping struct {
	Code       string  `json:"code"`
	SKU        string  `json:"sku"`
	Multiplier float64 `json:"multiplier"`
}
