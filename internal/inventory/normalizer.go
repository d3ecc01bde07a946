// Package inventory turns raw per-warehouse ERP rows into per-code
// net stock figures.
package inventory

import (
	"strings"

	"stocksync/internal/config"
	"stocksync/internal/models"
)

// Normalize applies the filter pipeline in order: warehouse exclusion,
// per-code merge, category allow-list, SKU allow-list, SKU prefix
// exclusion. Each step is a no-op when its filter list is empty.
func Normalize(rows []models.InventoryRow, filters config.FilterConfig) []models.InventoryRow {
	rows = excludeWarehouses(rows, filters.ExcludeWarehouses)
	rows = mergeByCode(rows)
	rows = filterCategories(rows, filters.AllowCategories)
	rows = filterSKUs(rows, filters.AllowSKUs)
	rows = excludePrefixes(rows, filters.ExcludeSKUPrefixes)
	return rows
}

// NetStockByCode reduces normalized rows to the per-code net stock
// map the decision engine consumes.
func NetStockByCode(rows []models.InventoryRow) map[string]float64 {
	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.Code] = row.NetStock()
	}
	return out
}

func excludeWarehouses(rows []models.InventoryRow, excluded []string) []models.InventoryRow {
	if len(excluded) == 0 {
		return rows
	}
	kept := rows[:0:0]
	for _, row := range rows {
		if !matchesAny(row.Warehouse, excluded) {
			kept = append(kept, row)
		}
	}
	return kept
}

// mergeByCode collapses per-warehouse rows into one row per code:
// quantities are summed, the warehouse label becomes the merged
// sentinel, categories come from the first row seen. Input order only
// affects which row donates name/categories, never the sums.
func mergeByCode(rows []models.InventoryRow) []models.InventoryRow {
	index := make(map[string]int, len(rows))
	merged := make([]models.InventoryRow, 0, len(rows))
	for _, row := range rows {
		i, ok := index[row.Code]
		if !ok {
			row.Warehouse = models.MergedWarehouse
			index[row.Code] = len(merged)
			merged = append(merged, row)
			continue
		}
		merged[i].Available += row.Available
		merged[i].Shortfall += row.Shortfall
	}
	return merged
}

func filterCategories(rows []models.InventoryRow, allowed []string) []models.InventoryRow {
	if len(allowed) == 0 {
		return rows
	}
	kept := rows[:0:0]
	for _, row := range rows {
		if matchesAny(row.Category1, allowed) || matchesAny(row.Category2, allowed) || matchesAny(row.Category3, allowed) {
			kept = append(kept, row)
		}
	}
	return kept
}

func filterSKUs(rows []models.InventoryRow, allowed []string) []models.InventoryRow {
	if len(allowed) == 0 {
		return rows
	}
	kept := rows[:0:0]
	for _, row := range rows {
		if matchesAny(row.Code, allowed) || matchesAny(row.Name, allowed) {
			kept = append(kept, row)
		}
	}
	return kept
}

func excludePrefixes(rows []models.InventoryRow, prefixes []string) []models.InventoryRow {
	if len(prefixes) == 0 {
		return rows
	}
	kept := rows[:0:0]
	for _, row := range rows {
		excluded := false
		for _, prefix := range prefixes {
			if prefix != "" && strings.HasPrefix(row.Code, prefix) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, row)
		}
	}
	return kept
}

// matchesAny does a case-insensitive substring match against a list.
func matchesAny(value string, needles []string) bool {
	lower := strings.ToLower(value)
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}
