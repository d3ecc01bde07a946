// Package mapping resolves ERP product codes onto storefront SKUs.
package mapping

import "stocksync/internal/models"

// Target is one storefront SKU an ERP code maps to, with the quantity
// multiplier converting ERP units into storefront units.
type Target struct {
	SKU        string
	Multiplier float64
}

// Resolver holds the forward (ERP code to SKUs) and reverse
// (SKU to ERP code) indices, built once per run.
type Resolver struct {
	forward map[string][]Target
	reverse map[string]string
}

// NewResolver builds both indices in one pass over the records.
// Duplicate (code, sku) pairs keep the last multiplier seen.
func NewResolver(records []models.SkuMapping) *Resolver {
	r := &Resolver{
		forward: make(map[string][]Target, len(records)),
		reverse: make(map[string]string, len(records)),
	}
	for _, rec := range records {
		if rec.Code == "" || rec.SKU == "" {
			continue
		}
		multiplier := rec.Multiplier
		if multiplier <= 0 {
			multiplier = 1
		}

		targets := r.forward[rec.Code]
		replaced := false
		for i := range targets {
			if targets[i].SKU == rec.SKU {
				targets[i].Multiplier = multiplier
				replaced = true
				break
			}
		}
		if !replaced {
			targets = append(targets, Target{SKU: rec.SKU, Multiplier: multiplier})
		}
		r.forward[rec.Code] = targets
		r.reverse[rec.SKU] = rec.Code
	}
	return r
}

// Resolve returns the storefront SKUs for an ERP code. An unmapped
// code resolves to itself, so every inventory row has at least one
// candidate SKU.
func (r *Resolver) Resolve(code string) []Target {
	if targets, ok := r.forward[code]; ok {
		return targets
	}
	return []Target{{SKU: code, Multiplier: 1}}
}

// ReverseLookup returns the ERP code behind a storefront SKU, for
// diagnostics. The second return is false when the SKU is unmapped.
func (r *Resolver) ReverseLookup(sku string) (string, bool) {
	code, ok := r.reverse[sku]
	return code, ok
}

// Len reports how many ERP codes carry an explicit mapping.
func (r *Resolver) Len() int {
	return len(r.forward)
}
