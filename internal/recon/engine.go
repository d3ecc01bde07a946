package recon

import (
	"sort"

	"stocksync/internal/config"
	"stocksync/internal/mapping"
	"stocksync/internal/models"
)

// Decision is one required remote update: set a storefront SKU to a
// target stock status.
type Decision struct {
	SKU      string
	Target   string
	Code     string
	NetStock float64
}

// DecideCounters accounts for pairs the engine looked at but did not
// act on.
type DecideCounters struct {
	Checked int
	Skipped int
}

// Decide compares ERP net stock against the cached storefront state
// and returns the minimal diff of required updates. Pure: same inputs
// always yield the same diff, and applying the diff then re-deriving
// the cache yields an empty diff.
//
// Pairs whose SKU has no cached entry are skipped, never acted on.
// Each (code, SKU) pair is evaluated independently; one code can
// trigger an update on one SKU and none on another.
func Decide(netStock map[string]float64, resolver *mapping.Resolver, cached map[string]models.CachedProduct, policy config.PolicyConfig) ([]Decision, DecideCounters) {
	codes := make([]string, 0, len(netStock))
	for code := range netStock {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var decisions []Decision
	var counters DecideCounters

	for _, code := range codes {
		n := netStock[code]
		for _, target := range resolver.Resolve(code) {
			counters.Checked++

			product, ok := cached[target.SKU]
			if !ok {
				// Unknown product: cannot act safely.
				counters.Skipped++
				continue
			}

			switch {
			case product.StockStatus == models.StockStatusInStock && n <= 0 && policy.SyncToOutOfStock:
				decisions = append(decisions, Decision{
					SKU:      target.SKU,
					Target:   models.StockStatusOutOfStock,
					Code:     code,
					NetStock: n,
				})
			case product.StockStatus == models.StockStatusOutOfStock && n > 0 && policy.SyncToInStock:
				decisions = append(decisions, Decision{
					SKU:      target.SKU,
					Target:   models.StockStatusInStock,
					Code:     code,
					NetStock: n,
				})
			default:
				counters.Skipped++
			}
		}
	}

	return decisions, counters
}
