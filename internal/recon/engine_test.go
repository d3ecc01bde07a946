package recon

import (
	"testing"

	"stocksync/internal/config"
	"stocksync/internal/mapping"
	"stocksync/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bothDirections = config.PolicyConfig{SyncToInStock: true, SyncToOutOfStock: true}

func cachedState(entries ...models.CachedProduct) map[string]models.CachedProduct {
	out := make(map[string]models.CachedProduct, len(entries))
	for _, e := range entries {
		out[e.SKU] = e
	}
	return out
}

func TestDecide_PerPairIndependence(t *testing.T) {
	// One code mapped to two SKUs: one needs an update, one does not.
	resolver := mapping.NewResolver([]models.SkuMapping{
		{Code: "A1", SKU: "W1"},
		{Code: "A1", SKU: "W2"},
	})
	net := map[string]float64{"A1": 5}
	cached := cachedState(
		models.CachedProduct{SKU: "W1", StockStatus: models.StockStatusOutOfStock},
		models.CachedProduct{SKU: "W2", StockStatus: models.StockStatusInStock},
	)

	decisions, counters := Decide(net, resolver, cached, bothDirections)
	require.Len(t, decisions, 1)
	assert.Equal(t, "W1", decisions[0].SKU)
	assert.Equal(t, models.StockStatusInStock, decisions[0].Target)
	assert.Equal(t, "A1", decisions[0].Code)
	assert.Equal(t, 2, counters.Checked)
	assert.Equal(t, 1, counters.Skipped)
}

func TestDecide_OutOfStockTransition(t *testing.T) {
	resolver := mapping.NewResolver(nil)
	net := map[string]float64{"A1": 0, "B2": -3}
	cached := cachedState(
		models.CachedProduct{SKU: "A1", StockStatus: models.StockStatusInStock},
		models.CachedProduct{SKU: "B2", StockStatus: models.StockStatusInStock},
	)

	decisions, _ := Decide(net, resolver, cached, bothDirections)
	require.Len(t, decisions, 2)
	for _, d := range decisions {
		assert.Equal(t, models.StockStatusOutOfStock, d.Target)
	}
}

func TestDecide_UnknownSKUSkipped(t *testing.T) {
	resolver := mapping.NewResolver(nil)
	net := map[string]float64{"A1": 5}

	decisions, counters := Decide(net, resolver, map[string]models.CachedProduct{}, bothDirections)
	assert.Empty(t, decisions)
	assert.Equal(t, 1, counters.Skipped)
}

func TestDecide_PolicyGates(t *testing.T) {
	resolver := mapping.NewResolver(nil)
	net := map[string]float64{"up": 5, "down": 0}
	cached := cachedState(
		models.CachedProduct{SKU: "up", StockStatus: models.StockStatusOutOfStock},
		models.CachedProduct{SKU: "down", StockStatus: models.StockStatusInStock},
	)

	onlyUp, _ := Decide(net, resolver, cached, config.PolicyConfig{SyncToInStock: true})
	require.Len(t, onlyUp, 1)
	assert.Equal(t, "up", onlyUp[0].SKU)

	onlyDown, _ := Decide(net, resolver, cached, config.PolicyConfig{SyncToOutOfStock: true})
	require.Len(t, onlyDown, 1)
	assert.Equal(t, "down", onlyDown[0].SKU)
}

func TestDecide_AlreadyConsistentYieldsNothing(t *testing.T) {
	resolver := mapping.NewResolver(nil)
	net := map[string]float64{"A1": 5, "B2": 0}
	cached := cachedState(
		models.CachedProduct{SKU: "A1", StockStatus: models.StockStatusInStock},
		models.CachedProduct{SKU: "B2", StockStatus: models.StockStatusOutOfStock},
	)

	decisions, counters := Decide(net, resolver, cached, bothDirections)
	assert.Empty(t, decisions)
	assert.Equal(t, 2, counters.Skipped)
}

func TestDecide_Idempotent(t *testing.T) {
	resolver := mapping.NewResolver(nil)
	net := map[string]float64{"A1": 5}
	cached := cachedState(models.CachedProduct{SKU: "A1", StockStatus: models.StockStatusOutOfStock})

	first, _ := Decide(net, resolver, cached, bothDirections)
	require.Len(t, first, 1)

	// Apply the diff to the cache, then re-derive: nothing left to do.
	updated := cached["A1"]
	updated.StockStatus = first[0].Target
	second, _ := Decide(net, resolver, cachedState(updated), bothDirections)
	assert.Empty(t, second)
}

func TestDecide_Deterministic(t *testing.T) {
	resolver := mapping.NewResolver(nil)
	net := map[string]float64{"c": 1, "a": 1, "b": 1}
	cached := cachedState(
		models.CachedProduct{SKU: "a", StockStatus: models.StockStatusOutOfStock},
		models.CachedProduct{SKU: "b", StockStatus: models.StockStatusOutOfStock},
		models.CachedProduct{SKU: "c", StockStatus: models.StockStatusOutOfStock},
	)

	first, _ := Decide(net, resolver, cached, bothDirections)
	second, _ := Decide(net, resolver, cached, bothDirections)
	assert.Equal(t, first, second)
}
