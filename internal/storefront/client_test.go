package storefront

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stocksync/internal/config"
	"stocksync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := zerolog.Nop()
	return NewClient(config.SiteConfig{
		Name:     "shop-eu",
		BaseURL:  server.URL,
		Key:      "ck_test",
		Secret:   "cs_test",
		PageSize: 100,
		Timeout:  5 * time.Second,
	}, &logger)
}

func TestFindProductBySKU_ExactMatchWins(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiBase+"/products", r.URL.Path)
		assert.Equal(t, "A1", r.URL.Query().Get("sku"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "ck_test", user)
		assert.Equal(t, "cs_test", pass)

		// Fuzzy matches come first; the exact one must win.
		fmt.Fprint(w, `[
            {"id": 1, "sku": "A1-variant", "stock_status": "instock"},
            {"id": 2, "sku": "A1", "name": "Widget", "stock_status": "outofstock", "stock_quantity": "0"}
        ]`)
	})

	product, err := client.FindProductBySKU(context.Background(), "A1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), product.ID)
	assert.Equal(t, "outofstock", product.StockStatus)
}

func TestFindProductBySKU_NotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	_, err := client.FindProductBySKU(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdateProductStock_OutOfStockPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, apiBase+"/products/42", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "outofstock", body["stock_status"])
		assert.Equal(t, true, body["manage_stock"])
		assert.Equal(t, float64(0), body["stock_quantity"])

		fmt.Fprint(w, `{"id": 42, "sku": "A1", "stock_status": "outofstock", "stock_quantity": "0"}`)
	})

	updated, err := client.UpdateProductStock(context.Background(), 42,
		domain.StockUpdate{StockStatus: "outofstock", ManageStock: true, StockQuantity: 0})
	require.NoError(t, err)
	assert.Equal(t, "outofstock", updated.StockStatus)
}

func TestUpdateProductStock_InStockOmitsQuantity(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "instock", body["stock_status"])
		assert.Equal(t, false, body["manage_stock"])
		_, hasQuantity := body["stock_quantity"]
		assert.False(t, hasQuantity)

		fmt.Fprint(w, `{"id": 42, "sku": "A1", "stock_status": "instock"}`)
	})

	_, err := client.UpdateProductStock(context.Background(), 42,
		domain.StockUpdate{StockStatus: "instock", ManageStock: false})
	require.NoError(t, err)
}

func TestUpdateVariationStock_UsesParentPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, apiBase+"/products/7/variations/33", r.URL.Path)
		fmt.Fprint(w, `{"id": 33, "parent_id": 7, "sku": "V1", "stock_status": "instock"}`)
	})

	updated, err := client.UpdateVariationStock(context.Background(), 7, 33,
		domain.StockUpdate{StockStatus: "instock"})
	require.NoError(t, err)
	assert.Equal(t, int64(33), updated.ID)
	assert.Equal(t, int64(7), updated.ParentID)
}

func TestStatusError_CarriesRemoteCode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"code": "rate_limited", "message": "slow down"}`)
	})

	_, err := client.FindProductBySKU(context.Background(), "A1")
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	assert.Equal(t, "slow down", statusErr.Message)
	assert.True(t, IsRateLimited(err))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(&StatusError{StatusCode: 429}))
	assert.True(t, IsRateLimited(&StatusError{StatusCode: 500}))
	assert.True(t, IsRateLimited(&StatusError{StatusCode: 503}))
	assert.False(t, IsRateLimited(&StatusError{StatusCode: 404}))
	assert.False(t, IsRateLimited(fmt.Errorf("plain error")))
	assert.False(t, IsRateLimited(nil))
}

func TestFetchOrdersPage_QueryAndDecoding(t *testing.T) {
	since := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "100", q.Get("per_page"))
		assert.Equal(t, "modified", q.Get("orderby"))
		assert.Equal(t, "asc", q.Get("order"))
		assert.Equal(t, "2026-06-01T10:00:00", q.Get("modified_after"))

		fmt.Fprint(w, `[
            {"id": 101, "number": "1001", "status": "completed", "total": "49.90", "currency": "EUR",
             "billing": {"first_name": "Ada", "last_name": "Lovelace"},
             "line_items": [{"id": 1, "sku": "A1", "quantity": 2}],
             "date_created_gmt": "2026-06-01T10:30:00", "date_modified_gmt": "2026-06-01T11:00:00"},
            {"id": 0, "number": "broken", "total": "x"},
            {"id": 102, "number": "1002", "total": "not-a-number"}
        ]`)
	})

	orders, err := client.FetchOrdersPage(context.Background(), since, 2)
	require.NoError(t, err)
	// Malformed rows are dropped individually, never failing the page.
	require.Len(t, orders, 1)

	order := orders[0]
	assert.Equal(t, int64(101), order.ExternalID)
	assert.Equal(t, "1001", order.Number)
	assert.Equal(t, 49.90, order.Total)
	assert.Equal(t, "Ada Lovelace", order.Customer)
	assert.Equal(t, 1, order.ItemCount)
	assert.Equal(t, time.Date(2026, 6, 1, 11, 0, 0, 0, time.UTC), order.ModifiedAt)
}

func TestFetchProductsPage_SkipsBlankSKUs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
            {"id": 1, "sku": "A1", "name": "Widget", "status": "publish", "stock_status": "instock",
             "stock_quantity": "5", "date_modified_gmt": "2026-06-01T10:00:00"},
            {"id": 2, "sku": "", "name": "No SKU"}
        ]`)
	})

	products, err := client.FetchProductsPage(context.Background(), time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "A1", products[0].SKU)
	assert.Equal(t, float64(5), products[0].Quantity)
	assert.Equal(t, "shop-eu", products[0].Site)
	assert.Equal(t, time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), products[0].ModifiedAt)
}
