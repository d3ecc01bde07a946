package erp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stocksync/internal/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := zerolog.Nop()
	return NewClient(config.ERPConfig{
		BaseURL:  server.URL,
		Account:  "acme",
		APIKey:   "secret-key",
		PageSize: 2,
		Timeout:  5 * time.Second,
	}, &logger)
}

func TestFetchInventory_PagedWithWarehouseNames(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme", r.Header.Get("X-Account"))
		assert.Equal(t, "secret-key", r.Header.Get("X-Api-Key"))

		switch r.URL.Path {
		case "/api/warehouses":
			fmt.Fprint(w, `{"warehouses": [{"id": "w1", "name": "Main"}, {"id": "w2", "name": "Remote"}]}`)
		case "/api/inventory":
			assert.Equal(t, "2", r.URL.Query().Get("page_size"))
			switch r.URL.Query().Get("page") {
			case "1":
				fmt.Fprint(w, `{"pages": 2, "rows": [
                    {"code": "A1", "name": "Widget", "warehouse_id": "w1", "available": "5", "shortfall": "1", "category1": "Tools"},
                    {"code": "A1", "name": "Widget", "warehouse_id": "w2", "available": 3}
                ]}`)
			case "2":
				fmt.Fprint(w, `{"pages": 2, "rows": [
                    {"code": "B2", "name": "Gadget", "warehouse_id": "w9", "available": "7"}
                ]}`)
			default:
				t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	rows, err := client.FetchInventory(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Main", rows[0].Warehouse)
	assert.Equal(t, 5.0, rows[0].Available)
	assert.Equal(t, 1.0, rows[0].Shortfall)
	assert.Equal(t, "Tools", rows[0].Category1)
	assert.Equal(t, "Remote", rows[1].Warehouse)

	// Unknown warehouse ids pass through untranslated.
	assert.Equal(t, "w9", rows[2].Warehouse)
	assert.Equal(t, 7.0, rows[2].Available)
}

func TestFetchInventory_DropsMalformedRows(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/warehouses":
			fmt.Fprint(w, `{"warehouses": []}`)
		case "/api/inventory":
			fmt.Fprint(w, `{"pages": 1, "rows": [
                {"code": "", "warehouse_id": "w1", "available": "5"},
                {"code": "BAD", "warehouse_id": "w1", "available": "not-a-number"},
                {"code": "OK", "warehouse_id": "w1", "available": "2"}
            ]}`)
		}
	})

	rows, err := client.FetchInventory(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "OK", rows[0].Code)
}

func TestFetchInventory_WarehouseFailureIsFatal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, `{"error": "maintenance window"}`)
	})

	_, err := client.FetchInventory(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maintenance window")
	assert.Contains(t, err.Error(), "status 503")
}

func TestFetchMappings_MultiplierDefaults(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sku-mappings", r.URL.Path)
		fmt.Fprint(w, `{"mappings": [
            {"code": "A1", "sku": "SKU-A1", "multiplier": "2.5"},
            {"code": "B2", "sku": "SKU-B2"},
            {"code": "C3", "sku": "SKU-C3", "multiplier": "0"},
            {"code": "D4", "sku": "SKU-D4", "multiplier": "-1"},
            {"code": "E5", "sku": "SKU-E5", "multiplier": "2x"}
        ]}`)
	})

	mappings, err := client.FetchMappings(context.Background())
	require.NoError(t, err)
	require.Len(t, mappings, 5)

	assert.Equal(t, 2.5, mappings[0].Multiplier)
	assert.Equal(t, 1.0, mappings[1].Multiplier)
	assert.Equal(t, 1.0, mappings[2].Multiplier)
	assert.Equal(t, 1.0, mappings[3].Multiplier)
	assert.Equal(t, 1.0, mappings[4].Multiplier)
}

func TestGet_PlainStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `not json`)
	})

	_, err := client.FetchWarehouses(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
