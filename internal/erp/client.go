// Package erp reads inventory, warehouses and SKU mappings from the
// inventory-of-record system.
package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"stocksync/internal/config"
	"stocksync/internal/models"

	"github.com/rs/zerolog"
)

// Client is the HTTP client for the ERP API, authenticated with the
// service credential pair from config.
type Client struct {
	baseURL  string
	account  string
	apiKey   string
	pageSize int
	http     *http.Client
	logger   zerolog.Logger
}

func NewClient(cfg config.ERPConfig, logger *zerolog.Logger) *Client {
	return &Client{
		baseURL:  cfg.BaseURL,
		account:  cfg.Account,
		apiKey:   cfg.APIKey,
		pageSize: cfg.PageSize,
		http:     &http.Client{Timeout: cfg.Timeout},
		logger:   logger.With().Str("component", "erp-client").Logger(),
	}
}

// FetchInventory pulls all inventory pages. Warehouse ids are
// translated to names through the warehouse table so downstream
// filters can match on the human-readable label.
func (c *Client) FetchInventory(ctx context.Context) ([]models.InventoryRow, error) {
	warehouses, err := c.FetchWarehouses(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch warehouses: %w", err)
	}

	var rows []models.InventoryRow
	for page := 1; ; page++ {
		var resp inventoryResponse
		params := url.Values{
			"page":      {strconv.Itoa(page)},
			"page_size": {strconv.Itoa(c.pageSize)},
		}
		if err := c.get(ctx, "/api/inventory", params, &resp); err != nil {
			return nil, fmt.Errorf("fetch inventory page %d: %w", page, err)
		}

		for _, payload := range resp.Rows {
			row, err := decodeInventoryRow(payload, warehouses)
			if err != nil {
				// Data error: drop the row, keep the batch.
				c.logger.Warn().Str("code", payload.Code).Err(err).Msg("dropping malformed inventory row")
				continue
			}
			rows = append(rows, row)
		}

		if resp.Pages == 0 || page >= resp.Pages || len(resp.Rows) == 0 {
			break
		}
	}

	c.logger.Debug().Int("rows", len(rows)).Msg("fetched inventory")
	return rows, nil
}

func (c *Client) FetchWarehouses(ctx context.Context) (map[string]string, error) {
	var resp warehousesResponse
	if err := c.get(ctx, "/api/warehouses", nil, &resp); err != nil {
		return nil, err
	}
	warehouses := make(map[string]string, len(resp.Warehouses))
	for _, w := range resp.Warehouses {
		warehouses[w.ID] = w.Name
	}
	return warehouses, nil
}

func (c *Client) FetchMappings(ctx context.Context) ([]models.SkuMapping, error) {
	var resp mappingsResponse
	if err := c.get(ctx, "/api/sku-mappings", nil, &resp); err != nil {
		return nil, err
	}

	mappings := make([]models.SkuMapping, 0, len(resp.Mappings))
	for _, payload := range resp.Mappings {
		multiplier := numberOr(payload.Multiplier, 1)
		mappings = append(mappings, models.SkuMapping{
			Code:       payload.Code,
			SKU:        payload.SKU,
			Multiplier: multiplier,
		})
	}
	return mappings, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Account", c.account)
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("erp %s: status %d: %s", path, resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("erp %s: status %d", path, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeInventoryRow(payload inventoryRowPayload, warehouses map[string]string) (models.InventoryRow, error) {
	if payload.Code == "" {
		return models.InventoryRow{}, fmt.Errorf("empty product code")
	}
	available, err := payload.Available.Float64()
	if err != nil && payload.Available != "" {
		return models.InventoryRow{}, fmt.Errorf("parse available %q: %w", payload.Available, err)
	}
	shortfall, err := payload.Shortfall.Float64()
	if err != nil && payload.Shortfall != "" {
		return models.InventoryRow{}, fmt.Errorf("parse shortfall %q: %w", payload.Shortfall, err)
	}

	warehouse := warehouses[payload.WarehouseID]
	if warehouse == "" {
		warehouse = payload.WarehouseID
	}

	return models.InventoryRow{
		Code:      payload.Code,
		Name:      payload.Name,
		Warehouse: warehouse,
		Available: available,
		Shortfall: shortfall,
		Category1: payload.Category1,
		Category2: payload.Category2,
		Category3: payload.Category3,
	}, nil
}

func numberOr(n flexNumber, fallback float64) float64 {
	if n == "" {
		return fallback
	}
	v, err := n.Float64()
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
