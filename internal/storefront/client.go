// Package storefront talks to one e-commerce site's REST API.
package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"stocksync/internal/config"
	"stocksync/internal/domain"
	"stocksync/internal/models"

	"github.com/rs/zerolog"
)

// ErrProductNotFound is returned by FindProductBySKU when the SKU
// resolves to no product on the site.
var ErrProductNotFound = errors.New("product not found")

// StatusError carries the remote status code so the concurrency
// controller can distinguish rate limiting from other failures.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("storefront status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("storefront status %d", e.StatusCode)
}

// IsRateLimited reports whether err is a 429 or 5xx remote response.
func IsRateLimited(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return false
}

const apiBase = "/wp-json/wc/v3"

// Client is a per-site REST client, authenticated with the site's
// key/secret over HTTP Basic.
type Client struct {
	site     string
	baseURL  string
	key      string
	secret   string
	pageSize int
	http     *http.Client
	logger   zerolog.Logger
}

func NewClient(site config.SiteConfig, logger *zerolog.Logger) *Client {
	return &Client{
		site:     site.Name,
		baseURL:  site.BaseURL,
		key:      site.Key,
		secret:   site.Secret,
		pageSize: site.PageSize,
		http:     &http.Client{Timeout: site.Timeout},
		logger:   logger.With().Str("component", "storefront-client").Str("site", site.Name).Logger(),
	}
}

// FindProductBySKU resolves a SKU to a product or a variation. The
// lookup endpoint may return several matches; the first with an exact
// SKU match wins.
func (c *Client) FindProductBySKU(ctx context.Context, sku string) (*domain.StorefrontProduct, error) {
	params := url.Values{"sku": {sku}}
	var payloads []productPayload
	if err := c.do(ctx, http.MethodGet, "/products", params, nil, &payloads); err != nil {
		return nil, err
	}

	for _, p := range payloads {
		if p.SKU != sku {
			continue
		}
		return toStorefrontProduct(p), nil
	}
	return nil, ErrProductNotFound
}

// UpdateProductStock mutates a simple product's stock fields.
func (c *Client) UpdateProductStock(ctx context.Context, productID int64, update domain.StockUpdate) (*domain.StorefrontProduct, error) {
	path := fmt.Sprintf("/products/%d", productID)
	return c.putStock(ctx, path, update)
}

// UpdateVariationStock mutates a variation through its parent's
// variations endpoint.
func (c *Client) UpdateVariationStock(ctx context.Context, parentID, variationID int64, update domain.StockUpdate) (*domain.StorefrontProduct, error) {
	path := fmt.Sprintf("/products/%d/variations/%d", parentID, variationID)
	return c.putStock(ctx, path, update)
}

func (c *Client) putStock(ctx context.Context, path string, update domain.StockUpdate) (*domain.StorefrontProduct, error) {
	payload := stockUpdatePayload{
		StockStatus: update.StockStatus,
		ManageStock: update.ManageStock,
	}
	if update.ManageStock {
		qty := update.StockQuantity
		payload.StockQuantity = &qty
	}

	var result productPayload
	if err := c.do(ctx, http.MethodPut, path, nil, payload, &result); err != nil {
		return nil, err
	}
	return toStorefrontProduct(result), nil
}

// FetchOrdersPage returns one page of orders modified after the given
// instant, oldest first so checkpoint advancement is monotonic.
func (c *Client) FetchOrdersPage(ctx context.Context, modifiedAfter time.Time, page int) ([]models.OrderRecord, error) {
	params := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(c.pageSize)},
		"orderby":  {"modified"},
		"order":    {"asc"},
	}
	if !modifiedAfter.IsZero() {
		params.Set("modified_after", modifiedAfter.UTC().Format("2006-01-02T15:04:05"))
	}

	var payloads []orderPayload
	if err := c.do(ctx, http.MethodGet, "/orders", params, nil, &payloads); err != nil {
		return nil, err
	}

	orders := make([]models.OrderRecord, 0, len(payloads))
	for _, p := range payloads {
		order, err := c.decodeOrder(p)
		if err != nil {
			c.logger.Warn().Int64("order_id", p.ID).Err(err).Msg("dropping malformed order payload")
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// FetchProductsPage returns one page of products modified after the
// given instant, including variations flattened with their parent id.
func (c *Client) FetchProductsPage(ctx context.Context, modifiedAfter time.Time, page int) ([]models.CachedProduct, error) {
	params := url.Values{
		"page":     {strconv.Itoa(page)},
		"per_page": {strconv.Itoa(c.pageSize)},
		"orderby":  {"modified"},
		"order":    {"asc"},
	}
	if !modifiedAfter.IsZero() {
		params.Set("modified_after", modifiedAfter.UTC().Format("2006-01-02T15:04:05"))
	}

	var payloads []productPayload
	if err := c.do(ctx, http.MethodGet, "/products", params, nil, &payloads); err != nil {
		return nil, err
	}

	products := make([]models.CachedProduct, 0, len(payloads))
	for _, p := range payloads {
		if p.SKU == "" {
			continue
		}
		qty, _ := p.StockQuantity.Float64()
		products = append(products, models.CachedProduct{
			Site:          c.site,
			ProductID:     p.ID,
			ParentID:      p.ParentID,
			SKU:           p.SKU,
			Name:          p.Name,
			PublishStatus: p.Status,
			StockStatus:   p.StockStatus,
			Quantity:      qty,
			ModifiedAt:    parseRemoteTime(p.DateModified),
			LastSyncedAt:  time.Now().UTC(),
		})
	}
	return products, nil
}

func (c *Client) decodeOrder(p orderPayload) (models.OrderRecord, error) {
	if p.ID == 0 {
		return models.OrderRecord{}, fmt.Errorf("order without id")
	}
	total, err := p.Total.Float64()
	if err != nil && p.Total != "" {
		return models.OrderRecord{}, fmt.Errorf("parse total %q: %w", p.Total, err)
	}

	created := parseRemoteTime(p.DateCreated)
	modified := parseRemoteTime(p.DateModified)
	if modified.IsZero() {
		modified = created
	}

	customer := p.Billing.FirstName
	if p.Billing.LastName != "" {
		if customer != "" {
			customer += " "
		}
		customer += p.Billing.LastName
	}

	return models.OrderRecord{
		Site:       c.site,
		ExternalID: p.ID,
		Number:     p.Number,
		Status:     p.Status,
		Total:      total,
		Currency:   p.Currency,
		Customer:   customer,
		ItemCount:  len(p.LineItems),
		CreatedAt:  created,
		ModifiedAt: modified,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	u := c.baseURL + apiBase + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.key, c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var remote apiError
		message := ""
		if json.Unmarshal(data, &remote) == nil {
			message = remote.Message
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: message}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func toStorefrontProduct(p productPayload) *domain.StorefrontProduct {
	qty, _ := p.StockQuantity.Float64()
	return &domain.StorefrontProduct{
		ID:            p.ID,
		ParentID:      p.ParentID,
		SKU:           p.SKU,
		Name:          p.Name,
		PublishStatus: p.Status,
		StockStatus:   p.StockStatus,
		Quantity:      qty,
	}
}

func parseRemoteTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{"2006-01-02T15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
