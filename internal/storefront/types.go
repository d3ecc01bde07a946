package storefront

import (
	"encoding/json"
	"strconv"
)

// Wire shapes of the storefront REST API. Monetary and quantity
// fields arrive as quoted strings; they are parsed once at ingestion.

// flexNumber holds a numeric field as raw text. Unlike json.Number it
// never fails the enclosing document: a malformed value is kept and
// rejected when the individual row is parsed, so one bad row cannot
// abort a whole page fetch.
type flexNumber string

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = flexNumber(s)
		return nil
	}
	if string(data) == "null" {
		*n = ""
		return nil
	}
	*n = flexNumber(data)
	return nil
}

func (n flexNumber) Float64() (float64, error) {
	return strconv.ParseFloat(string(n), 64)
}

type productPayload struct {
	ID            int64      `json:"id"`
	ParentID      int64      `json:"parent_id"`
	Type          string     `json:"type"`
	SKU           string     `json:"sku"`
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	StockStatus   string     `json:"stock_status"`
	ManageStock   bool       `json:"manage_stock"`
	StockQuantity flexNumber `json:"stock_quantity"`
	DateModified  string     `json:"date_modified_gmt"`
}

type stockUpdatePayload struct {
	StockStatus   string   `json:"stock_status"`
	ManageStock   bool     `json:"manage_stock"`
	StockQuantity *float64 `json:"stock_quantity,omitempty"`
}

type orderPayload struct {
	ID           int64          `json:"id"`
	Number       string         `json:"number"`
	Status       string         `json:"status"`
	Total        flexNumber     `json:"total"`
	Currency     string         `json:"currency"`
	Billing      billingPayload `json:"billing"`
	LineItems    []lineItem     `json:"line_items"`
	DateCreated  string         `json:"date_created_gmt"`
	DateModified string         `json:"date_modified_gmt"`
}

type billingPayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type lineItem struct {
	ID       int64  `json:"id"`
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
