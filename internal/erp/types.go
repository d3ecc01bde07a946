package erp

import (
	"encoding/json"
	"strconv"
)

// Wire shapes of the ERP API. Numeric fields arrive as JSON numbers
// or quoted strings depending on the ERP version, so quantities are
// held as raw text and parsed once at ingestion.

// flexNumber holds a numeric field as raw text. Unlike json.Number it
// never fails the enclosing document: a malformed value is kept and
// rejected when the individual row is decoded, so one bad row cannot
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

type inventoryResponse struct {
	Rows  []inventoryRowPayload `json:"rows"`
	Page  int                   `json:"page"`
	Pages int                   `json:"pages"`
	Total int                   `json:"total"`
}

type inventoryRowPayload struct {
	Code        string     `json:"code"`
	Name        string     `json:"name"`
	WarehouseID string     `json:"warehouse_id"`
	Available   flexNumber `json:"available"`
	Shortfall   flexNumber `json:"shortfall"`
	Category1   string     `json:"category1"`
	Category2   string     `json:"category2"`
	Category3   string     `json:"category3"`
}

type warehousesResponse struct {
	Warehouses []warehousePayload `json:"warehouses"`
}

type warehousePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type mappingsResponse struct {
	Mappings []mappingPayload `json:"mappings"`
}

type mappingPayload struct {
	Code       string     `json:"code"`
	SKU        string     `json:"sku"`
	Multiplier flexNumber `json:"multiplier"`
}

type errorResponse struct {
	Error string `json:"error"`
}
