package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// RemoteOffer is a marketplace offer after normalization
type RemoteOffer struct {
	OfferID       string
	SKU           string
	Title         string
	Price         *decimal.Decimal
	StockQuantity *int // nil when the offer reports no stock field
	ImageURL      string
	BuyBoxStatus  BuyBoxStatus
	CostPrice     *decimal.Decimal
}

// ExternalID accepts identifiers the marketplace sends either as JSON
// strings or as bare numbers.
type ExternalID string

func (id *ExternalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ExternalID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("external id: %w", err)
	}
	*id = ExternalID(n.String())
	return nil
}

func (id ExternalID) String() string {
	return string(id)
}
