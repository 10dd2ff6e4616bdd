package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reasons recorded on price history rows
const (
	ReasonSync          = "Takealot sync"
	ReasonWebhookPrefix = "Takealot webhook: "
	ReasonRepricing     = "Repricing rule applied"
)

// PriceHistory is an immutable record of one observed price change
type PriceHistory struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	ProductID uuid.UUID       `json:"product_id" db:"product_id"`
	OldPrice  decimal.Decimal `json:"old_price" db:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price" db:"new_price"`
	Reason    string          `json:"reason" db:"reason"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// PriceUpdate is one requested price push
type PriceUpdate struct {
	ProductID uuid.UUID       `json:"product_id"`
	NewPrice  decimal.Decimal `json:"new_price"`
}

// PriceUpdateResult is the per-item outcome of a price push
type PriceUpdateResult struct {
	ProductID uuid.UUID        `json:"product_id"`
	Success   bool             `json:"success"`
	OldPrice  *decimal.Decimal `json:"old_price,omitempty"`
	NewPrice  *decimal.Decimal `json:"new_price,omitempty"`
	Error     string           `json:"error,omitempty"`
}

type PriceUpdateSummary struct {
	Results   []PriceUpdateResult `json:"results"`
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
}

// PriceChangedEvent is published whenever a price history row is written.
type PriceChangedEvent struct {
	ProductID  uuid.UUID       `json:"product_id"`
	UserID     uuid.UUID       `json:"user_id"`
	SKU        string          `json:"sku"`
	OfferID    string          `json:"offer_id,omitempty"`
	OldPrice   decimal.Decimal `json:"old_price"`
	NewPrice   decimal.Decimal `json:"new_price"`
	Reason     string          `json:"reason"`
	OccurredAt time.Time       `json:"occurred_at"`
}
