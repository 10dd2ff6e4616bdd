package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BuyBoxStatus string

const (
	BuyBoxWon     BuyBoxStatus = "won"
	BuyBoxLost    BuyBoxStatus = "lost"
	BuyBoxUnknown BuyBoxStatus = "unknown"
)

// ParseBuyBoxStatus maps marketplace wording onto won/lost/unknown.
// Empty input returns "" so callers can tell "not reported" from "unknown".
func ParseBuyBoxStatus(s string) BuyBoxStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return ""
	case "won", "winning", "winner", "true":
		return BuyBoxWon
	case "lost", "losing", "loser", "false":
		return BuyBoxLost
	default:
		return BuyBoxUnknown
	}
}

// BuyBoxFromFlag converts the boolean winner flag sent by the marketplace.
func BuyBoxFromFlag(winner bool) BuyBoxStatus {
	if winner {
		return BuyBoxWon
	}
	return BuyBoxLost
}

// Product is a seller's local record of a marketplace listing
type Product struct {
	ID              uuid.UUID           `json:"id" db:"id"`
	UserID          uuid.UUID           `json:"user_id" db:"user_id"`
	SKU             string              `json:"sku" db:"sku"`
	TakealotOfferID *string             `json:"takealot_offer_id" db:"takealot_offer_id"`
	Title           string              `json:"title" db:"title"`
	CurrentPrice    decimal.Decimal     `json:"current_price" db:"current_price"`
	StockQuantity   int                 `json:"stock_quantity" db:"stock_quantity"`
	ImageURL        *string             `json:"image_url" db:"image_url"`
	BuyBoxStatus    BuyBoxStatus        `json:"buy_box_status" db:"buy_box_status"`
	CostPrice       decimal.NullDecimal `json:"cost_price" db:"cost_price"`
	LastSyncedAt    *time.Time          `json:"last_synced_at" db:"last_synced_at"`
	LastRepricedAt  *time.Time          `json:"last_repriced_at" db:"last_repriced_at"`
	IsActive        bool                `json:"is_active" db:"is_active"`
	CreatedAt       time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at" db:"updated_at"`
}

// OfferID returns the linked marketplace offer id or "" when unlinked.
func (p *Product) OfferID() string {
	if p.TakealotOfferID == nil {
		return ""
	}
	return *p.TakealotOfferID
}

// ProductPatch is a partial update; nil fields are left untouched.
type ProductPatch struct {
	CurrentPrice   *decimal.Decimal
	StockQuantity  *int
	BuyBoxStatus   *BuyBoxStatus
	LastSyncedAt   *time.Time
	LastRepricedAt *time.Time
}

// IsEmpty reports whether the patch would change nothing.
func (p *ProductPatch) IsEmpty() bool {
	return p.CurrentPrice == nil && p.StockQuantity == nil && p.BuyBoxStatus == nil &&
		p.LastSyncedAt == nil && p.LastRepricedAt == nil
}
