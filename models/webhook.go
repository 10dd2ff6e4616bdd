package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WebhookEvent is the append-only audit log of inbound marketplace notifications
type WebhookEvent struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	UserID          *uuid.UUID      `json:"user_id" db:"user_id"`
	EventType       string          `json:"event_type" db:"event_type"`
	Payload         json.RawMessage `json:"payload" db:"payload"`
	SignatureValid  bool            `json:"signature_valid" db:"signature_valid"`
	Processed       bool            `json:"processed" db:"processed"`
	ProcessingError string          `json:"processing_error" db:"processing_error"`
	Attempts        int             `json:"attempts" db:"attempts"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt     *time.Time      `json:"processed_at" db:"processed_at"`
}

// WebhookPayload is the body the marketplace posts. Every field except
// event_type is optional and only present fields are applied.
type WebhookPayload struct {
	EventType    string           `json:"event_type"`
	OfferID      ExternalID       `json:"offer_id"`
	SKU          ExternalID       `json:"sku"`
	Price        *decimal.Decimal `json:"price"`
	Stock        *int             `json:"stock"`
	BuyBoxWinner *bool            `json:"buy_box_winner"`
	BuyBoxStatus *string          `json:"buy_box_status"`
	Timestamp    string           `json:"timestamp"`
}

// BuyBox resolves the reported buy box state. The boolean flag wins over
// the status string when both are sent.
func (p *WebhookPayload) BuyBox() (BuyBoxStatus, bool) {
	if p.BuyBoxWinner != nil {
		return BuyBoxFromFlag(*p.BuyBoxWinner), true
	}
	if p.BuyBoxStatus != nil {
		if s := ParseBuyBoxStatus(*p.BuyBoxStatus); s != "" {
			return s, true
		}
	}
	return "", false
}

// WebhookResult is what a single ingestion did
type WebhookResult struct {
	EventID   uuid.UUID  `json:"event_id"`
	Matched   bool       `json:"matched"`
	Updated   bool       `json:"updated"`
	ProductID *uuid.UUID `json:"product_id,omitempty"`
}
