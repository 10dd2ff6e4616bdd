package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"takealot_sync/models"
)

func TestEncodePriceChanged(t *testing.T) {
	decimal.MarshalJSONWithoutQuotes = true
	defer func() { decimal.MarshalJSONWithoutQuotes = false }()

	event := models.PriceChangedEvent{
		ProductID:  uuid.New(),
		UserID:     uuid.New(),
		SKU:        "A1",
		OfferID:    "X",
		OldPrice:   decimal.NewFromInt(120),
		NewPrice:   decimal.NewFromInt(150),
		Reason:     models.ReasonSync,
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	body, err := Encode(event)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var decoded struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Type != EventPriceChanged {
		t.Fatalf("expected type %s, got %s", EventPriceChanged, decoded.Type)
	}
	if decoded.Data["new_price"] != float64(150) {
		t.Fatalf("expected numeric new_price, got %v", decoded.Data["new_price"])
	}
	if decoded.Data["sku"] != "A1" {
		t.Fatalf("unexpected sku %v", decoded.Data["sku"])
	}
}

func TestNoopPublisher(t *testing.T) {
	if err := (Noop{}).PublishPriceChanged(context.Background(), models.PriceChangedEvent{}); err != nil {
		t.Fatalf("noop returned error: %v", err)
	}
}
