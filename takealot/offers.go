package takealot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"takealot_sync/models"
)

// Shape identifies which envelope an offers response used.
type Shape int

const (
	ShapeUnrecognized Shape = iota
	ShapeArray
	ShapeData
	ShapeOffers
	ShapeResults
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeData:
		return "data"
	case ShapeOffers:
		return "offers"
	case ShapeResults:
		return "results"
	default:
		return "unrecognized"
	}
}

// OffersPage is one decoded offers response.
type OffersPage struct {
	Shape        Shape
	Offers       []rawOffer
	TotalResults int
}

// envelope keys in lookup order
var envelopeKeys = []struct {
	key   string
	shape Shape
}{
	{"offers", ShapeOffers},
	{"data", ShapeData},
	{"results", ShapeResults},
}

// ParseOffersResponse decodes an offers listing. The API has returned a
// bare array as well as objects wrapping the list under "offers", "data"
// or "results". Anything else comes back tagged ShapeUnrecognized with no
// error; only malformed JSON is an error.
func ParseOffersResponse(body []byte) (OffersPage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return OffersPage{}, nil
	}

	switch body[0] {
	case '[':
		var offers []rawOffer
		if err := json.Unmarshal(body, &offers); err != nil {
			return OffersPage{}, fmt.Errorf("decode offers array: %w", err)
		}
		return OffersPage{Shape: ShapeArray, Offers: offers, TotalResults: len(offers)}, nil
	case '{':
	default:
		return OffersPage{}, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return OffersPage{}, fmt.Errorf("decode offers object: %w", err)
	}

	for _, env := range envelopeKeys {
		raw, ok := obj[env.key]
		if !ok {
			continue
		}
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}

		var offers []rawOffer
		if err := json.Unmarshal(raw, &offers); err != nil {
			return OffersPage{}, fmt.Errorf("decode %s: %w", env.key, err)
		}

		page := OffersPage{Shape: env.shape, Offers: offers, TotalResults: len(offers)}
		if total, ok := obj["total_results"]; ok {
			var n int
			if err := json.Unmarshal(total, &n); err == nil && n > page.TotalResults {
				page.TotalResults = n
			}
		}
		return page, nil
	}

	return OffersPage{}, nil
}

type rawOffer struct {
	OfferID         models.ExternalID `json:"offer_id"`
	SKU             models.ExternalID `json:"sku"`
	Title           string            `json:"title"`
	SellingPrice    *decimal.Decimal  `json:"selling_price"`
	Price           *decimal.Decimal  `json:"price"`
	Stock           stockCount        `json:"stock"`
	LeadtimeStock   stockCount        `json:"leadtime_stock"`
	WarehouseStock  stockCount        `json:"warehouse_stock"`
	StockAtTakealot stockCount        `json:"stock_at_takealot"`
	ImageURL        string            `json:"image_url"`
	BuyBoxWinner    *bool             `json:"buy_box_winner"`
	BuyBoxStatus    string            `json:"buy_box_status"`
	CostPrice       *decimal.Decimal  `json:"cost_price"`
}

func (r *rawOffer) normalize() models.RemoteOffer {
	offer := models.RemoteOffer{
		OfferID:   strings.TrimSpace(r.OfferID.String()),
		SKU:       strings.TrimSpace(r.SKU.String()),
		Title:     strings.TrimSpace(r.Title),
		ImageURL:  r.ImageURL,
		CostPrice: r.CostPrice,
	}

	switch {
	case r.SellingPrice != nil:
		offer.Price = r.SellingPrice
	case r.Price != nil:
		offer.Price = r.Price
	}

	if r.Stock.set {
		n := r.Stock.n
		offer.StockQuantity = &n
	} else {
		warehouse := r.WarehouseStock
		if !warehouse.set {
			warehouse = r.StockAtTakealot
		}
		if r.LeadtimeStock.set || warehouse.set {
			n := r.LeadtimeStock.n + warehouse.n
			offer.StockQuantity = &n
		}
	}

	if r.BuyBoxWinner != nil {
		offer.BuyBoxStatus = models.BuyBoxFromFlag(*r.BuyBoxWinner)
	} else {
		offer.BuyBoxStatus = models.ParseBuyBoxStatus(r.BuyBoxStatus)
	}

	return offer
}

// stockCount accepts a plain quantity or a per-warehouse breakdown such as
// [{"quantity_available": 3}, {"quantity_available": 1}].
type stockCount struct {
	n   int
	set bool
}

func (s *stockCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '[' {
		var parts []json.RawMessage
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		for _, part := range parts {
			var qty stockCount
			if err := qty.UnmarshalJSON(part); err != nil {
				return err
			}
			s.n += qty.n
		}
		s.set = true
		return nil
	}

	if data[0] == '{' {
		var item struct {
			QuantityAvailable *int `json:"quantity_available"`
			Quantity          *int `json:"quantity"`
		}
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		switch {
		case item.QuantityAvailable != nil:
			s.n = *item.QuantityAvailable
		case item.Quantity != nil:
			s.n = *item.Quantity
		}
		s.set = true
		return nil
	}

	var n json.Number
	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		n = json.Number(strings.TrimSpace(str))
	} else if err := json.Unmarshal(data, &n); err != nil {
		return err
	}

	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("stock quantity %q: %w", n, err)
	}
	s.n = int(f)
	s.set = true
	return nil
}
