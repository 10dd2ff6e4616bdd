package takealot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"takealot_sync/config"
	"takealot_sync/models"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func newTestClient(t *testing.T, srv *httptest.Server, apiKey string, pageSize int) *Client {
	t.Helper()
	cfg := config.TakealotConfig{
		BaseURL:  srv.URL,
		APIKey:   apiKey,
		PageSize: pageSize,
		Timeout:  5 * time.Second,
	}
	return NewClientWithHTTP(cfg, srv.Client())
}

func TestParseOffersResponse_Array(t *testing.T) {
	page, err := ParseOffersResponse(loadFixture(t, "offers_array.json"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if page.Shape != ShapeArray {
		t.Fatalf("expected array shape, got %s", page.Shape)
	}
	if len(page.Offers) != 2 {
		t.Fatalf("expected 2 offers, got %d", len(page.Offers))
	}

	first := page.Offers[0].normalize()
	if first.OfferID != "90112233" {
		t.Fatalf("expected numeric offer id as string, got %q", first.OfferID)
	}
	if first.Title != "USB-C Cable 2m" {
		t.Fatalf("expected trimmed title, got %q", first.Title)
	}
	if first.Price == nil || !first.Price.Equal(decimal.RequireFromString("149.99")) {
		t.Fatalf("expected selling_price 149.99, got %v", first.Price)
	}
	if first.StockQuantity == nil || *first.StockQuantity != 12 {
		t.Fatalf("expected leadtime 5 + warehouse 7 = 12, got %v", first.StockQuantity)
	}
	if first.BuyBoxStatus != models.BuyBoxWon {
		t.Fatalf("expected buy_box_winner to win over status, got %s", first.BuyBoxStatus)
	}

	second := page.Offers[1].normalize()
	if second.SKU != "5004411" {
		t.Fatalf("expected numeric sku as string, got %q", second.SKU)
	}
	if second.Price == nil || !second.Price.Equal(decimal.RequireFromString("89.5")) {
		t.Fatalf("expected price fallback 89.50, got %v", second.Price)
	}
	if second.StockQuantity == nil || *second.StockQuantity != 12 {
		t.Fatalf("expected explicit stock 12, got %v", second.StockQuantity)
	}
	if second.BuyBoxStatus != models.BuyBoxLost {
		t.Fatalf("expected lost, got %s", second.BuyBoxStatus)
	}
	if second.CostPrice == nil || !second.CostPrice.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("expected cost price 40, got %v", second.CostPrice)
	}
}

func TestParseOffersResponse_DataEnvelope(t *testing.T) {
	page, err := ParseOffersResponse(loadFixture(t, "offers_data.json"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if page.Shape != ShapeData {
		t.Fatalf("expected data shape, got %s", page.Shape)
	}

	offer := page.Offers[0].normalize()
	if offer.StockQuantity == nil || *offer.StockQuantity != 5 {
		t.Fatalf("expected warehouse_stock to take precedence over stock_at_takealot, got %v", offer.StockQuantity)
	}
	if offer.BuyBoxStatus != "" {
		t.Fatalf("expected no buy box when none reported, got %q", offer.BuyBoxStatus)
	}
}

func TestParseOffersResponse_OmittedStockIsUnset(t *testing.T) {
	page, err := ParseOffersResponse([]byte(`{"offers":[{"sku":"A1","offer_id":"9","selling_price":10},{"sku":"B2","leadtime_stock":0}]}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	if got := page.Offers[0].normalize().StockQuantity; got != nil {
		t.Fatalf("expected no stock when none reported, got %d", *got)
	}
	if got := page.Offers[1].normalize().StockQuantity; got == nil || *got != 0 {
		t.Fatalf("expected reported zero leadtime stock, got %v", got)
	}
}

func TestParseOffersResponse_Unrecognized(t *testing.T) {
	page, err := ParseOffersResponse(loadFixture(t, "offers_unrecognized.json"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if page.Shape != ShapeUnrecognized {
		t.Fatalf("expected unrecognized shape, got %s", page.Shape)
	}

	if _, err := ParseOffersResponse([]byte(`{"offers": [`)); err == nil {
		t.Fatalf("expected malformed JSON to fail")
	}
}

func TestFetchOffers_MissingKeySkipsNetwork(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, "", 100)
	_, err := client.FetchOffers(context.Background())
	if !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("expected no request without an API key")
	}
}

func TestFetchOffers_Pages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Key secret" {
			t.Errorf("unexpected auth header %q", got)
		}
		if r.URL.Path != "/v2/offers" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		pageNum := r.URL.Query().Get("page_number")
		if r.URL.Query().Get("page_size") != "2" {
			t.Errorf("expected page_size 2, got %s", r.URL.Query().Get("page_size"))
		}

		var ids []int
		switch pageNum {
		case "1":
			ids = []int{1, 2}
		case "2":
			ids = []int{3}
		default:
			t.Errorf("unexpected page %s", pageNum)
		}

		offers := make([]map[string]any, 0, len(ids))
		for _, id := range ids {
			offers = append(offers, map[string]any{
				"offer_id":      id,
				"sku":           fmt.Sprintf("SKU-%d", id),
				"selling_price": 10 * id,
			})
		}
		json.NewEncoder(w).Encode(map[string]any{
			"offers":        offers,
			"total_results": 3,
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, "secret", 2)
	offers, err := client.FetchOffers(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(offers) != 3 {
		t.Fatalf("expected 3 offers across pages, got %d", len(offers))
	}
	if offers[2].SKU != "SKU-3" {
		t.Fatalf("unexpected last offer %+v", offers[2])
	}
}

func TestFetchOffers_UnrecognizedShapeIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": []}`))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, "secret", 100)
	_, err := client.FetchOffers(context.Background())
	if !errors.Is(err, ErrUnrecognizedShape) {
		t.Fatalf("expected unrecognized shape error, got %v", err)
	}
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected shape error to be an upstream error")
	}
}

func TestFetchOffers_UpstreamStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(strings.Repeat("x", 4096)))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, "secret", 100)
	_, err := client.FetchOffers(context.Background())

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", upstream.StatusCode)
	}
	if len(upstream.Body) != maxErrorBody {
		t.Fatalf("expected body truncated to %d bytes, got %d", maxErrorBody, len(upstream.Body))
	}
	if upstream.Error() != "Takealot API error: 502" {
		t.Fatalf("unexpected message %q", upstream.Error())
	}
}

func TestPatchPrice(t *testing.T) {
	var gotBody map[string]json.Number
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("expected PATCH, got %s", r.Method)
		}
		if r.URL.Path != "/v2/offers/offer/90112233" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		data, _ := io.ReadAll(r.Body)
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.UseNumber()
		if err := dec.Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, "secret", 100)
	if err := client.PatchPrice(context.Background(), "90112233", decimal.RequireFromString("129.90")); err != nil {
		t.Fatalf("patch failed: %v", err)
	}
	if gotBody["selling_price"] != "129.9" {
		t.Fatalf("expected selling_price 129.9 as a JSON number, got %v", gotBody)
	}
}

func TestPatchPrice_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, "secret", 100)
	if err := client.PatchPrice(context.Background(), "", decimal.NewFromInt(10)); !errors.Is(err, models.ErrMissingOfferID) {
		t.Fatalf("expected missing offer id, got %v", err)
	}

	err := client.PatchPrice(context.Background(), "1", decimal.NewFromInt(10))
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if err.Error() != "Takealot API error: 422" {
		t.Fatalf("unexpected message %q", err.Error())
	}

	unconfigured := newTestClient(t, srv, "", 100)
	if err := unconfigured.PatchPrice(context.Background(), "1", decimal.NewFromInt(10)); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
