package takealot

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
	"strings"

	"github.com/shopspring/decimal"

	"takealot_sync/config"
	"takealot_sync/httputil"
	"takealot_sync/models"
)

const (
	offersPath     = "/v2/offers"
	offerPathFmt   = "/v2/offers/offer/%s"
	maxErrorBody   = 1024
	maxOfferPages  = 1000
	defaultPerPage = 100
)

var (
	// ErrUpstream matches every failure reported by the marketplace.
	ErrUpstream = errors.New("takealot upstream error")
	// ErrUnrecognizedShape is returned when an offers response matches no
	// known envelope.
	ErrUnrecognizedShape = fmt.Errorf("%w: unrecognized offers response shape", ErrUpstream)
)

// UpstreamError is a non-2xx answer from the marketplace API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Takealot API error: %d", e.StatusCode)
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Client talks to the Takealot seller API.
type Client struct {
	baseURL    string
	apiKey     string
	pageSize   int
	httpClient *http.Client
}

func NewClient(cfg config.TakealotConfig) *Client {
	return NewClientWithHTTP(cfg, httputil.NewAPIClient(cfg.Timeout, cfg.ProxyURL))
}

func NewClientWithHTTP(cfg config.TakealotConfig, httpClient *http.Client) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPerPage
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		pageSize:   pageSize,
		httpClient: httpClient,
	}
}

// Configured reports whether an API key is available.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// FetchOffers lists every offer on the seller account, following pages
// until the reported total is reached or a short page comes back.
func (c *Client) FetchOffers(ctx context.Context) ([]models.RemoteOffer, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("%w: TAKEALOT_API_KEY not configured", models.ErrConfiguration)
	}

	var offers []models.RemoteOffer
	for pageNum := 1; pageNum <= maxOfferPages; pageNum++ {
		page, err := c.fetchOffersPage(ctx, pageNum)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", pageNum, err)
		}

		for i := range page.Offers {
			offers = append(offers, page.Offers[i].normalize())
		}

		// Only the paged envelope carries a total; the other shapes are
		// always a single response.
		if page.Shape != ShapeOffers || len(page.Offers) < c.pageSize || len(offers) >= page.TotalResults {
			break
		}
	}

	return offers, nil
}

func (c *Client) fetchOffersPage(ctx context.Context, pageNum int) (OffersPage, error) {
	q := url.Values{}
	q.Set("page_number", strconv.Itoa(pageNum))
	q.Set("page_size", strconv.Itoa(c.pageSize))

	body, err := c.do(ctx, http.MethodGet, c.baseURL+offersPath+"?"+q.Encode(), nil)
	if err != nil {
		return OffersPage{}, err
	}

	page, err := ParseOffersResponse(body)
	if err != nil {
		return OffersPage{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	if page.Shape == ShapeUnrecognized {
		return OffersPage{}, ErrUnrecognizedShape
	}
	return page, nil
}

// PatchPrice sets the selling price of one offer.
func (c *Client) PatchPrice(ctx context.Context, offerID string, price decimal.Decimal) error {
	if !c.Configured() {
		return fmt.Errorf("%w: TAKEALOT_API_KEY not configured", models.ErrConfiguration)
	}
	if offerID == "" {
		return models.ErrMissingOfferID
	}

	payload := map[string]json.Number{
		"selling_price": json.Number(price.String()),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal price: %w", err)
	}

	endpoint := c.baseURL + fmt.Sprintf(offerPathFmt, url.PathEscape(offerID))
	_, err = c.do(ctx, http.MethodPatch, endpoint, data)
	return err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(respBody) > maxErrorBody {
			respBody = respBody[:maxErrorBody]
		}
		return nil, &UpstreamError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return respBody, nil
}
