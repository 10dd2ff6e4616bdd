package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"takealot_sync/models"
)

var errFakeWrite = errors.New("fake write failure")

type fakeStore struct {
	mu       sync.Mutex
	products map[uuid.UUID]*models.Product
	history  []models.PriceHistory
	events   map[uuid.UUID]*models.WebhookEvent
	runs     map[uuid.UUID]*models.SyncRun

	failHistory bool
	failPatch   bool
	failUpdate  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		products: make(map[uuid.UUID]*models.Product),
		events:   make(map[uuid.UUID]*models.WebhookEvent),
		runs:     make(map[uuid.UUID]*models.SyncRun),
	}
}

func (f *fakeStore) addProduct(userID uuid.UUID, sku, offerID string, price string) *models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	p := &models.Product{
		ID:           uuid.New(),
		UserID:       userID,
		SKU:          sku,
		Title:        "Existing " + sku,
		CurrentPrice: decimal.RequireFromString(price),
		BuyBoxStatus: models.BuyBoxUnknown,
		IsActive:     true,
		CreatedAt:    now.Add(-time.Duration(len(f.products)+1) * time.Hour),
		UpdatedAt:    now,
	}
	if offerID != "" {
		p.TakealotOfferID = strPtr(offerID)
	}
	f.products[p.ID] = p
	cp := *p
	return &cp
}

func (f *fakeStore) product(id uuid.UUID) *models.Product {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (f *fakeStore) historyFor(id uuid.UUID) []models.PriceHistory {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PriceHistory
	for _, h := range f.history {
		if h.ProductID == id {
			out = append(out, h)
		}
	}
	return out
}

func (f *fakeStore) first(match func(p *models.Product) bool) *models.Product {
	var found []*models.Product
	for _, p := range f.products {
		if match(p) {
			found = append(found, p)
		}
	}
	if len(found) == 0 {
		return nil
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].IsActive != found[j].IsActive {
			return found[i].IsActive
		}
		return found[i].CreatedAt.Before(found[j].CreatedAt)
	})
	cp := *found[0]
	return &cp
}

func (f *fakeStore) FindProductByKeys(ctx context.Context, userID uuid.UUID, sku, offerID string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.first(func(p *models.Product) bool {
		if p.UserID != userID {
			return false
		}
		return (sku != "" && p.SKU == sku) || (offerID != "" && p.OfferID() == offerID)
	}), nil
}

func (f *fakeStore) FindProductByOfferID(ctx context.Context, userID uuid.UUID, offerID string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.first(func(p *models.Product) bool {
		return (userID == uuid.Nil || p.UserID == userID) && p.OfferID() == offerID
	}), nil
}

func (f *fakeStore) FindProductBySKU(ctx context.Context, userID uuid.UUID, sku string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.first(func(p *models.Product) bool {
		return (userID == uuid.Nil || p.UserID == userID) && p.SKU == sku
	}), nil
}

func (f *fakeStore) GetProductForUser(ctx context.Context, userID, productID uuid.UUID) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[productID]
	if !ok || p.UserID != userID {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) ListProducts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, p := range f.products {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdate {
		return errFakeWrite
	}
	cp := *p
	f.products[p.ID] = &cp
	return nil
}

func (f *fakeStore) PatchProduct(ctx context.Context, productID uuid.UUID, patch models.ProductPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failPatch {
		return errFakeWrite
	}
	p, ok := f.products[productID]
	if !ok {
		return errors.New("no such product")
	}
	if patch.CurrentPrice != nil {
		p.CurrentPrice = *patch.CurrentPrice
	}
	if patch.StockQuantity != nil {
		p.StockQuantity = *patch.StockQuantity
	}
	if patch.BuyBoxStatus != nil {
		p.BuyBoxStatus = *patch.BuyBoxStatus
	}
	if patch.LastSyncedAt != nil {
		p.LastSyncedAt = patch.LastSyncedAt
	}
	if patch.LastRepricedAt != nil {
		p.LastRepricedAt = patch.LastRepricedAt
	}
	return nil
}

func (f *fakeStore) CreatePriceHistory(ctx context.Context, h *models.PriceHistory) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failHistory {
		return errFakeWrite
	}
	f.history = append(f.history, *h)
	return nil
}

func (f *fakeStore) ListPriceHistory(ctx context.Context, productID uuid.UUID, limit int) ([]models.PriceHistory, error) {
	return f.historyFor(productID), nil
}

func (f *fakeStore) CreateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *e
	f.events[e.ID] = &cp
	return nil
}

func (f *fakeStore) GetPendingWebhookEvents(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.WebhookEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WebhookEvent
	for _, e := range f.events {
		if !e.Processed && e.Attempts < maxAttempts && e.CreatedAt.Before(olderThan) {
			out = append(out, *e)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) event(id uuid.UUID) *models.WebhookEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok {
		return nil
	}
	cp := *e
	return &cp
}

func (f *fakeStore) eventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeStore) FinishSyncRun(ctx context.Context, run *models.SyncRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs[run.ID] = &cp
	return nil
}

func (f *fakeStore) ListSyncRuns(ctx context.Context, userID uuid.UUID, limit int) ([]models.SyncRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SyncRun
	for _, r := range f.runs {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close()                         {}

type fakeMarket struct {
	offers   []models.RemoteOffer
	fetchErr error
	patchErr map[string]error
	patched  map[string]decimal.Decimal
}

func (m *fakeMarket) FetchOffers(ctx context.Context) ([]models.RemoteOffer, error) {
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	return m.offers, nil
}

func (m *fakeMarket) PatchPrice(ctx context.Context, offerID string, price decimal.Decimal) error {
	if err, ok := m.patchErr[offerID]; ok {
		return err
	}
	if m.patched == nil {
		m.patched = make(map[string]decimal.Decimal)
	}
	m.patched[offerID] = price
	return nil
}

type recordingPublisher struct {
	events []models.PriceChangedEvent
}

func (p *recordingPublisher) PublishPriceChanged(ctx context.Context, e models.PriceChangedEvent) error {
	p.events = append(p.events, e)
	return nil
}

var _ Store = (*fakeStore)(nil)
