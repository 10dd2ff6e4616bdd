package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"takealot_sync/models"
)

// ProductStore is the product and price history persistence used by the
// services. Lookups return (nil, nil) on a miss.
type ProductStore interface {
	// FindProductByKeys matches sku OR offer id within one seller. When
	// several rows match, active rows win, then the oldest.
	FindProductByKeys(ctx context.Context, userID uuid.UUID, sku, offerID string) (*models.Product, error)
	// FindProductByOfferID and FindProductBySKU search every seller when
	// userID is uuid.Nil.
	FindProductByOfferID(ctx context.Context, userID uuid.UUID, offerID string) (*models.Product, error)
	FindProductBySKU(ctx context.Context, userID uuid.UUID, sku string) (*models.Product, error)
	GetProductForUser(ctx context.Context, userID, productID uuid.UUID) (*models.Product, error)
	ListProducts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Product, error)
	InsertProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	PatchProduct(ctx context.Context, productID uuid.UUID, patch models.ProductPatch) error

	CreatePriceHistory(ctx context.Context, h *models.PriceHistory) error
	ListPriceHistory(ctx context.Context, productID uuid.UUID, limit int) ([]models.PriceHistory, error)
}

type WebhookStore interface {
	CreateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error
	UpdateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error
	GetPendingWebhookEvents(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.WebhookEvent, error)
}

type RunStore interface {
	CreateSyncRun(ctx context.Context, run *models.SyncRun) error
	FinishSyncRun(ctx context.Context, run *models.SyncRun) error
	ListSyncRuns(ctx context.Context, userID uuid.UUID, limit int) ([]models.SyncRun, error)
}

// Store is everything a backing database provides.
type Store interface {
	ProductStore
	WebhookStore
	RunStore
	Ping(ctx context.Context) error
	Close()
}

// Marketplace is the remote seller API.
type Marketplace interface {
	FetchOffers(ctx context.Context) ([]models.RemoteOffer, error)
	PatchPrice(ctx context.Context, offerID string, price decimal.Decimal) error
}

// Publisher receives price change notifications for downstream consumers.
type Publisher interface {
	PublishPriceChanged(ctx context.Context, event models.PriceChangedEvent) error
}

// PayloadArchiver keeps a copy of raw inbound payloads.
type PayloadArchiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}
