package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"takealot_sync/models"
)

var errNoOfferKeys = errors.New("offer has neither sku nor offer_id")

// Reconciler merges remote offers into a seller's local products.
type Reconciler struct {
	store   ProductStore
	history *priceRecorder
	log     *zap.SugaredLogger
}

func NewReconciler(store ProductStore, publisher Publisher, log *zap.SugaredLogger) *Reconciler {
	log = orNop(log)
	return &Reconciler{
		store:   store,
		history: &priceRecorder{store: store, publisher: publisher, log: log},
		log:     log,
	}
}

// Reconcile applies every offer independently. A failing offer is logged
// and reported in the summary; the rest of the batch still runs.
func (r *Reconciler) Reconcile(ctx context.Context, userID uuid.UUID, offers []models.RemoteOffer) models.SyncSummary {
	var summary models.SyncSummary

	for i := range offers {
		offer := &offers[i]

		created, err := r.reconcileOffer(ctx, userID, offer)
		if err != nil {
			r.log.Errorw("reconcile offer failed",
				"user_id", userID, "sku", offer.SKU, "offer_id", offer.OfferID, "error", err)
			summary.Failed++
			summary.Errors = append(summary.Errors, models.ItemError{
				SKU:     offer.SKU,
				OfferID: offer.OfferID,
				Error:   err.Error(),
			})
			continue
		}

		if created {
			summary.Created++
		} else {
			summary.Updated++
		}
		summary.Synced++
	}

	return summary
}

func (r *Reconciler) reconcileOffer(ctx context.Context, userID uuid.UUID, offer *models.RemoteOffer) (bool, error) {
	if offer.SKU == "" && offer.OfferID == "" {
		return false, errNoOfferKeys
	}

	existing, err := r.store.FindProductByKeys(ctx, userID, offer.SKU, offer.OfferID)
	if err != nil {
		return false, fmt.Errorf("lookup product: %w", err)
	}

	if existing == nil {
		return true, r.create(ctx, userID, offer)
	}
	return false, r.update(ctx, existing, offer)
}

func (r *Reconciler) create(ctx context.Context, userID uuid.UUID, offer *models.RemoteOffer) error {
	now := time.Now().UTC()

	sku := offer.SKU
	if sku == "" {
		sku = offer.OfferID
	}

	p := &models.Product{
		ID:           uuid.New(),
		UserID:       userID,
		SKU:          sku,
		Title:        offer.Title,
		BuyBoxStatus: offer.BuyBoxStatus,
		LastSyncedAt: &now,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if offer.Price != nil {
		p.CurrentPrice = *offer.Price
	}
	if offer.StockQuantity != nil {
		p.StockQuantity = *offer.StockQuantity
	}
	if offer.OfferID != "" {
		p.TakealotOfferID = strPtr(offer.OfferID)
	}
	if offer.ImageURL != "" {
		p.ImageURL = strPtr(offer.ImageURL)
	}
	if p.BuyBoxStatus == "" {
		p.BuyBoxStatus = models.BuyBoxUnknown
	}
	if offer.CostPrice != nil {
		p.CostPrice = decimal.NewNullDecimal(*offer.CostPrice)
	}

	if err := r.store.InsertProduct(ctx, p); err != nil {
		return fmt.Errorf("%w: insert product: %v", models.ErrPersistence, err)
	}
	return nil
}

func (r *Reconciler) update(ctx context.Context, existing *models.Product, offer *models.RemoteOffer) error {
	now := time.Now().UTC()

	// History goes in before the product moves; if it can't be written
	// the product keeps its old price.
	if offer.Price != nil && !offer.Price.Equal(existing.CurrentPrice) {
		if err := r.history.record(ctx, existing, *offer.Price, models.ReasonSync); err != nil {
			return err
		}
	}

	p := *existing
	if offer.Title != "" {
		p.Title = offer.Title
	}
	if offer.Price != nil {
		p.CurrentPrice = *offer.Price
	}
	if offer.StockQuantity != nil {
		p.StockQuantity = *offer.StockQuantity
	}
	if offer.OfferID != "" {
		p.TakealotOfferID = strPtr(offer.OfferID)
	}
	if offer.ImageURL != "" {
		p.ImageURL = strPtr(offer.ImageURL)
	}
	if offer.BuyBoxStatus != "" {
		p.BuyBoxStatus = offer.BuyBoxStatus
	}
	if offer.CostPrice != nil {
		p.CostPrice = decimal.NewNullDecimal(*offer.CostPrice)
	}
	p.LastSyncedAt = &now
	p.UpdatedAt = now

	if err := r.store.UpdateProduct(ctx, &p); err != nil {
		return fmt.Errorf("%w: update product: %v", models.ErrPersistence, err)
	}
	*existing = p
	return nil
}

func strPtr(s string) *string {
	return &s
}
