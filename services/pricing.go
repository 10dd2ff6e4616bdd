package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"takealot_sync/models"
)

var errLoadProduct = errors.New("failed to load product")

// PricingService pushes new selling prices to the marketplace and mirrors
// them locally.
type PricingService struct {
	market  Marketplace
	store   ProductStore
	history *priceRecorder
	log     *zap.SugaredLogger
}

func NewPricingService(market Marketplace, store ProductStore, publisher Publisher, log *zap.SugaredLogger) *PricingService {
	log = orNop(log)
	return &PricingService{
		market:  market,
		store:   store,
		history: &priceRecorder{store: store, publisher: publisher, log: log},
		log:     log,
	}
}

// PushPrices handles every update independently. Nothing is rolled back;
// the summary reports which items made it. Only a configuration error
// stops the batch.
func (s *PricingService) PushPrices(ctx context.Context, userID uuid.UUID, updates []models.PriceUpdate) (*models.PriceUpdateSummary, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: updates must be a non-empty list", models.ErrInvalidRequest)
	}

	summary := &models.PriceUpdateSummary{
		Results: make([]models.PriceUpdateResult, 0, len(updates)),
		Total:   len(updates),
	}

	for _, u := range updates {
		res, err := s.pushOne(ctx, userID, u)
		if errors.Is(err, models.ErrConfiguration) {
			return nil, err
		}
		if err != nil {
			s.log.Errorw("price update failed", "user_id", userID, "product_id", u.ProductID, "error", err)
			res.Success = false
			res.Error = itemMessage(err)
			summary.Failed++
		} else {
			summary.Succeeded++
		}
		summary.Results = append(summary.Results, res)
	}

	s.log.Infow("price push complete",
		"user_id", userID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (s *PricingService) pushOne(ctx context.Context, userID uuid.UUID, u models.PriceUpdate) (models.PriceUpdateResult, error) {
	res := models.PriceUpdateResult{ProductID: u.ProductID}

	product, err := s.store.GetProductForUser(ctx, userID, u.ProductID)
	if err != nil {
		return res, fmt.Errorf("%w: %v", errLoadProduct, err)
	}
	if product == nil {
		return res, fmt.Errorf("%w: Product not found", models.ErrNotFound)
	}

	oldPrice := product.CurrentPrice
	res.OldPrice = &oldPrice

	offerID := product.OfferID()
	if offerID == "" {
		return res, models.ErrMissingOfferID
	}
	if !u.NewPrice.IsPositive() {
		return res, fmt.Errorf("%w: invalid price %s", models.ErrInvalidRequest, u.NewPrice)
	}

	if err := s.market.PatchPrice(ctx, offerID, u.NewPrice); err != nil {
		return res, err
	}

	newPrice := u.NewPrice
	res.NewPrice = &newPrice

	// The marketplace already has the new price from here on; local
	// failures are reported but cannot be undone remotely. A push is an
	// explicit repricing, so it is recorded even when the price is unchanged.
	if err := s.history.record(ctx, product, newPrice, models.ReasonRepricing); err != nil {
		return res, err
	}

	now := time.Now().UTC()
	patch := models.ProductPatch{
		CurrentPrice:   &newPrice,
		LastRepricedAt: &now,
	}
	if err := s.store.PatchProduct(ctx, product.ID, patch); err != nil {
		return res, fmt.Errorf("%w: update product: %v", models.ErrPersistence, err)
	}

	res.Success = true
	return res, nil
}

// itemMessage is the caller-visible reason for a failed item.
func itemMessage(err error) string {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return "Product not found"
	case errors.Is(err, models.ErrMissingOfferID):
		return "No Takealot offer ID"
	case errors.Is(err, models.ErrInvalidRequest):
		return "invalid price"
	case errors.Is(err, errLoadProduct):
		return errLoadProduct.Error()
	case errors.Is(err, models.ErrPersistence):
		return "price updated on Takealot but local save failed"
	default:
		// UpstreamError already renders as "Takealot API error: <status>".
		return err.Error()
	}
}
