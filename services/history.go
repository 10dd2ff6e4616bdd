package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"takealot_sync/models"
)

// priceRecorder appends price history and fans the change out to the
// publisher. History is the source of truth; publishing is best-effort.
type priceRecorder struct {
	store     ProductStore
	publisher Publisher
	log       *zap.SugaredLogger
}

func (r *priceRecorder) record(ctx context.Context, p *models.Product, newPrice decimal.Decimal, reason string) error {
	now := time.Now().UTC()
	h := &models.PriceHistory{
		ID:        uuid.New(),
		ProductID: p.ID,
		OldPrice:  p.CurrentPrice,
		NewPrice:  newPrice,
		Reason:    reason,
		CreatedAt: now,
	}
	if err := r.store.CreatePriceHistory(ctx, h); err != nil {
		return fmt.Errorf("%w: price history: %v", models.ErrPersistence, err)
	}

	if r.publisher == nil {
		return nil
	}
	event := models.PriceChangedEvent{
		ProductID:  p.ID,
		UserID:     p.UserID,
		SKU:        p.SKU,
		OfferID:    p.OfferID(),
		OldPrice:   p.CurrentPrice,
		NewPrice:   newPrice,
		Reason:     reason,
		OccurredAt: now,
	}
	if err := r.publisher.PublishPriceChanged(ctx, event); err != nil {
		r.log.Warnw("publish price change failed", "product_id", p.ID, "error", err)
	}
	return nil
}

func orNop(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log
}
