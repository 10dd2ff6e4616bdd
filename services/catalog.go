package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"takealot_sync/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// CatalogService serves the read side: a seller's products, their price
// history and past sync runs.
type CatalogService struct {
	products ProductStore
	runs     RunStore
}

func NewCatalogService(products ProductStore, runs RunStore) *CatalogService {
	return &CatalogService{products: products, runs: runs}
}

// ListProducts pages through the seller's products, active first, then by title.
func (s *CatalogService) ListProducts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Product, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user", models.ErrUnauthorized)
	}
	if offset < 0 {
		offset = 0
	}
	products, err := s.products.ListProducts(ctx, userID, clampLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list products: %v", models.ErrPersistence, err)
	}
	if products == nil {
		products = []models.Product{}
	}
	return products, nil
}

// PriceHistory returns a product's history. Products owned by another
// seller are reported as not found.
func (s *CatalogService) PriceHistory(ctx context.Context, userID, productID uuid.UUID, limit int) ([]models.PriceHistory, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user", models.ErrUnauthorized)
	}

	product, err := s.products.GetProductForUser(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("%w: load product: %v", models.ErrPersistence, err)
	}
	if product == nil {
		return nil, fmt.Errorf("%w: product %s", models.ErrNotFound, productID)
	}

	history, err := s.products.ListPriceHistory(ctx, productID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: list price history: %v", models.ErrPersistence, err)
	}
	if history == nil {
		history = []models.PriceHistory{}
	}
	return history, nil
}

func (s *CatalogService) SyncRuns(ctx context.Context, userID uuid.UUID, limit int) ([]models.SyncRun, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user", models.ErrUnauthorized)
	}
	runs, err := s.runs.ListSyncRuns(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("%w: list sync runs: %v", models.ErrPersistence, err)
	}
	if runs == nil {
		runs = []models.SyncRun{}
	}
	return runs, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultPageSize
	case limit > maxPageSize:
		return maxPageSize
	default:
		return limit
	}
}
