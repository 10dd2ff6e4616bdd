package storage

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"takealot_sync/models"
)

//go:embed migrations/postgres.sql
var postgresSchema string

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Migrate creates the tables if they don't exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// =============================================================================
// Products
// =============================================================================

const productColumns = `
	id, user_id, sku, takealot_offer_id, title, current_price, stock_quantity,
	image_url, buy_box_status, cost_price, last_synced_at, last_repriced_at,
	is_active, created_at, updated_at`

// Active rows first, then the oldest, so duplicate matches resolve the same
// way every time.
const productOrder = `ORDER BY is_active DESC, created_at ASC LIMIT 1`

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ID, &p.UserID, &p.SKU, &p.TakealotOfferID, &p.Title, &p.CurrentPrice, &p.StockQuantity,
		&p.ImageURL, &p.BuyBoxStatus, &p.CostPrice, &p.LastSyncedAt, &p.LastRepricedAt,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) FindProductByKeys(ctx context.Context, userID uuid.UUID, sku, offerID string) (*models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE user_id = $1
			AND (($2::text <> '' AND sku = $2::text) OR ($3::text <> '' AND takealot_offer_id = $3::text))
		` + productOrder

	return scanProduct(s.pool.QueryRow(ctx, query, userID, sku, offerID))
}

func (s *PostgresStore) FindProductByOfferID(ctx context.Context, userID uuid.UUID, offerID string) (*models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE takealot_offer_id = $1 AND ($2::uuid IS NULL OR user_id = $2::uuid)
		` + productOrder

	return scanProduct(s.pool.QueryRow(ctx, query, offerID, tenantArg(userID)))
}

func (s *PostgresStore) FindProductBySKU(ctx context.Context, userID uuid.UUID, sku string) (*models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE sku = $1 AND ($2::uuid IS NULL OR user_id = $2::uuid)
		` + productOrder

	return scanProduct(s.pool.QueryRow(ctx, query, sku, tenantArg(userID)))
}

// tenantArg maps uuid.Nil to NULL, meaning "any seller".
func tenantArg(userID uuid.UUID) *uuid.UUID {
	if userID == uuid.Nil {
		return nil
	}
	return &userID
}

func (s *PostgresStore) GetProductForUser(ctx context.Context, userID, productID uuid.UUID) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 AND user_id = $2`
	return scanProduct(s.pool.QueryRow(ctx, query, productID, userID))
}

func (s *PostgresStore) ListProducts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE user_id = $1
		ORDER BY is_active DESC, title, created_at
		LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *PostgresStore) InsertProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := s.pool.Exec(ctx, query,
		p.ID, p.UserID, p.SKU, p.TakealotOfferID, p.Title, p.CurrentPrice, p.StockQuantity,
		p.ImageURL, p.BuyBoxStatus, p.CostPrice, p.LastSyncedAt, p.LastRepricedAt,
		p.IsActive, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products SET
			title = $2, current_price = $3, stock_quantity = $4, takealot_offer_id = $5,
			image_url = $6, buy_box_status = $7, cost_price = $8, last_synced_at = $9,
			updated_at = $10
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		p.ID, p.Title, p.CurrentPrice, p.StockQuantity, p.TakealotOfferID,
		p.ImageURL, p.BuyBoxStatus, p.CostPrice, p.LastSyncedAt, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", p.ID, models.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) PatchProduct(ctx context.Context, productID uuid.UUID, patch models.ProductPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	query := `
		UPDATE products SET
			current_price = COALESCE($2, current_price),
			stock_quantity = COALESCE($3, stock_quantity),
			buy_box_status = COALESCE($4, buy_box_status),
			last_synced_at = COALESCE($5, last_synced_at),
			last_repriced_at = COALESCE($6, last_repriced_at),
			updated_at = NOW()
		WHERE id = $1`

	var buyBox *string
	if patch.BuyBoxStatus != nil {
		v := string(*patch.BuyBoxStatus)
		buyBox = &v
	}

	tag, err := s.pool.Exec(ctx, query,
		productID, patch.CurrentPrice, patch.StockQuantity, buyBox, patch.LastSyncedAt, patch.LastRepricedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product %s: %w", productID, models.ErrNotFound)
	}
	return nil
}

// =============================================================================
// Price History
// =============================================================================

func (s *PostgresStore) CreatePriceHistory(ctx context.Context, h *models.PriceHistory) error {
	query := `
		INSERT INTO price_history (id, product_id, old_price, new_price, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query, h.ID, h.ProductID, h.OldPrice, h.NewPrice, h.Reason, h.CreatedAt)
	return err
}

func (s *PostgresStore) ListPriceHistory(ctx context.Context, productID uuid.UUID, limit int) ([]models.PriceHistory, error) {
	query := `
		SELECT id, product_id, old_price, new_price, reason, created_at
		FROM price_history
		WHERE product_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.PriceHistory
	for rows.Next() {
		var h models.PriceHistory
		if err := rows.Scan(&h.ID, &h.ProductID, &h.OldPrice, &h.NewPrice, &h.Reason, &h.CreatedAt); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// =============================================================================
// Webhook Events
// =============================================================================

func (s *PostgresStore) CreateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	query := `
		INSERT INTO webhook_events (
			id, user_id, event_type, payload, signature_valid, processed,
			processing_error, attempts, created_at, processed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.UserID, e.EventType, e.Payload, e.SignatureValid, e.Processed,
		e.ProcessingError, e.Attempts, e.CreatedAt, e.ProcessedAt,
	)
	return err
}

func (s *PostgresStore) UpdateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	query := `
		UPDATE webhook_events SET
			user_id = COALESCE($2, user_id), processed = $3, processing_error = $4,
			attempts = $5, processed_at = $6
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		e.ID, e.UserID, e.Processed, e.ProcessingError, e.Attempts, e.ProcessedAt,
	)
	return err
}

func (s *PostgresStore) GetPendingWebhookEvents(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.WebhookEvent, error) {
	query := `
		SELECT id, user_id, event_type, payload, signature_valid, processed,
			processing_error, attempts, created_at, processed_at
		FROM webhook_events
		WHERE NOT processed AND attempts < $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, maxAttempts, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.WebhookEvent
	for rows.Next() {
		var e models.WebhookEvent
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.EventType, &e.Payload, &e.SignatureValid, &e.Processed,
			&e.ProcessingError, &e.Attempts, &e.CreatedAt, &e.ProcessedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// Sync Runs
// =============================================================================

func (s *PostgresStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	query := `
		INSERT INTO sync_runs (id, user_id, triggered_by, status, started_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.pool.Exec(ctx, query, run.ID, run.UserID, string(run.Trigger), string(run.Status), run.StartedAt)
	return err
}

func (s *PostgresStore) FinishSyncRun(ctx context.Context, run *models.SyncRun) error {
	query := `
		UPDATE sync_runs SET
			status = $2, synced = $3, created = $4, updated = $5, failed = $6,
			error = $7, finished_at = $8
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query,
		run.ID, string(run.Status), run.Synced, run.Created, run.Updated, run.Failed, run.Error, run.FinishedAt,
	)
	return err
}

func (s *PostgresStore) ListSyncRuns(ctx context.Context, userID uuid.UUID, limit int) ([]models.SyncRun, error) {
	query := `
		SELECT id, user_id, triggered_by, status, synced, created, updated, failed, error, started_at, finished_at
		FROM sync_runs
		WHERE user_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var r models.SyncRun
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.Trigger, &r.Status, &r.Synced, &r.Created, &r.Updated, &r.Failed,
			&r.Error, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
