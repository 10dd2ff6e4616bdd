package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"takealot_sync/models"
)

// SQLiteStore is the single-node store. Money is kept as TEXT so decimals
// round-trip exactly.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() {
	s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		sku TEXT NOT NULL,
		takealot_offer_id TEXT,
		title TEXT NOT NULL DEFAULT '',
		current_price TEXT NOT NULL DEFAULT '0',
		stock_quantity INTEGER NOT NULL DEFAULT 0,
		image_url TEXT,
		buy_box_status TEXT NOT NULL DEFAULT 'unknown',
		cost_price TEXT,
		last_synced_at DATETIME,
		last_repriced_at DATETIME,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS price_history (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		old_price TEXT NOT NULL,
		new_price TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS webhook_events (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		event_type TEXT NOT NULL,
		payload TEXT NOT NULL,
		signature_valid BOOLEAN NOT NULL DEFAULT FALSE,
		processed BOOLEAN NOT NULL DEFAULT FALSE,
		processing_error TEXT NOT NULL DEFAULT '',
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS sync_runs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		triggered_by TEXT NOT NULL,
		status TEXT NOT NULL,
		synced INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE UNIQUE INDEX IF NOT EXISTS uq_products_user_sku_active
		ON products(user_id, sku) WHERE is_active;
	CREATE UNIQUE INDEX IF NOT EXISTS uq_products_user_offer_active
		ON products(user_id, takealot_offer_id) WHERE is_active AND takealot_offer_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_products_offer ON products(takealot_offer_id);
	CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku);
	CREATE INDEX IF NOT EXISTS idx_price_history_product ON price_history(product_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_webhook_events_pending ON webhook_events(created_at) WHERE processed = 0;
	CREATE INDEX IF NOT EXISTS idx_sync_runs_user ON sync_runs(user_id, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Products
// =============================================================================

func scanSQLiteProduct(scan func(dest ...any) error) (*models.Product, error) {
	var p models.Product
	var buyBox string
	err := scan(
		&p.ID, &p.UserID, &p.SKU, &p.TakealotOfferID, &p.Title, &p.CurrentPrice, &p.StockQuantity,
		&p.ImageURL, &buyBox, &p.CostPrice, &p.LastSyncedAt, &p.LastRepricedAt,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	p.BuyBoxStatus = models.BuyBoxStatus(buyBox)
	return &p, nil
}

func (s *SQLiteStore) FindProductByKeys(ctx context.Context, userID uuid.UUID, sku, offerID string) (*models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE user_id = ?
			AND ((? <> '' AND sku = ?) OR (? <> '' AND takealot_offer_id = ?))
		` + productOrder

	row := s.db.QueryRowContext(ctx, query, userID.String(), sku, sku, offerID, offerID)
	return scanSQLiteProduct(row.Scan)
}

func (s *SQLiteStore) FindProductByOfferID(ctx context.Context, userID uuid.UUID, offerID string) (*models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE takealot_offer_id = ? AND (? = '' OR user_id = ?)
		` + productOrder

	tenant := sqliteTenant(userID)
	row := s.db.QueryRowContext(ctx, query, offerID, tenant, tenant)
	return scanSQLiteProduct(row.Scan)
}

func (s *SQLiteStore) FindProductBySKU(ctx context.Context, userID uuid.UUID, sku string) (*models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE sku = ? AND (? = '' OR user_id = ?)
		` + productOrder

	tenant := sqliteTenant(userID)
	row := s.db.QueryRowContext(ctx, query, sku, tenant, tenant)
	return scanSQLiteProduct(row.Scan)
}

func sqliteTenant(userID uuid.UUID) string {
	if userID == uuid.Nil {
		return ""
	}
	return userID.String()
}

func (s *SQLiteStore) GetProductForUser(ctx context.Context, userID, productID uuid.UUID) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ? AND user_id = ?`
	row := s.db.QueryRowContext(ctx, query, productID.String(), userID.String())
	return scanSQLiteProduct(row.Scan)
}

func (s *SQLiteStore) ListProducts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Product, error) {
	query := `SELECT ` + productColumns + `
		FROM products
		WHERE user_id = ?
		ORDER BY is_active DESC, title, created_at
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, query, userID.String(), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanSQLiteProduct(rows.Scan)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *SQLiteStore) InsertProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		p.ID.String(), p.UserID.String(), p.SKU, p.TakealotOfferID, p.Title, p.CurrentPrice.String(), p.StockQuantity,
		p.ImageURL, string(p.BuyBoxStatus), p.CostPrice, p.LastSyncedAt, p.LastRepricedAt,
		p.IsActive, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products SET
			title = ?, current_price = ?, stock_quantity = ?, takealot_offer_id = ?,
			image_url = ?, buy_box_status = ?, cost_price = ?, last_synced_at = ?,
			updated_at = ?
		WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query,
		p.Title, p.CurrentPrice.String(), p.StockQuantity, p.TakealotOfferID,
		p.ImageURL, string(p.BuyBoxStatus), p.CostPrice, p.LastSyncedAt, p.UpdatedAt,
		p.ID.String(),
	)
	if err != nil {
		return err
	}
	return requireRow(res, p.ID)
}

func (s *SQLiteStore) PatchProduct(ctx context.Context, productID uuid.UUID, patch models.ProductPatch) error {
	if patch.IsEmpty() {
		return nil
	}

	query := `
		UPDATE products SET
			current_price = COALESCE(?, current_price),
			stock_quantity = COALESCE(?, stock_quantity),
			buy_box_status = COALESCE(?, buy_box_status),
			last_synced_at = COALESCE(?, last_synced_at),
			last_repriced_at = COALESCE(?, last_repriced_at),
			updated_at = ?
		WHERE id = ?`

	var price, buyBox *string
	if patch.CurrentPrice != nil {
		v := patch.CurrentPrice.String()
		price = &v
	}
	if patch.BuyBoxStatus != nil {
		v := string(*patch.BuyBoxStatus)
		buyBox = &v
	}

	res, err := s.db.ExecContext(ctx, query,
		price, patch.StockQuantity, buyBox, patch.LastSyncedAt, patch.LastRepricedAt,
		time.Now().UTC(), productID.String(),
	)
	if err != nil {
		return err
	}
	return requireRow(res, productID)
}

func requireRow(res sql.Result, id uuid.UUID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("product %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// =============================================================================
// Price History
// =============================================================================

func (s *SQLiteStore) CreatePriceHistory(ctx context.Context, h *models.PriceHistory) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_history (id, product_id, old_price, new_price, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		h.ID.String(), h.ProductID.String(), h.OldPrice.String(), h.NewPrice.String(), h.Reason, h.CreatedAt,
	)
	return err
}

func (s *SQLiteStore) ListPriceHistory(ctx context.Context, productID uuid.UUID, limit int) ([]models.PriceHistory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, old_price, new_price, reason, created_at
		FROM price_history
		WHERE product_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, productID.String(), limit)
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

func nullableUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}

func (s *SQLiteStore) CreateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO webhook_events (
			id, user_id, event_type, payload, signature_valid, processed,
			processing_error, attempts, created_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), nullableUUID(e.UserID), e.EventType, string(e.Payload), e.SignatureValid, e.Processed,
		e.ProcessingError, e.Attempts, e.CreatedAt, e.ProcessedAt,
	)
	return err
}

func (s *SQLiteStore) UpdateWebhookEvent(ctx context.Context, e *models.WebhookEvent) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE webhook_events SET
			user_id = COALESCE(?, user_id), processed = ?, processing_error = ?,
			attempts = ?, processed_at = ?
		WHERE id = ?`,
		nullableUUID(e.UserID), e.Processed, e.ProcessingError, e.Attempts, e.ProcessedAt, e.ID.String(),
	)
	return err
}

func (s *SQLiteStore) GetPendingWebhookEvents(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.WebhookEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, event_type, payload, signature_valid, processed,
			processing_error, attempts, created_at, processed_at
		FROM webhook_events
		WHERE processed = 0 AND attempts < ? AND created_at < ?
		ORDER BY created_at
		LIMIT ?`, maxAttempts, olderThan.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.WebhookEvent
	for rows.Next() {
		var e models.WebhookEvent
		var payload string
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.EventType, &payload, &e.SignatureValid, &e.Processed,
			&e.ProcessingError, &e.Attempts, &e.CreatedAt, &e.ProcessedAt,
		); err != nil {
			return nil, err
		}
		e.Payload = json.RawMessage(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// =============================================================================
// Sync Runs
// =============================================================================

func (s *SQLiteStore) CreateSyncRun(ctx context.Context, run *models.SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, user_id, triggered_by, status, started_at)
		VALUES (?, ?, ?, ?, ?)`,
		run.ID.String(), run.UserID.String(), string(run.Trigger), string(run.Status), run.StartedAt,
	)
	return err
}

func (s *SQLiteStore) FinishSyncRun(ctx context.Context, run *models.SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs SET
			status = ?, synced = ?, created = ?, updated = ?, failed = ?,
			error = ?, finished_at = ?
		WHERE id = ?`,
		string(run.Status), run.Synced, run.Created, run.Updated, run.Failed, run.Error, run.FinishedAt,
		run.ID.String(),
	)
	return err
}

func (s *SQLiteStore) ListSyncRuns(ctx context.Context, userID uuid.UUID, limit int) ([]models.SyncRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, triggered_by, status, synced, created, updated, failed, error, started_at, finished_at
		FROM sync_runs WHERE user_id = ?
		ORDER BY started_at DESC
		LIMIT ?`, userID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SyncRun
	for rows.Next() {
		var r models.SyncRun
		var trigger, status string
		if err := rows.Scan(
			&r.ID, &r.UserID, &trigger, &status, &r.Synced, &r.Created, &r.Updated, &r.Failed,
			&r.Error, &r.StartedAt, &r.FinishedAt,
		); err != nil {
			return nil, err
		}
		r.Trigger = models.RunTrigger(trigger)
		r.Status = models.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
