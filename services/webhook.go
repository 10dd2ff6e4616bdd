package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"takealot_sync/models"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "X-Takealot-Signature"

var errNoWebhookKeys = errors.New("no offer_id or sku provided")

type WebhookConfig struct {
	Secret   string
	TenantID uuid.UUID // uuid.Nil matches products of any seller
}

// WebhookService records marketplace notifications and applies them to the
// matching product.
type WebhookService struct {
	cfg      WebhookConfig
	products ProductStore
	events   WebhookStore
	archive  PayloadArchiver
	history  *priceRecorder
	log      *zap.SugaredLogger
}

func NewWebhookService(cfg WebhookConfig, products ProductStore, events WebhookStore, archive PayloadArchiver, publisher Publisher, log *zap.SugaredLogger) *WebhookService {
	log = orNop(log)
	return &WebhookService{
		cfg:      cfg,
		products: products,
		events:   events,
		archive:  archive,
		history:  &priceRecorder{store: products, publisher: publisher, log: log},
		log:      log,
	}
}

// Ingest verifies, stores and then applies one webhook delivery. A bad or
// missing signature is rejected before anything is written. An unmatched
// product is not an error.
func (s *WebhookService) Ingest(ctx context.Context, body []byte, signature string) (*models.WebhookResult, error) {
	verified := false
	if s.cfg.Secret != "" {
		if strings.TrimSpace(signature) == "" {
			s.log.Warnw("webhook rejected", "reason", "missing signature")
			return nil, fmt.Errorf("%w: missing signature", models.ErrUnauthorized)
		}
		if !VerifySignature(s.cfg.Secret, body, signature) {
			s.log.Warnw("webhook rejected", "reason", "invalid signature")
			return nil, fmt.Errorf("%w: invalid signature", models.ErrUnauthorized)
		}
		verified = true
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON payload: %v", models.ErrInvalidRequest, err)
	}

	event := &models.WebhookEvent{
		ID:             uuid.New(),
		EventType:      eventType(&payload),
		Payload:        json.RawMessage(body),
		SignatureValid: verified,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.events.CreateWebhookEvent(ctx, event); err != nil {
		s.log.Errorw("persist webhook event failed", "event_type", event.EventType, "error", err)
		return nil, fmt.Errorf("%w: webhook event: %v", models.ErrPersistence, err)
	}

	s.archivePayload(ctx, event)

	return s.apply(ctx, event, &payload)
}

// Reprocess applies a previously stored event again.
func (s *WebhookService) Reprocess(ctx context.Context, event *models.WebhookEvent) (*models.WebhookResult, error) {
	var payload models.WebhookPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		// Retrying a body that doesn't parse will never succeed.
		s.markProcessed(ctx, event, fmt.Sprintf("invalid payload: %v", err))
		return nil, fmt.Errorf("%w: stored payload: %v", models.ErrInvalidRequest, err)
	}
	return s.apply(ctx, event, &payload)
}

func (s *WebhookService) apply(ctx context.Context, event *models.WebhookEvent, payload *models.WebhookPayload) (*models.WebhookResult, error) {
	result := &models.WebhookResult{EventID: event.ID}

	offerID := strings.TrimSpace(payload.OfferID.String())
	sku := strings.TrimSpace(payload.SKU.String())
	if offerID == "" && sku == "" {
		s.markProcessed(ctx, event, errNoWebhookKeys.Error())
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidRequest, errNoWebhookKeys)
	}

	product, err := s.match(ctx, offerID, sku)
	if err != nil {
		s.markFailed(ctx, event, err)
		return nil, fmt.Errorf("match product: %w", err)
	}
	if product == nil {
		s.log.Infow("webhook product not found", "event_id", event.ID, "offer_id", offerID, "sku", sku)
		s.markProcessed(ctx, event, "")
		return result, nil
	}

	result.Matched = true
	result.ProductID = &product.ID
	event.UserID = &product.UserID

	now := time.Now().UTC()
	patch := models.ProductPatch{LastSyncedAt: &now}

	if payload.Price != nil {
		if !payload.Price.Equal(product.CurrentPrice) {
			reason := models.ReasonWebhookPrefix + event.EventType
			if err := s.history.record(ctx, product, *payload.Price, reason); err != nil {
				s.markFailed(ctx, event, err)
				return nil, err
			}
		}
		patch.CurrentPrice = payload.Price
	}
	if payload.Stock != nil {
		patch.StockQuantity = payload.Stock
	}
	if status, ok := payload.BuyBox(); ok {
		patch.BuyBoxStatus = &status
	}

	if err := s.products.PatchProduct(ctx, product.ID, patch); err != nil {
		err = fmt.Errorf("%w: patch product: %v", models.ErrPersistence, err)
		s.markFailed(ctx, event, err)
		return nil, err
	}

	s.markProcessed(ctx, event, "")
	result.Updated = true

	s.log.Infow("webhook applied",
		"event_id", event.ID,
		"event_type", event.EventType,
		"product_id", product.ID,
	)
	return result, nil
}

func (s *WebhookService) match(ctx context.Context, offerID, sku string) (*models.Product, error) {
	if offerID != "" {
		p, err := s.products.FindProductByOfferID(ctx, s.cfg.TenantID, offerID)
		if err != nil || p != nil {
			return p, err
		}
	}
	if sku != "" {
		return s.products.FindProductBySKU(ctx, s.cfg.TenantID, sku)
	}
	return nil, nil
}

func (s *WebhookService) markProcessed(ctx context.Context, event *models.WebhookEvent, processingErr string) {
	now := time.Now().UTC()
	event.Processed = true
	event.ProcessedAt = &now
	event.ProcessingError = processingErr
	if err := s.events.UpdateWebhookEvent(ctx, event); err != nil {
		s.log.Errorw("update webhook event failed", "event_id", event.ID, "error", err)
	}
}

// markFailed leaves the event pending so the replay worker retries it.
func (s *WebhookService) markFailed(ctx context.Context, event *models.WebhookEvent, cause error) {
	s.log.Errorw("webhook apply failed", "event_id", event.ID, "attempt", event.Attempts+1, "error", cause)
	event.Processed = false
	event.Attempts++
	event.ProcessingError = cause.Error()
	if err := s.events.UpdateWebhookEvent(ctx, event); err != nil {
		s.log.Errorw("update webhook event failed", "event_id", event.ID, "error", err)
	}
}

func (s *WebhookService) archivePayload(ctx context.Context, event *models.WebhookEvent) {
	if s.archive == nil {
		return
	}
	key := fmt.Sprintf("webhooks/%s/%s.json", event.CreatedAt.Format("2006/01/02"), event.ID)
	if err := s.archive.Archive(ctx, key, event.Payload); err != nil {
		s.log.Warnw("archive webhook payload failed", "event_id", event.ID, "key", key, "error", err)
	}
}

func eventType(p *models.WebhookPayload) string {
	if t := strings.TrimSpace(p.EventType); t != "" {
		return t
	}
	return "unknown"
}

// VerifySignature checks a hex HMAC-SHA256 signature of body. An optional
// "sha256=" prefix is accepted and hex case is ignored.
func VerifySignature(secret string, body []byte, signature string) bool {
	sig := strings.ToLower(strings.TrimSpace(signature))
	sig = strings.TrimPrefix(sig, "sha256=")

	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// SignPayload returns the signature VerifySignature expects.
func SignPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
