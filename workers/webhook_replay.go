package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"takealot_sync/models"
)

// Events younger than this may still be in flight on the request path.
const replayGrace = time.Minute

type PendingWebhooks interface {
	GetPendingWebhookEvents(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.WebhookEvent, error)
}

type Reprocessor interface {
	Reprocess(ctx context.Context, event *models.WebhookEvent) (*models.WebhookResult, error)
}

type ReplayConfig struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

// ReplayStats summarises one replay batch
type ReplayStats struct {
	Found     int `json:"found"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Dropped   int `json:"dropped"`
}

// WebhookReplayWorker retries webhook events that were stored but could
// not be applied, until they succeed or run out of attempts.
type WebhookReplayWorker struct {
	events    PendingWebhooks
	processor Reprocessor
	cfg       ReplayConfig
	triggerCh chan struct{}
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewWebhookReplayWorker(events PendingWebhooks, processor Reprocessor, cfg ReplayConfig, log *zap.SugaredLogger) *WebhookReplayWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &WebhookReplayWorker{
		events:    events,
		processor: processor,
		cfg:       cfg,
		triggerCh: make(chan struct{}, 1),
		log:       log,
		now:       time.Now,
	}
}

// Trigger causes the worker to run immediately
func (w *WebhookReplayWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *WebhookReplayWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("webhook replay worker stopping")
			return
		case <-ticker.C:
			w.runBatch(ctx)
		case <-w.triggerCh:
			w.log.Info("webhook replay worker triggered manually")
			w.runBatch(ctx)
		}
	}
}

func (w *WebhookReplayWorker) runBatch(ctx context.Context) {
	if _, err := w.ReplayOnce(ctx); err != nil {
		w.log.Errorw("webhook replay failed", "error", err)
	}
}

// ReplayOnce reprocesses one batch of pending events.
func (w *WebhookReplayWorker) ReplayOnce(ctx context.Context) (ReplayStats, error) {
	var stats ReplayStats

	events, err := w.events.GetPendingWebhookEvents(ctx, w.now().Add(-replayGrace), w.cfg.MaxAttempts, w.cfg.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("load pending webhooks: %w", err)
	}
	stats.Found = len(events)
	if len(events) == 0 {
		return stats, nil
	}

	w.log.Infow("replaying webhook events", "count", len(events))

	for i := range events {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		event := &events[i]
		_, err := w.processor.Reprocess(ctx, event)
		switch {
		case err == nil:
			stats.Succeeded++
		case errors.Is(err, models.ErrInvalidRequest):
			// marked processed with an error; will not come back
			stats.Dropped++
			w.log.Warnw("webhook event dropped", "event_id", event.ID, "error", err)
		default:
			// Reprocess has already counted this attempt on the event.
			stats.Failed++
			w.log.Warnw("webhook replay attempt failed", "event_id", event.ID, "attempts", event.Attempts, "error", err)
		}
	}

	w.log.Infow("webhook replay finished", "succeeded", stats.Succeeded, "failed", stats.Failed, "dropped", stats.Dropped)
	return stats, nil
}
