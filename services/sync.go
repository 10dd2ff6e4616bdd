package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"takealot_sync/models"
)

// SyncService pulls a seller's offers from the marketplace and reconciles
// them, keeping an audit row per invocation.
type SyncService struct {
	market     Marketplace
	reconciler *Reconciler
	runs       RunStore
	log        *zap.SugaredLogger
}

func NewSyncService(market Marketplace, reconciler *Reconciler, runs RunStore, log *zap.SugaredLogger) *SyncService {
	return &SyncService{
		market:     market,
		reconciler: reconciler,
		runs:       runs,
		log:        orNop(log),
	}
}

// Sync runs one full pass for userID. Fetch and configuration failures
// fail the whole run; per-offer failures only show up in the summary.
func (s *SyncService) Sync(ctx context.Context, userID uuid.UUID, trigger models.RunTrigger) (*models.SyncSummary, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: missing user", models.ErrUnauthorized)
	}

	run := &models.SyncRun{
		ID:        uuid.New(),
		UserID:    userID,
		Trigger:   trigger,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := s.runs.CreateSyncRun(ctx, run); err != nil {
		// The audit row is not worth failing a sync over.
		s.log.Warnw("create sync run failed", "user_id", userID, "error", err)
		run = nil
	}

	s.log.Infow("sync started", "user_id", userID, "trigger", trigger)

	offers, err := s.market.FetchOffers(ctx)
	if err != nil {
		s.log.Errorw("fetch offers failed", "user_id", userID, "error", err)
		s.finish(ctx, run, nil, err)
		return nil, fmt.Errorf("fetch offers: %w", err)
	}

	s.log.Infow("fetched offers", "user_id", userID, "count", len(offers))

	summary := s.reconciler.Reconcile(ctx, userID, offers)
	s.finish(ctx, run, &summary, nil)

	s.log.Infow("sync complete",
		"user_id", userID,
		"synced", summary.Synced,
		"created", summary.Created,
		"updated", summary.Updated,
		"failed", summary.Failed,
	)
	return &summary, nil
}

func (s *SyncService) finish(ctx context.Context, run *models.SyncRun, summary *models.SyncSummary, runErr error) {
	if run == nil {
		return
	}

	now := time.Now().UTC()
	run.FinishedAt = &now
	if runErr != nil {
		run.Status = models.RunStatusFailed
		run.Error = runErr.Error()
	} else {
		run.Status = models.RunStatusCompleted
	}
	if summary != nil {
		run.Synced = summary.Synced
		run.Created = summary.Created
		run.Updated = summary.Updated
		run.Failed = summary.Failed
	}

	// Use a fresh context so a cancelled request still closes its run.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.runs.FinishSyncRun(finishCtx, run); err != nil {
		s.log.Warnw("finish sync run failed", "run_id", run.ID, "error", err)
	}
}
