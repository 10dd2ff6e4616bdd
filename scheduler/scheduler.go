package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"takealot_sync/config"
	"takealot_sync/models"
)

// Syncer runs one reconciliation pass for a seller.
type Syncer interface {
	Sync(ctx context.Context, userID uuid.UUID, trigger models.RunTrigger) (*models.SyncSummary, error)
}

// Scheduler runs the catalog sync for every configured seller on a cron
// expression or a fixed interval.
type Scheduler struct {
	cfg    config.SchedulerConfig
	syncer Syncer
	log    *zap.SugaredLogger
	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
	once   sync.Once

	// held while a pass runs so slow passes don't overlap
	running sync.Mutex
}

func New(cfg config.SchedulerConfig, syncer Syncer, log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Scheduler{
		cfg:    cfg,
		syncer: syncer,
		log:    log,
		cron:   cron.New(),
		stopCh: make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.cfg.Tenants) == 0 {
		if s.cfg.Cron != "" || s.cfg.Interval > 0 {
			s.log.Warn("sync schedule configured but SYNC_TENANTS is empty, scheduler disabled")
		}
		return nil
	}

	if s.cfg.Cron != "" {
		s.log.Infow("starting scheduler", "cron", s.cfg.Cron, "tenants", len(s.cfg.Tenants))
		_, err := s.cron.AddFunc(s.cfg.Cron, func() { s.RunAll(ctx) })
		if err != nil {
			return fmt.Errorf("%w: invalid cron expression: %v", models.ErrConfiguration, err)
		}
		s.cron.Start()
	} else if s.cfg.Interval > 0 {
		s.log.Infow("starting scheduler", "interval", s.cfg.Interval, "tenants", len(s.cfg.Tenants))
		s.ticker = time.NewTicker(s.cfg.Interval)
		go func() {
			for {
				select {
				case <-s.ticker.C:
					s.RunAll(ctx)
				case <-s.stopCh:
					return
				case <-ctx.Done():
					return
				}
			}
		}()
	} else {
		s.log.Info("no sync schedule configured, syncs only run on request")
	}

	return nil
}

func (s *Scheduler) Stop() {
	s.once.Do(func() {
		ctx := s.cron.Stop()
		<-ctx.Done()
		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
	})
}

// RunAll syncs each tenant in turn. A pass that fires while the previous
// one is still going is skipped.
func (s *Scheduler) RunAll(ctx context.Context) {
	if !s.running.TryLock() {
		s.log.Warn("previous scheduled sync still running, skipping")
		return
	}
	defer s.running.Unlock()

	for _, tenant := range s.cfg.Tenants {
		if ctx.Err() != nil {
			return
		}
		summary, err := s.syncer.Sync(ctx, tenant, models.TriggerSchedule)
		if err != nil {
			s.log.Errorw("scheduled sync failed", "user_id", tenant, "error", err)
			continue
		}
		s.log.Infow("scheduled sync complete", "user_id", tenant,
			"synced", summary.Synced, "created", summary.Created, "updated", summary.Updated, "failed", summary.Failed)
	}
}
