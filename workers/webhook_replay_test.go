package workers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"takealot_sync/models"
)

type stubPending struct {
	events      []models.WebhookEvent
	olderThan   time.Time
	maxAttempts int
	limit       int
}

func (s *stubPending) GetPendingWebhookEvents(ctx context.Context, olderThan time.Time, maxAttempts, limit int) ([]models.WebhookEvent, error) {
	s.olderThan, s.maxAttempts, s.limit = olderThan, maxAttempts, limit
	return s.events, nil
}

type stubProcessor struct {
	errs map[uuid.UUID]error
	seen []uuid.UUID
}

func (p *stubProcessor) Reprocess(ctx context.Context, event *models.WebhookEvent) (*models.WebhookResult, error) {
	p.seen = append(p.seen, event.ID)
	if err := p.errs[event.ID]; err != nil {
		if !errors.Is(err, models.ErrInvalidRequest) {
			event.Attempts++
		}
		return nil, err
	}
	return &models.WebhookResult{EventID: event.ID, Matched: true, Updated: true}, nil
}

func TestReplayOnce(t *testing.T) {
	ok, broken, transient := uuid.New(), uuid.New(), uuid.New()
	pending := &stubPending{events: []models.WebhookEvent{{ID: ok}, {ID: broken}, {ID: transient, Attempts: 2}}}
	processor := &stubProcessor{errs: map[uuid.UUID]error{
		broken:    fmt.Errorf("%w: stored payload", models.ErrInvalidRequest),
		transient: errors.New("database is locked"),
	}}

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w := NewWebhookReplayWorker(pending, processor, ReplayConfig{BatchSize: 10, MaxAttempts: 3}, nil)
	w.now = func() time.Time { return now }

	stats, err := w.ReplayOnce(context.Background())
	if err != nil {
		t.Fatalf("replay: %v", err)
	}

	if stats.Found != 3 || stats.Succeeded != 1 || stats.Dropped != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(processor.seen) != 3 {
		t.Fatalf("expected every event reprocessed, got %d", len(processor.seen))
	}
	if !pending.olderThan.Equal(now.Add(-replayGrace)) || pending.maxAttempts != 3 || pending.limit != 10 {
		t.Fatalf("unexpected query args %v %d %d", pending.olderThan, pending.maxAttempts, pending.limit)
	}
}

func TestReplayOnceLogsAttemptCountOnce(t *testing.T) {
	transient := uuid.New()
	pending := &stubPending{events: []models.WebhookEvent{{ID: transient, Attempts: 2}}}
	processor := &stubProcessor{errs: map[uuid.UUID]error{transient: errors.New("database is locked")}}

	core, logs := observer.New(zapcore.WarnLevel)
	w := NewWebhookReplayWorker(pending, processor, ReplayConfig{MaxAttempts: 5}, zap.New(core).Sugar())

	if _, err := w.ReplayOnce(context.Background()); err != nil {
		t.Fatalf("replay: %v", err)
	}

	entries := logs.FilterMessage("webhook replay attempt failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one failure log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["attempts"]; got != int64(3) {
		t.Fatalf("expected attempts 3, got %v", got)
	}
}

func TestReplayRunStopsOnCancel(t *testing.T) {
	pending := &stubPending{}
	w := NewWebhookReplayWorker(pending, &stubProcessor{}, ReplayConfig{Interval: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	w.Trigger()
	w.Trigger() // coalesced
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
}
