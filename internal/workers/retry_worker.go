package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/metrics"
	"github.com/sirdesai22/padel-score/internal/models"
)

// ScheduleDLQRetry starts a scheduler that replays unresolved DLQ rows every
// interval. The caller shuts the scheduler down.
func (w *SyncWorker) ScheduleDLQRetry(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if err := w.RetryDLQ(ctx); err != nil {
				log.Printf("DLQ retry error: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule dlq retry: %w", err)
	}
	sched.Start()
	return sched, nil
}

// RetryDLQ replays one page of unresolved DLQ rows.
func (w *SyncWorker) RetryDLQ(ctx context.Context) error {
	var dlqs []models.DLQ
	if err := w.DB.WithContext(ctx).Where("resolved = ?", false).Order("id ASC").Limit(50).Find(&dlqs).Error; err != nil {
		return fmt.Errorf("dlq fetch: %w", err)
	}
	for _, d := range dlqs {
		log.Printf("♻️ Retrying DLQ id=%d entity=%s op=%s", d.ID, d.EntityType, d.Op)
		if err := w.RetryOne(ctx, d); err != nil {
			log.Printf("DLQ id=%d still failing: %v", d.ID, err)
			continue
		}
		log.Printf("✅ DLQ id=%d resolved", d.ID)
	}
	return nil
}

// RetryOne reapplies a DLQ row and marks it resolved on success. Failures
// bump the attempt counter.
func (w *SyncWorker) RetryOne(ctx context.Context, d models.DLQ) error {
	entityID, err := uuid.Parse(d.EntityID)
	if err != nil {
		return fmt.Errorf("dlq id=%d entity id: %w", d.ID, err)
	}
	ob := models.Outbox{
		ID:         d.OutboxID,
		EntityType: d.EntityType,
		EntityID:   entityID,
		Op:         d.Op,
		Payload:    d.Payload,
	}

	now := time.Now()
	if applyErr := w.ApplyEvent(ctx, ob); applyErr != nil {
		err := w.DB.WithContext(ctx).Model(&models.DLQ{}).Where("id = ?", d.ID).Updates(map[string]any{
			"attempts":   d.Attempts + 1,
			"error_msg":  applyErr.Error(),
			"retried_at": &now,
		}).Error
		if err != nil {
			return fmt.Errorf("dlq id=%d record attempt: %w (retry failed: %v)", d.ID, err, applyErr)
		}
		return applyErr
	}
	err = w.DB.WithContext(ctx).Model(&models.DLQ{}).Where("id = ?", d.ID).Updates(map[string]any{
		"resolved":   true,
		"attempts":   d.Attempts + 1,
		"retried_at": &now,
	}).Error
	if err != nil {
		return fmt.Errorf("dlq id=%d mark resolved: %w", d.ID, err)
	}
	metrics.ProcessedEvents.Inc()
	return nil
}
