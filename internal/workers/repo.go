// internal/workers/repo.go
// outbox claiming and DLQ writes shared by the sync and retry paths
package workers

import (
	"context"
	"log"
	"time"

	"github.com/sirdesai22/padel-score/internal/metrics"
	"github.com/sirdesai22/padel-score/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OutboxBatch struct{ Events []models.Outbox }

// FetchOutboxBatch claims up to limit unprocessed rows in id order and marks
// them processed. SKIP LOCKED lets several workers drain the table without
// claiming the same row twice.
func FetchOutboxBatch(ctx context.Context, db *gorm.DB, limit int) (OutboxBatch, error) {
	var evts []models.Outbox
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("processed = ?", false).
			Order("id ASC").
			Limit(limit).
			Find(&evts).Error
		if err != nil || len(evts) == 0 {
			return err
		}

		ids := make([]int64, 0, len(evts))
		for _, e := range evts {
			ids = append(ids, e.ID)
		}
		return tx.Model(&models.Outbox{}).Where("id IN ?", ids).Update("processed", true).Error
	})
	if err != nil {
		return OutboxBatch{}, err
	}
	for i := range evts {
		evts[i].Processed = true
	}
	return OutboxBatch{Events: evts}, nil
}

// PutDLQ inserts a failed outbox event into the DLQ table.
func PutDLQ(db *gorm.DB, ob models.Outbox, msg string) {
	metrics.DLQEvents.Inc()
	dlq := models.DLQ{
		OutboxID:   ob.ID,
		EntityType: ob.EntityType,
		EntityID:   ob.EntityID.String(),
		Op:         ob.Op,
		ErrorMsg:   msg,
		Payload:    ob.Payload,
		CreatedAt:  time.Now(),
	}
	if err := db.Create(&dlq).Error; err != nil {
		log.Printf("❌ Failed to insert into DLQ: %v", err)
	} else {
		log.Printf("💀 DLQ record created for outbox_id=%d", ob.ID)
	}
}
