// internal/workers/sync_worker.go
package workers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/elastic"
	"github.com/sirdesai22/padel-score/internal/metrics"
	"github.com/sirdesai22/padel-score/internal/models"
	"github.com/sirdesai22/padel-score/internal/storage/gormstore"
	"gorm.io/gorm"
)

// SyncWorker mirrors match changes recorded in the outbox into Elasticsearch.
type SyncWorker struct {
	DB        *gorm.DB
	ES        *es.Client
	Interval  time.Duration
	BatchSize int
}

func (w *SyncWorker) Run(ctx context.Context) error {
	if err := elastic.EnsureIndexes(ctx, w.ES); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.processOnce(ctx); err != nil {
				log.Printf("worker error: %v", err)
			}
		}
	}
}

func (w *SyncWorker) newBulkIndexer() (esutil.BulkIndexer, error) {
	return esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client: w.ES, Index: "", FlushBytes: 5 << 20, NumWorkers: 2,
	})
}

func (w *SyncWorker) processOnce(ctx context.Context) error {
	batch, err := FetchOutboxBatch(ctx, w.DB, w.BatchSize)
	if err != nil {
		return err
	}
	if len(batch.Events) == 0 {
		return nil
	}

	bi, err := w.newBulkIndexer()
	if err != nil {
		return err
	}

	toDLQ := func(e models.Outbox, msg string) {
		metrics.FailedEvents.Inc()
		PutDLQ(w.DB, e, msg)
		log.Printf("💀 DLQ created for outbox_id=%d entity=%s id=%s reason=%s", e.ID, e.EntityType, e.EntityID, msg)
	}
	for _, e := range batch.Events {
		if err := w.applyEvent(ctx, bi, e, toDLQ); err != nil {
			// already marked processed, so the DLQ is the only way back
			metrics.FailedEvents.Inc()
			PutDLQ(w.DB, e, err.Error())
			log.Printf("DLQ outbox_id=%d: %v", e.ID, err)
			continue
		}
		metrics.ProcessedEvents.Inc()
	}

	if err := bi.Close(ctx); err != nil {
		return err
	}
	stats := bi.Stats()
	log.Printf("bulk ok=%d failed=%d", stats.NumFlushed, stats.NumFailed)
	return nil
}

// ApplyEvent indexes a single outbox row and waits for the flush. A bulk
// failure is returned instead of being written to the DLQ.
func (w *SyncWorker) ApplyEvent(ctx context.Context, e models.Outbox) error {
	bi, err := w.newBulkIndexer()
	if err != nil {
		return err
	}

	var mu sync.Mutex
	var failure string
	onFail := func(_ models.Outbox, msg string) {
		mu.Lock()
		defer mu.Unlock()
		failure = msg
	}
	if err := w.applyEvent(ctx, bi, e, onFail); err != nil {
		_ = bi.Close(ctx)
		return err
	}
	if err := bi.Close(ctx); err != nil {
		return err
	}
	if stats := bi.Stats(); stats.NumFailed > 0 {
		mu.Lock()
		defer mu.Unlock()
		return fmt.Errorf("bulk index failed for outbox_id=%d: %s", e.ID, failure)
	}
	return nil
}

func (w *SyncWorker) applyEvent(ctx context.Context, bi esutil.BulkIndexer, e models.Outbox, onFail func(models.Outbox, string)) error {
	switch e.EntityType {
	case gormstore.EntityMatch:
		if e.Op == gormstore.OpDelete {
			return w.add(ctx, bi, elastic.IdxMatches, e, "delete", nil, onFail)
		}
		doc, err := w.buildMatchDoc(ctx, e.EntityID)
		if err != nil {
			return err
		}
		return w.add(ctx, bi, elastic.IdxMatches, e, "index", doc, onFail)
	}
	return fmt.Errorf("unknown entity_type=%s", e.EntityType)
}

func (w *SyncWorker) buildMatchDoc(ctx context.Context, matchID uuid.UUID) ([]byte, error) {
	db := w.DB.WithContext(ctx)

	var m models.Match
	if err := db.First(&m, "id = ?", matchID).Error; err != nil {
		return nil, err
	}
	var st models.MatchState
	if err := db.First(&st, "match_id = ?", matchID).Error; err != nil {
		return nil, err
	}
	var last models.MatchEvent
	err := db.Where("match_id = ?", matchID).Order("seq DESC").First(&last).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return elastic.BuildMatchDoc(m, st, nil)
	case err != nil:
		return nil, err
	}
	return elastic.BuildMatchDoc(m, st, &last)
}

func (w *SyncWorker) add(ctx context.Context, bi esutil.BulkIndexer, index string, e models.Outbox, action string, body []byte, onFail func(models.Outbox, string)) error {
	docID := e.EntityID.String()
	item := esutil.BulkIndexerItem{
		Action:     action,
		DocumentID: docID,
		Index:      index,
		OnSuccess: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem) {
			log.Printf("✅ synced %s id=%s", index, docID)
		},
		OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
			msg := ""
			switch {
			case err != nil:
				msg = err.Error()
			case res.Error.Reason != "":
				msg = fmt.Sprintf("%s: %s", res.Error.Type, res.Error.Reason)
			default:
				msg = fmt.Sprintf("status=%d failed to index", res.Status)
			}
			onFail(models.Outbox{
				ID:         e.ID,
				EntityType: indexToEntity(index),
				EntityID:   e.EntityID,
				Op:         e.Op,
				Payload:    e.Payload,
			}, msg)
		},
	}

	if len(body) > 0 {
		item.Body = bytes.NewReader(body)
	}
	return bi.Add(ctx, item)
}

func indexToEntity(index string) string {
	switch index {
	case elastic.IdxMatches:
		return gormstore.EntityMatch
	default:
		return "unknown"
	}
}
