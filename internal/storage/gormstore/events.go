package gormstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/models"
	"github.com/sirdesai22/padel-score/internal/storage"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// nextSeqSQL bumps the per-match counter in one statement. The row lock it
// takes serializes concurrent appends for the same match.
const nextSeqSQL = `INSERT INTO match_event_seqs (match_id, last_seq) VALUES (?, 1)
ON CONFLICT (match_id) DO UPDATE SET last_seq = match_event_seqs.last_seq + 1
RETURNING last_seq`

func (s *Store) AppendEvent(ctx context.Context, matchID uuid.UUID, eventType storage.EventType, payload json.RawMessage) (storage.MatchEvent, error) {
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}

	var out storage.MatchEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Match{}).Where("id = ?", matchID).Count(&count).Error; err != nil {
			return fmt.Errorf("lookup match: %w", err)
		}
		if count == 0 {
			return storage.ErrNotFound
		}

		var seq int64
		if err := tx.Raw(nextSeqSQL, matchID).Scan(&seq).Error; err != nil {
			return fmt.Errorf("next event seq: %w", err)
		}
		if seq < 1 {
			return fmt.Errorf("next event seq: got %d", seq)
		}

		now := s.now()
		row := models.MatchEvent{
			ID:        uuid.New(),
			MatchID:   matchID,
			Seq:       seq,
			EventType: string(eventType),
			Payload:   datatypes.JSON(payload),
			CreatedAt: now,
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		if err := tx.Model(&models.Match{}).Where("id = ?", matchID).Update("updated_at", now).Error; err != nil {
			return fmt.Errorf("touch match: %w", err)
		}
		out = toEvent(row)
		return s.enqueue(tx, matchID, map[string]any{"seq": seq, "event_type": row.EventType})
	})
	if err != nil {
		return storage.MatchEvent{}, err
	}
	return out, nil
}

func (s *Store) ListEvents(ctx context.Context, matchID uuid.UUID, afterSeq int64, limit int) ([]storage.MatchEvent, error) {
	var rows []models.MatchEvent
	q := s.db.WithContext(ctx).
		Where("match_id = ? AND seq > ?", matchID, afterSeq).
		Order("seq ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]storage.MatchEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEvent(row))
	}
	return out, nil
}
