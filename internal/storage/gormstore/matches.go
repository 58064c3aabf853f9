package gormstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/models"
	"github.com/sirdesai22/padel-score/internal/storage"
	"gorm.io/gorm"
)

// InsertMatch relies on idx_matches_owner_live for the one-LIVE-per-owner
// rule, so two racing creates cannot both succeed.
func (s *Store) InsertMatch(ctx context.Context, m storage.Match) (storage.Match, error) {
	now := s.now()
	row := models.Match{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		Status:    string(m.Status),
		Won:       m.Won,
		PlayedAt:  m.PlayedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.PlayedAt.IsZero() {
		row.PlayedAt = now
	}

	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			// ids are random, so a LIVE insert can only collide on the owner index
			if m.Status == storage.StatusLive {
				return storage.Match{}, storage.ErrLiveMatchExists
			}
			return storage.Match{}, storage.ErrAlreadyExists
		}
		return storage.Match{}, fmt.Errorf("insert match: %w", err)
	}
	return toMatch(row), nil
}

func (s *Store) GetMatch(ctx context.Context, id uuid.UUID) (storage.Match, error) {
	var row models.Match
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return storage.Match{}, notFound(err)
	}
	return toMatch(row), nil
}

func (s *Store) GetLiveMatch(ctx context.Context, ownerID string) (storage.Match, error) {
	var row models.Match
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND status = ?", ownerID, string(storage.StatusLive)).
		First(&row).Error
	if err != nil {
		return storage.Match{}, notFound(err)
	}
	return toMatch(row), nil
}

func (s *Store) TransitionMatch(ctx context.Context, id uuid.UUID, from, to storage.Status, won *bool) (storage.Match, error) {
	var out storage.Match
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Match{}).
			Where("id = ? AND status = ?", id, string(from)).
			Updates(map[string]any{
				"status":     string(to),
				"won":        won,
				"updated_at": s.now(),
			})
		if res.Error != nil {
			return fmt.Errorf("transition match: %w", res.Error)
		}

		var row models.Match
		if err := tx.First(&row, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if res.RowsAffected == 0 {
			return storage.ErrStatusConflict
		}
		out = toMatch(row)
		return s.enqueue(tx, id, map[string]any{"status": row.Status})
	})
	return out, err
}
