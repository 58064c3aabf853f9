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

func (s *Store) CreateState(ctx context.Context, matchID uuid.UUID, state json.RawMessage) (storage.MatchState, error) {
	if _, err := s.GetMatch(ctx, matchID); err != nil {
		return storage.MatchState{}, err
	}
	row := models.MatchState{
		MatchID:   matchID,
		Version:   0,
		StateJSON: datatypes.JSON(state),
		UpdatedAt: s.now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return storage.MatchState{}, storage.ErrAlreadyExists
		}
		return storage.MatchState{}, fmt.Errorf("create state: %w", err)
	}
	return toState(row), nil
}

func (s *Store) GetState(ctx context.Context, matchID uuid.UUID) (storage.MatchState, error) {
	var row models.MatchState
	if err := s.db.WithContext(ctx).First(&row, "match_id = ?", matchID).Error; err != nil {
		return storage.MatchState{}, notFound(err)
	}
	return toState(row), nil
}

// CompareAndSwapState is one conditional UPDATE: the row changes only if its
// version still equals expectedVersion when the write lands. The row is then
// read back inside the same transaction, so a loser sees the winner's write.
func (s *Store) CompareAndSwapState(ctx context.Context, matchID uuid.UUID, expectedVersion int64, state json.RawMessage) (storage.CASResult, error) {
	var out storage.CASResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		res := tx.Model(&models.MatchState{}).
			Where("match_id = ? AND version = ?", matchID, expectedVersion).
			Updates(map[string]any{
				"version":    gorm.Expr("version + 1"),
				"state_json": datatypes.JSON(state),
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("compare and swap state: %w", res.Error)
		}

		var row models.MatchState
		if err := tx.First(&row, "match_id = ?", matchID).Error; err != nil {
			return notFound(err)
		}
		out = storage.CASResult{Applied: res.RowsAffected == 1, State: toState(row)}
		if !out.Applied {
			return nil
		}

		if err := tx.Model(&models.Match{}).Where("id = ?", matchID).Update("updated_at", now).Error; err != nil {
			return fmt.Errorf("touch match: %w", err)
		}
		return s.enqueue(tx, matchID, map[string]any{"version": row.Version})
	})
	if err != nil {
		return storage.CASResult{}, err
	}
	return out, nil
}
