package gormstore

import (
	"context"
	"fmt"

	"github.com/sirdesai22/padel-score/internal/models"
	"github.com/sirdesai22/padel-score/internal/storage"
	"gorm.io/gorm/clause"
)

func (s *Store) UpsertUser(ctx context.Context, u storage.User) (storage.User, error) {
	now := s.now()
	row := models.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		if isUniqueViolation(err) {
			return storage.User{}, storage.ErrAlreadyExists
		}
		return storage.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id string) (storage.User, error) {
	var row models.User
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return storage.User{}, notFound(err)
	}
	return toUser(row), nil
}
