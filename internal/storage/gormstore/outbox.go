package gormstore

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EntityMatch is the outbox entity type for match changes.
const EntityMatch = "match"

// Outbox operations. UPSERT reindexes the entity, DELETE drops it.
const (
	OpUpsert = "UPSERT"
	OpDelete = "DELETE"
)

// enqueue records a match change for the search sync. It must run on the same
// handle as the change itself so both commit together.
func (s *Store) enqueue(tx *gorm.DB, matchID uuid.UUID, payload any) error {
	if !s.outbox {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	event := models.Outbox{
		EntityType: EntityMatch,
		EntityID:   matchID,
		Op:         OpUpsert,
		Payload:    datatypes.JSON(data),
	}
	if err := tx.Create(&event).Error; err != nil {
		log.Printf("❌ Failed to create outbox event: %v", err)
		return err
	}
	return nil
}
