package gormstore

import (
	"encoding/json"

	"github.com/sirdesai22/padel-score/internal/models"
	"github.com/sirdesai22/padel-score/internal/storage"
)

func toMatch(row models.Match) storage.Match {
	return storage.Match{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Status:    storage.Status(row.Status),
		Won:       row.Won,
		PlayedAt:  row.PlayedAt,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func toState(row models.MatchState) storage.MatchState {
	return storage.MatchState{
		MatchID:   row.MatchID,
		Version:   row.Version,
		State:     json.RawMessage(row.StateJSON),
		UpdatedAt: row.UpdatedAt,
	}
}

func toEvent(row models.MatchEvent) storage.MatchEvent {
	return storage.MatchEvent{
		ID:        row.ID,
		MatchID:   row.MatchID,
		Seq:       row.Seq,
		Type:      storage.EventType(row.EventType),
		Payload:   json.RawMessage(row.Payload),
		CreatedAt: row.CreatedAt,
	}
}

func toUser(row models.User) storage.User {
	return storage.User{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
