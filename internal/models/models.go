package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ---------------- USERS ----------------
type User struct {
	ID        string  `gorm:"primaryKey"`
	Name      *string
	Email     *string `gorm:"uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ---------------- MATCHES ----------------
// At most one LIVE match per owner: the partial unique index enforces it.
type Match struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerID   string    `gorm:"not null;index:idx_matches_owner;uniqueIndex:idx_matches_owner_live,where:status = 'LIVE'"`
	Status    string    `gorm:"type:varchar(16);not null;check:chk_matches_status,status IN ('LIVE','FINISHED','ABANDONED')"`
	Won       *bool
	PlayedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ---------------- MATCH STATE (1:1 with Match) ----------------
type MatchState struct {
	MatchID   uuid.UUID      `gorm:"type:uuid;primaryKey"`
	Version   int64          `gorm:"not null"`
	StateJSON datatypes.JSON `gorm:"column:state_json;not null"`
	UpdatedAt time.Time
}

// ---------------- MATCH EVENTS (append-only) ----------------
type MatchEvent struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey"`
	MatchID   uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_match_events_match_seq,priority:1"`
	Seq       int64          `gorm:"not null;uniqueIndex:idx_match_events_match_seq,priority:2"`
	EventType string         `gorm:"type:varchar(32);not null"`
	Payload   datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time
}

// MatchEventSeq is the per-match sequence counter. Appends bump LastSeq with a
// single upsert so concurrent writers never share a seq.
type MatchEventSeq struct {
	MatchID uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastSeq int64     `gorm:"not null"`
}

// ---------------- OUTBOX (for search sync) ----------------
type Outbox struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	EntityType string    `gorm:"index;not null"`
	EntityID   uuid.UUID `gorm:"type:uuid;not null"`
	Op         string    `gorm:"not null"` // UPSERT | DELETE
	Payload    datatypes.JSON
	CreatedAt  time.Time
	Processed  bool `gorm:"default:false"`
}
