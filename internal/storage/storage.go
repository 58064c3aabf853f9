// Package storage defines persistence contracts for matches, their versioned
// state rows and their append-only event logs.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrLiveMatchExists indicates the owner already has a LIVE match.
	ErrLiveMatchExists = errors.New("owner already has a live match")
	// ErrStatusConflict indicates a transition was attempted from the wrong status.
	ErrStatusConflict = errors.New("match status conflict")
)

// Status is the lifecycle state of a match.
type Status string

const (
	StatusLive      Status = "LIVE"
	StatusFinished  Status = "FINISHED"
	StatusAbandoned Status = "ABANDONED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusAbandoned
}

// EventType classifies a match event.
type EventType string

const (
	EventStart    EventType = "START"
	EventPoint    EventType = "POINT"
	EventUndo     EventType = "UNDO"
	EventMatchEnd EventType = "MATCH_END"
)

// Match is the identity and lifecycle record of one scoring session.
type Match struct {
	ID        uuid.UUID
	OwnerID   string
	Status    Status
	Won       *bool
	PlayedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MatchState is the single versioned state row of a match.
type MatchState struct {
	MatchID   uuid.UUID
	Version   int64
	State     json.RawMessage
	UpdatedAt time.Time
}

// MatchEvent is one immutable entry of a match event log.
type MatchEvent struct {
	ID        uuid.UUID
	MatchID   uuid.UUID
	Seq       int64
	Type      EventType
	Payload   json.RawMessage
	CreatedAt time.Time
}

// CASResult is the outcome of a compare-and-swap on a state row. When Applied
// is false, State holds the authoritative current row.
type CASResult struct {
	Applied bool
	State   MatchState
}

// User is a player profile keyed by the caller-supplied identifier.
type User struct {
	ID        string
	Name      *string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MatchStore persists match identity and lifecycle.
type MatchStore interface {
	// InsertMatch stores a new match. It returns ErrLiveMatchExists when the
	// owner already holds a LIVE match.
	InsertMatch(ctx context.Context, m Match) (Match, error)
	GetMatch(ctx context.Context, id uuid.UUID) (Match, error)
	GetLiveMatch(ctx context.Context, ownerID string) (Match, error)
	// TransitionMatch moves a match from one status to another. It returns
	// ErrStatusConflict when the match is no longer in the from status.
	TransitionMatch(ctx context.Context, id uuid.UUID, from, to Status, won *bool) (Match, error)
}

// StateStore persists versioned match state rows.
type StateStore interface {
	CreateState(ctx context.Context, matchID uuid.UUID, state json.RawMessage) (MatchState, error)
	GetState(ctx context.Context, matchID uuid.UUID) (MatchState, error)
	CompareAndSwapState(ctx context.Context, matchID uuid.UUID, expectedVersion int64, state json.RawMessage) (CASResult, error)
}

// EventLog persists append-only match events.
type EventLog interface {
	AppendEvent(ctx context.Context, matchID uuid.UUID, eventType EventType, payload json.RawMessage) (MatchEvent, error)
	// ListEvents returns events with seq greater than afterSeq in seq order.
	// A non-positive limit returns all of them.
	ListEvents(ctx context.Context, matchID uuid.UUID, afterSeq int64, limit int) ([]MatchEvent, error)
}

// UserStore persists player profiles.
type UserStore interface {
	// UpsertUser returns ErrAlreadyExists when the email belongs to another user.
	UpsertUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// Store is the full backend used by the match service.
type Store interface {
	MatchStore
	StateStore
	EventLog
	UserStore

	// InTx runs fn against a transactional view of the store. The view is
	// committed when fn returns nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
