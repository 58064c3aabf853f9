// Package match coordinates the match lifecycle guard, the versioned state
// store and the event log into the operations exposed over HTTP.
package match

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/metrics"
	"github.com/sirdesai22/padel-score/internal/storage"
)

// MaxEventPage bounds one event history read.
const MaxEventPage = 1000

// createAttempts bounds how often Create retries after losing an insert race.
const createAttempts = 5

// Service is stateless; every call reads and writes through the store.
type Service struct {
	store storage.Store
}

// NewService returns a Service backed by store.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// Snapshot is the externally visible view of a match and its current state.
type Snapshot struct {
	MatchID uuid.UUID
	Status  storage.Status
	Version int64
	State   json.RawMessage
	Won     *bool
}

func snapshot(m storage.Match, st storage.MatchState) Snapshot {
	return Snapshot{
		MatchID: m.ID,
		Status:  m.Status,
		Version: st.Version,
		State:   st.State,
		Won:     m.Won,
	}
}

// CreateParams describes a new match.
type CreateParams struct {
	OwnerID      string
	Mode         string
	GoldenPoint  bool
	Players      []string
	InitialState json.RawMessage
}

// CreateResult is the match returned by Create. Created is false when the
// owner already had a live match and that one was returned instead.
type CreateResult struct {
	Snapshot
	Created bool
}

// Create returns the owner's live match, or creates one with its version 0
// state row and START event in a single transaction.
func (s *Service) Create(ctx context.Context, p CreateParams) (CreateResult, error) {
	if err := checkOwner(p.OwnerID); err != nil {
		return CreateResult{}, err
	}
	if absent(p.InitialState) {
		p.InitialState = nil
	}
	if len(p.InitialState) > 0 && !json.Valid(p.InitialState) {
		return CreateResult{}, fmt.Errorf("initial state is not valid json: %w", ErrInvalidInput)
	}

	if p.Players == nil {
		p.Players = []string{}
	}
	initial := p.InitialState
	if len(initial) == 0 {
		var err error
		if initial, err = defaultInitialState(p); err != nil {
			return CreateResult{}, err
		}
	}
	start, err := json.Marshal(startPayload{Mode: p.Mode, GoldenPoint: p.GoldenPoint, Players: p.Players})
	if err != nil {
		return CreateResult{}, fmt.Errorf("marshal start payload: %w", err)
	}

	// A lost insert race means another LIVE match appeared. It may be closed
	// again before it can be read, so go back to the lookup.
	for attempt := 0; attempt < createAttempts; attempt++ {
		existing, err := s.active(ctx, p.OwnerID)
		switch {
		case err == nil:
			log.Printf("♻️ User %s already has a LIVE match %s", p.OwnerID, existing.MatchID)
			return CreateResult{Snapshot: existing}, nil
		case !errors.Is(err, ErrNotFound):
			return CreateResult{}, err
		}

		out, err := s.insert(ctx, p.OwnerID, initial, start)
		if errors.Is(err, storage.ErrLiveMatchExists) {
			log.Printf("⚠️ Lost create race for user %s, attempt %d", p.OwnerID, attempt+1)
			continue
		}
		if err != nil {
			return CreateResult{}, fmt.Errorf("create match: %w", err)
		}

		metrics.MatchesCreated.Inc()
		metrics.EventsAppended.WithLabelValues(string(storage.EventStart)).Inc()
		log.Printf("🏓 Created match %s for user %s", out.MatchID, p.OwnerID)
		return CreateResult{Snapshot: out, Created: true}, nil
	}
	return CreateResult{}, fmt.Errorf("create match for user %s: gave up after %d attempts: %w", p.OwnerID, createAttempts, storage.ErrLiveMatchExists)
}

// insert writes the match, its version 0 state and the START event together.
func (s *Service) insert(ctx context.Context, ownerID string, initial, start json.RawMessage) (Snapshot, error) {
	var out Snapshot
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		m, err := tx.InsertMatch(ctx, storage.Match{
			ID:       uuid.New(),
			OwnerID:  ownerID,
			Status:   storage.StatusLive,
			PlayedAt: time.Now().UTC(),
		})
		if err != nil {
			return err
		}
		st, err := tx.CreateState(ctx, m.ID, initial)
		if err != nil {
			return fmt.Errorf("create state: %w", err)
		}
		if _, err := tx.AppendEvent(ctx, m.ID, storage.EventStart, start); err != nil {
			return fmt.Errorf("append start event: %w", err)
		}
		out = snapshot(m, st)
		return nil
	})
	return out, err
}

// GetActive returns the owner's live match.
func (s *Service) GetActive(ctx context.Context, ownerID string) (Snapshot, error) {
	if err := checkOwner(ownerID); err != nil {
		return Snapshot{}, err
	}
	return s.active(ctx, ownerID)
}

func (s *Service) active(ctx context.Context, ownerID string) (Snapshot, error) {
	m, err := s.store.GetLiveMatch(ctx, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Snapshot{}, fmt.Errorf("no active match found for user %s: %w", ownerID, ErrNotFound)
		}
		return Snapshot{}, fmt.Errorf("load live match: %w", err)
	}
	st, err := s.store.GetState(ctx, m.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Snapshot{}, fmt.Errorf("match %s exists but state is missing: %w", m.ID, ErrInvariant)
		}
		return Snapshot{}, fmt.Errorf("load state: %w", err)
	}
	return snapshot(m, st), nil
}

// MutationParams carries a state replacement guarded by ExpectedVersion.
type MutationParams struct {
	OwnerID         string
	ExpectedVersion int64
	NewState        json.RawMessage
}

// PointParams is a MutationParams plus the side that won the point.
type PointParams struct {
	MutationParams
	Winner string
}

// RegisterPoint records a POINT event and replaces the state.
func (s *Service) RegisterPoint(ctx context.Context, matchID uuid.UUID, p PointParams) (Snapshot, error) {
	payload, err := json.Marshal(pointPayload{Winner: p.Winner})
	if err != nil {
		return Snapshot{}, fmt.Errorf("marshal point payload: %w", err)
	}
	return s.mutate(ctx, matchID, p.MutationParams, storage.EventPoint, payload)
}

// Undo records an UNDO event and replaces the state with the caller's
// rolled-back version.
func (s *Service) Undo(ctx context.Context, matchID uuid.UUID, p MutationParams) (Snapshot, error) {
	return s.mutate(ctx, matchID, p, storage.EventUndo, json.RawMessage(`{}`))
}

// UpdateState replaces the state without recording an event.
func (s *Service) UpdateState(ctx context.Context, matchID uuid.UUID, p MutationParams) (Snapshot, error) {
	return s.mutate(ctx, matchID, p, "", nil)
}

// mutate validates, appends the event (if any) and swaps the state in one
// transaction. A lost swap rolls the event back.
func (s *Service) mutate(ctx context.Context, matchID uuid.UUID, p MutationParams, eventType storage.EventType, payload json.RawMessage) (Snapshot, error) {
	if err := checkOwner(p.OwnerID); err != nil {
		return Snapshot{}, err
	}
	if err := checkState(p.NewState); err != nil {
		return Snapshot{}, err
	}

	var out Snapshot
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		m, err := NewGuard(tx).Validate(ctx, matchID, p.OwnerID, storage.StatusLive)
		if err != nil {
			return err
		}
		if eventType != "" {
			if _, err := tx.AppendEvent(ctx, matchID, eventType, payload); err != nil {
				return fmt.Errorf("append %s event: %w", eventType, err)
			}
		}
		st, err := swap(ctx, tx, matchID, p.ExpectedVersion, p.NewState)
		if err != nil {
			return err
		}
		out = snapshot(m, st)
		return nil
	})
	if err != nil {
		return Snapshot{}, s.observe(matchID, err)
	}
	if eventType != "" {
		metrics.EventsAppended.WithLabelValues(string(eventType)).Inc()
	}
	return out, nil
}

// FinishParams closes a live match. FinalState, when present, is swapped in
// under ExpectedVersion before the match is closed.
type FinishParams struct {
	OwnerID         string
	Won             bool
	ExpectedVersion int64
	FinalState      json.RawMessage
	FinalStats      json.RawMessage
}

// Finish optionally swaps the final state, appends MATCH_END and moves the
// match to FINISHED.
func (s *Service) Finish(ctx context.Context, matchID uuid.UUID, p FinishParams) error {
	if err := checkOwner(p.OwnerID); err != nil {
		return err
	}
	if absent(p.FinalState) {
		p.FinalState = nil
	}
	if len(p.FinalState) > 0 && !json.Valid(p.FinalState) {
		return fmt.Errorf("final state is not valid json: %w", ErrInvalidInput)
	}
	if absent(p.FinalStats) {
		p.FinalStats = nil
	}
	if len(p.FinalStats) > 0 && !json.Valid(p.FinalStats) {
		return fmt.Errorf("final stats are not valid json: %w", ErrInvalidInput)
	}
	payload, err := json.Marshal(endPayload{Won: p.Won, FinalStats: p.FinalStats})
	if err != nil {
		return fmt.Errorf("marshal end payload: %w", err)
	}

	err = s.store.InTx(ctx, func(tx storage.Store) error {
		guard := NewGuard(tx)
		if _, err := guard.Validate(ctx, matchID, p.OwnerID, storage.StatusLive); err != nil {
			return err
		}
		if len(p.FinalState) > 0 {
			if _, err := swap(ctx, tx, matchID, p.ExpectedVersion, p.FinalState); err != nil {
				return err
			}
		}
		if _, err := tx.AppendEvent(ctx, matchID, storage.EventMatchEnd, payload); err != nil {
			return fmt.Errorf("append %s event: %w", storage.EventMatchEnd, err)
		}
		won := p.Won
		_, err := guard.Transition(ctx, matchID, storage.StatusFinished, &won)
		return err
	})
	if err != nil {
		return s.observe(matchID, err)
	}

	metrics.EventsAppended.WithLabelValues(string(storage.EventMatchEnd)).Inc()
	metrics.MatchesClosed.WithLabelValues(string(storage.StatusFinished)).Inc()
	log.Printf("🏁 Match %s finished. Won: %t", matchID, p.Won)
	return nil
}

// Abandon moves the owner's live match to ABANDONED. It is a no-op when the
// owner has no live match.
func (s *Service) Abandon(ctx context.Context, ownerID string) error {
	if err := checkOwner(ownerID); err != nil {
		return err
	}

	var abandoned uuid.UUID
	err := s.store.InTx(ctx, func(tx storage.Store) error {
		m, err := tx.GetLiveMatch(ctx, ownerID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load live match: %w", err)
		}
		if _, err := NewGuard(tx).Transition(ctx, m.ID, storage.StatusAbandoned, nil); err != nil {
			return err
		}
		abandoned = m.ID
		return nil
	})
	if err != nil {
		return err
	}
	if abandoned != uuid.Nil {
		metrics.MatchesClosed.WithLabelValues(string(storage.StatusAbandoned)).Inc()
		log.Printf("🗑️ Match %s abandoned by user %s", abandoned, ownerID)
	}
	return nil
}

// Events lists the owner's match events with seq greater than afterSeq.
func (s *Service) Events(ctx context.Context, matchID uuid.UUID, ownerID string, afterSeq int64, limit int) ([]storage.MatchEvent, error) {
	if err := checkOwner(ownerID); err != nil {
		return nil, err
	}
	if afterSeq < 0 {
		return nil, fmt.Errorf("afterSeq must not be negative: %w", ErrInvalidInput)
	}
	if limit < 0 || limit > MaxEventPage {
		return nil, fmt.Errorf("limit must be between 0 and %d: %w", MaxEventPage, ErrInvalidInput)
	}
	if limit == 0 {
		limit = MaxEventPage
	}
	if _, err := NewGuard(s.store).Authorize(ctx, matchID, ownerID); err != nil {
		return nil, err
	}
	events, err := s.store.ListEvents(ctx, matchID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// swap runs the compare-and-swap and turns a lost race into a
// VersionConflictError.
func swap(ctx context.Context, tx storage.StateStore, matchID uuid.UUID, expected int64, state json.RawMessage) (storage.MatchState, error) {
	res, err := tx.CompareAndSwapState(ctx, matchID, expected, state)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.MatchState{}, fmt.Errorf("match %s exists but state is missing: %w", matchID, ErrInvariant)
		}
		return storage.MatchState{}, fmt.Errorf("compare and swap state: %w", err)
	}
	if !res.Applied {
		return storage.MatchState{}, &VersionConflictError{
			ExpectedVersion: expected,
			CurrentVersion:  res.State.Version,
			CurrentState:    res.State.State,
		}
	}
	return res.State, nil
}

func (s *Service) observe(matchID uuid.UUID, err error) error {
	var conflict *VersionConflictError
	if errors.As(err, &conflict) {
		metrics.VersionConflicts.Inc()
		log.Printf("⚠️ Version conflict for match %s. Expected %d, current %d", matchID, conflict.ExpectedVersion, conflict.CurrentVersion)
	}
	return err
}

func checkOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return fmt.Errorf("userId is required: %w", ErrInvalidInput)
	}
	return nil
}

// absent treats an empty or JSON null document as not supplied.
func absent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func checkState(state json.RawMessage) error {
	if absent(state) {
		return fmt.Errorf("new state is required: %w", ErrInvalidInput)
	}
	if !json.Valid(state) {
		return fmt.Errorf("new state is not valid json: %w", ErrInvalidInput)
	}
	return nil
}
