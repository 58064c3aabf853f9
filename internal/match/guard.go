package match

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/storage"
)

// Guard checks identity, ownership and lifecycle status before a mutation.
// The match it returns is a point-in-time read, not a lock.
type Guard struct {
	matches storage.MatchStore
}

// NewGuard builds a guard over a match store, usually a transactional view.
func NewGuard(matches storage.MatchStore) *Guard {
	return &Guard{matches: matches}
}

// Authorize loads the match and checks the caller owns it.
func (g *Guard) Authorize(ctx context.Context, matchID uuid.UUID, ownerID string) (storage.Match, error) {
	m, err := g.matches.GetMatch(ctx, matchID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return storage.Match{}, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
		}
		return storage.Match{}, fmt.Errorf("load match %s: %w", matchID, err)
	}
	if m.OwnerID != ownerID {
		return storage.Match{}, fmt.Errorf("match %s does not belong to user %s: %w", matchID, ownerID, ErrForbidden)
	}
	return m, nil
}

// Validate is Authorize plus a status requirement.
func (g *Guard) Validate(ctx context.Context, matchID uuid.UUID, ownerID string, required storage.Status) (storage.Match, error) {
	m, err := g.Authorize(ctx, matchID, ownerID)
	if err != nil {
		return storage.Match{}, err
	}
	if m.Status != required {
		return storage.Match{}, fmt.Errorf("match status is %s, expected %s: %w", m.Status, required, ErrStatusConflict)
	}
	return m, nil
}

// Transition moves a LIVE match to a terminal status. It is not guarded by
// the state version.
func (g *Guard) Transition(ctx context.Context, matchID uuid.UUID, to storage.Status, won *bool) (storage.Match, error) {
	if !to.Terminal() {
		return storage.Match{}, fmt.Errorf("transition to %s: %w", to, ErrInvalidInput)
	}
	m, err := g.matches.TransitionMatch(ctx, matchID, storage.StatusLive, to, won)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return storage.Match{}, fmt.Errorf("match %s: %w", matchID, ErrNotFound)
	case errors.Is(err, storage.ErrStatusConflict):
		return storage.Match{}, fmt.Errorf("match %s is no longer %s: %w", matchID, storage.StatusLive, ErrStatusConflict)
	case err != nil:
		return storage.Match{}, fmt.Errorf("transition match %s: %w", matchID, err)
	}
	return m, nil
}
