package match_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/match"
	"github.com/sirdesai22/padel-score/internal/storage"
	"github.com/sirdesai22/padel-score/internal/storage/memory"
)

func TestGuard(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := memory.New()
	m, err := store.InsertMatch(ctx, storage.Match{ID: uuid.New(), OwnerID: "u1", Status: storage.StatusLive})
	if err != nil {
		t.Fatalf("insert match: %v", err)
	}
	g := match.NewGuard(store)

	if _, err := g.Validate(ctx, m.ID, "u1", storage.StatusLive); err != nil {
		t.Fatalf("validate owner: %v", err)
	}
	if _, err := g.Validate(ctx, m.ID, "u1", storage.StatusFinished); !errors.Is(err, match.ErrStatusConflict) {
		t.Fatalf("validate wrong status error = %v, want %v", err, match.ErrStatusConflict)
	}
	if _, err := g.Authorize(ctx, m.ID, "u2"); !errors.Is(err, match.ErrForbidden) {
		t.Fatalf("authorize other user error = %v, want %v", err, match.ErrForbidden)
	}
	if _, err := g.Authorize(ctx, uuid.New(), "u1"); !errors.Is(err, match.ErrNotFound) {
		t.Fatalf("authorize unknown match error = %v, want %v", err, match.ErrNotFound)
	}

	if _, err := g.Transition(ctx, m.ID, storage.StatusLive, nil); !errors.Is(err, match.ErrInvalidInput) {
		t.Fatalf("transition to LIVE error = %v, want %v", err, match.ErrInvalidInput)
	}
	got, err := g.Transition(ctx, m.ID, storage.StatusAbandoned, nil)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got.Status != storage.StatusAbandoned {
		t.Fatalf("status = %s, want %s", got.Status, storage.StatusAbandoned)
	}
	if _, err := g.Transition(ctx, m.ID, storage.StatusFinished, nil); !errors.Is(err, match.ErrStatusConflict) {
		t.Fatalf("second transition error = %v, want %v", err, match.ErrStatusConflict)
	}
	if _, err := g.Transition(ctx, uuid.New(), storage.StatusFinished, nil); !errors.Is(err, match.ErrNotFound) {
		t.Fatalf("transition unknown match error = %v, want %v", err, match.ErrNotFound)
	}
}
