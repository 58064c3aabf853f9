// Package storagetest holds the behavior every storage.Store implementation
// must share. Backends call Run from their own tests.
package storagetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/storage"
)

// Factory returns an empty store for one test.
type Factory func(t *testing.T) storage.Store

// Run executes the shared suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"InsertAndGetMatch", testInsertAndGetMatch},
		{"OneLiveMatchPerOwner", testOneLiveMatchPerOwner},
		{"TransitionMatch", testTransitionMatch},
		{"CreateState", testCreateState},
		{"CompareAndSwapSequence", testCompareAndSwapSequence},
		{"CompareAndSwapStale", testCompareAndSwapStale},
		{"CompareAndSwapMissing", testCompareAndSwapMissing},
		{"ConcurrentCompareAndSwap", testConcurrentCompareAndSwap},
		{"AppendEventSequence", testAppendEventSequence},
		{"ConcurrentAppendEvent", testConcurrentAppendEvent},
		{"AppendEventMissingMatch", testAppendEventMissingMatch},
		{"ListEventsPaging", testListEventsPaging},
		{"InTxRollback", testInTxRollback},
		{"InTxCommit", testInTxCommit},
		{"UpsertUser", testUpsertUser},
		{"UpdatedAtRefreshed", testUpdatedAtRefreshed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func newLiveMatch(t *testing.T, s storage.Store, owner string) storage.Match {
	t.Helper()
	m, err := s.InsertMatch(context.Background(), storage.Match{
		ID:      uuid.New(),
		OwnerID: owner,
		Status:  storage.StatusLive,
	})
	if err != nil {
		t.Fatalf("insert match: %v", err)
	}
	return m
}

func newMatchWithState(t *testing.T, s storage.Store, owner string) storage.Match {
	t.Helper()
	m := newLiveMatch(t, s, owner)
	if _, err := s.CreateState(context.Background(), m.ID, json.RawMessage(`{"points":0}`)); err != nil {
		t.Fatalf("create state: %v", err)
	}
	return m
}

func testInsertAndGetMatch(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newLiveMatch(t, s, "u1")

	got, err := s.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if got.OwnerID != "u1" || got.Status != storage.StatusLive {
		t.Fatalf("match = %+v, want owner u1 LIVE", got)
	}
	if got.Won != nil {
		t.Fatalf("won = %v, want nil", *got.Won)
	}

	live, err := s.GetLiveMatch(ctx, "u1")
	if err != nil {
		t.Fatalf("get live match: %v", err)
	}
	if live.ID != m.ID {
		t.Fatalf("live match id = %s, want %s", live.ID, m.ID)
	}

	if _, err := s.GetMatch(ctx, uuid.New()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get unknown match error = %v, want %v", err, storage.ErrNotFound)
	}
	if _, err := s.GetLiveMatch(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get live match for unknown owner error = %v, want %v", err, storage.ErrNotFound)
	}
}

func testOneLiveMatchPerOwner(t *testing.T, s storage.Store) {
	ctx := context.Background()
	first := newLiveMatch(t, s, "u1")

	_, err := s.InsertMatch(ctx, storage.Match{ID: uuid.New(), OwnerID: "u1", Status: storage.StatusLive})
	if !errors.Is(err, storage.ErrLiveMatchExists) {
		t.Fatalf("second live insert error = %v, want %v", err, storage.ErrLiveMatchExists)
	}

	// other owners are unaffected
	newLiveMatch(t, s, "u2")

	won := true
	if _, err := s.TransitionMatch(ctx, first.ID, storage.StatusLive, storage.StatusFinished, &won); err != nil {
		t.Fatalf("finish first match: %v", err)
	}
	second := newLiveMatch(t, s, "u1")
	live, err := s.GetLiveMatch(ctx, "u1")
	if err != nil {
		t.Fatalf("get live match: %v", err)
	}
	if live.ID != second.ID {
		t.Fatalf("live match id = %s, want %s", live.ID, second.ID)
	}
}

func testTransitionMatch(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newLiveMatch(t, s, "u1")

	won := false
	got, err := s.TransitionMatch(ctx, m.ID, storage.StatusLive, storage.StatusFinished, &won)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if got.Status != storage.StatusFinished {
		t.Fatalf("status = %s, want %s", got.Status, storage.StatusFinished)
	}
	if got.Won == nil || *got.Won {
		t.Fatalf("won = %v, want false", got.Won)
	}

	_, err = s.TransitionMatch(ctx, m.ID, storage.StatusLive, storage.StatusAbandoned, nil)
	if !errors.Is(err, storage.ErrStatusConflict) {
		t.Fatalf("second transition error = %v, want %v", err, storage.ErrStatusConflict)
	}
	reread, err := s.GetMatch(ctx, m.ID)
	if err != nil {
		t.Fatalf("get match: %v", err)
	}
	if reread.Status != storage.StatusFinished {
		t.Fatalf("status after rejected transition = %s, want %s", reread.Status, storage.StatusFinished)
	}

	_, err = s.TransitionMatch(ctx, uuid.New(), storage.StatusLive, storage.StatusFinished, nil)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("transition unknown match error = %v, want %v", err, storage.ErrNotFound)
	}
}

func testCreateState(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newLiveMatch(t, s, "u1")

	st, err := s.CreateState(ctx, m.ID, json.RawMessage(`{"points":0}`))
	if err != nil {
		t.Fatalf("create state: %v", err)
	}
	if st.Version != 0 {
		t.Fatalf("version = %d, want 0", st.Version)
	}
	if string(st.State) != `{"points":0}` {
		t.Fatalf("state = %s, want {\"points\":0}", st.State)
	}

	_, err = s.CreateState(ctx, m.ID, json.RawMessage(`{}`))
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate create error = %v, want %v", err, storage.ErrAlreadyExists)
	}

	if _, err := s.GetState(ctx, uuid.New()); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get unknown state error = %v, want %v", err, storage.ErrNotFound)
	}
}

func testCompareAndSwapSequence(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newMatchWithState(t, s, "u1")

	const n = 5
	for i := 0; i < n; i++ {
		state := json.RawMessage(fmt.Sprintf(`{"points":%d}`, i+1))
		res, err := s.CompareAndSwapState(ctx, m.ID, int64(i), state)
		if err != nil {
			t.Fatalf("cas %d: %v", i, err)
		}
		if !res.Applied {
			t.Fatalf("cas %d not applied, current version %d", i, res.State.Version)
		}
		if res.State.Version != int64(i+1) {
			t.Fatalf("cas %d version = %d, want %d", i, res.State.Version, i+1)
		}
	}

	st, err := s.GetState(ctx, m.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if st.Version != n {
		t.Fatalf("version = %d, want %d", st.Version, n)
	}
	if string(st.State) != `{"points":5}` {
		t.Fatalf("state = %s, want {\"points\":5}", st.State)
	}
}

func testCompareAndSwapStale(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newMatchWithState(t, s, "u1")

	if _, err := s.CompareAndSwapState(ctx, m.ID, 0, json.RawMessage(`{"points":1}`)); err != nil {
		t.Fatalf("first cas: %v", err)
	}
	res, err := s.CompareAndSwapState(ctx, m.ID, 0, json.RawMessage(`{"points":99}`))
	if err != nil {
		t.Fatalf("stale cas: %v", err)
	}
	if res.Applied {
		t.Fatal("stale cas applied")
	}
	if res.State.Version != 1 || string(res.State.State) != `{"points":1}` {
		t.Fatalf("conflict state = v%d %s, want v1 {\"points\":1}", res.State.Version, res.State.State)
	}

	// a version from the future is just as stale
	res, err = s.CompareAndSwapState(ctx, m.ID, 7, json.RawMessage(`{"points":99}`))
	if err != nil {
		t.Fatalf("future cas: %v", err)
	}
	if res.Applied {
		t.Fatal("future cas applied")
	}

	st, err := s.GetState(ctx, m.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if st.Version != 1 {
		t.Fatalf("version after rejected swaps = %d, want 1", st.Version)
	}
}

func testCompareAndSwapMissing(t *testing.T, s storage.Store) {
	_, err := s.CompareAndSwapState(context.Background(), uuid.New(), 0, json.RawMessage(`{}`))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("cas on missing state error = %v, want %v", err, storage.ErrNotFound)
	}
}

func testConcurrentCompareAndSwap(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newMatchWithState(t, s, "u1")

	const writers = 8
	results := make([]storage.CASResult, writers)
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			state := json.RawMessage(fmt.Sprintf(`{"writer":%d}`, i))
			results[i], errs[i] = s.CompareAndSwapState(ctx, m.ID, 0, state)
		}(i)
	}
	wg.Wait()

	winner := -1
	for i := 0; i < writers; i++ {
		if errs[i] != nil {
			t.Fatalf("writer %d: %v", i, errs[i])
		}
		if results[i].Applied {
			if winner >= 0 {
				t.Fatalf("writers %d and %d both applied", winner, i)
			}
			winner = i
		}
	}
	if winner < 0 {
		t.Fatal("no writer applied")
	}
	want := fmt.Sprintf(`{"writer":%d}`, winner)
	for i := 0; i < writers; i++ {
		if i == winner {
			continue
		}
		if results[i].State.Version != 1 || string(results[i].State.State) != want {
			t.Fatalf("loser %d saw v%d %s, want v1 %s", i, results[i].State.Version, results[i].State.State, want)
		}
	}
}

func testAppendEventSequence(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newLiveMatch(t, s, "u1")
	other := newLiveMatch(t, s, "u2")

	types := []storage.EventType{storage.EventStart, storage.EventPoint, storage.EventUndo, storage.EventMatchEnd}
	for i, typ := range types {
		evt, err := s.AppendEvent(ctx, m.ID, typ, json.RawMessage(`{"i":1}`))
		if err != nil {
			t.Fatalf("append %s: %v", typ, err)
		}
		if evt.Seq != int64(i+1) {
			t.Fatalf("append %s seq = %d, want %d", typ, evt.Seq, i+1)
		}
	}

	// sequences are per match
	evt, err := s.AppendEvent(ctx, other.ID, storage.EventStart, nil)
	if err != nil {
		t.Fatalf("append to other match: %v", err)
	}
	if evt.Seq != 1 {
		t.Fatalf("other match seq = %d, want 1", evt.Seq)
	}
	if string(evt.Payload) != `{}` {
		t.Fatalf("empty payload stored as %s, want {}", evt.Payload)
	}

	events, err := s.ListEvents(ctx, m.ID, 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != len(types) {
		t.Fatalf("events = %d, want %d", len(events), len(types))
	}
	for i, e := range events {
		if e.Seq != int64(i+1) || e.Type != types[i] {
			t.Fatalf("event %d = seq %d %s, want seq %d %s", i, e.Seq, e.Type, i+1, types[i])
		}
	}
}

func testConcurrentAppendEvent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newLiveMatch(t, s, "u1")

	const writers = 10
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.AppendEvent(ctx, m.ID, storage.EventPoint, json.RawMessage(`{"winner":"A"}`))
		}(i)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("writer %d: %v", i, err)
		}
	}

	events, err := s.ListEvents(ctx, m.ID, 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	seqs := make([]int64, 0, len(events))
	for _, e := range events {
		seqs = append(seqs, e.Seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	if len(seqs) != writers {
		t.Fatalf("events = %d, want %d", len(seqs), writers)
	}
	for i, seq := range seqs {
		if seq != int64(i+1) {
			t.Fatalf("seqs = %v, want 1..%d without gaps or duplicates", seqs, writers)
		}
	}
}

func testAppendEventMissingMatch(t *testing.T, s storage.Store) {
	_, err := s.AppendEvent(context.Background(), uuid.New(), storage.EventPoint, nil)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("append to missing match error = %v, want %v", err, storage.ErrNotFound)
	}
}

func testListEventsPaging(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newLiveMatch(t, s, "u1")
	for i := 0; i < 5; i++ {
		if _, err := s.AppendEvent(ctx, m.ID, storage.EventPoint, nil); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	page, err := s.ListEvents(ctx, m.ID, 2, 2)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(page) != 2 || page[0].Seq != 3 || page[1].Seq != 4 {
		t.Fatalf("page = %+v, want seqs 3 and 4", page)
	}

	empty, err := s.ListEvents(ctx, uuid.New(), 0, 0)
	if err != nil {
		t.Fatalf("list events for unknown match: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("unknown match events = %d, want 0", len(empty))
	}
}

func testInTxRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newMatchWithState(t, s, "u1")
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx storage.Store) error {
		if _, err := tx.AppendEvent(ctx, m.ID, storage.EventPoint, nil); err != nil {
			return err
		}
		if _, err := tx.CompareAndSwapState(ctx, m.ID, 0, json.RawMessage(`{"points":1}`)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx error = %v, want %v", err, boom)
	}

	st, err := s.GetState(ctx, m.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if st.Version != 0 {
		t.Fatalf("version after rollback = %d, want 0", st.Version)
	}
	events, err := s.ListEvents(ctx, m.ID, 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("events after rollback = %d, want 0", len(events))
	}

	// the counter rolled back too, so the next append is still seq 1
	evt, err := s.AppendEvent(ctx, m.ID, storage.EventPoint, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if evt.Seq != 1 {
		t.Fatalf("seq after rollback = %d, want 1", evt.Seq)
	}
}

func testInTxCommit(t *testing.T, s storage.Store) {
	ctx := context.Background()
	var id uuid.UUID
	err := s.InTx(ctx, func(tx storage.Store) error {
		m, err := tx.InsertMatch(ctx, storage.Match{ID: uuid.New(), OwnerID: "u1", Status: storage.StatusLive})
		if err != nil {
			return err
		}
		if _, err := tx.CreateState(ctx, m.ID, json.RawMessage(`{}`)); err != nil {
			return err
		}
		if _, err := tx.AppendEvent(ctx, m.ID, storage.EventStart, nil); err != nil {
			return err
		}
		id = m.ID
		return nil
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	if _, err := s.GetMatch(ctx, id); err != nil {
		t.Fatalf("get committed match: %v", err)
	}
	if _, err := s.GetState(ctx, id); err != nil {
		t.Fatalf("get committed state: %v", err)
	}
	events, err := s.ListEvents(ctx, id, 0, 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Type != storage.EventStart {
		t.Fatalf("events = %+v, want one START", events)
	}
}

func testUpsertUser(t *testing.T, s storage.Store) {
	ctx := context.Background()
	name := "Ana"
	email := "ana@example.com"

	u, err := s.UpsertUser(ctx, storage.User{ID: "u1", Name: &name, Email: &email})
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if u.Name == nil || *u.Name != "Ana" {
		t.Fatalf("name = %v, want Ana", u.Name)
	}

	renamed := "Ana B"
	u, err = s.UpsertUser(ctx, storage.User{ID: "u1", Name: &renamed, Email: &email})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if u.Name == nil || *u.Name != "Ana B" {
		t.Fatalf("name after update = %v, want Ana B", u.Name)
	}

	_, err = s.UpsertUser(ctx, storage.User{ID: "u2", Email: &email})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate email error = %v, want %v", err, storage.ErrAlreadyExists)
	}

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing user error = %v, want %v", err, storage.ErrNotFound)
	}
}

func testUpdatedAtRefreshed(t *testing.T, s storage.Store) {
	ctx := context.Background()
	m := newMatchWithState(t, s, "u1")

	stamps := func() (time.Time, time.Time) {
		t.Helper()
		gotMatch, err := s.GetMatch(ctx, m.ID)
		if err != nil {
			t.Fatalf("get match: %v", err)
		}
		gotState, err := s.GetState(ctx, m.ID)
		if err != nil {
			t.Fatalf("get state: %v", err)
		}
		return gotMatch.UpdatedAt, gotState.UpdatedAt
	}
	// keep consecutive writes on distinct clock readings
	tick := func() { time.Sleep(5 * time.Millisecond) }

	matchAt, stateAt := stamps()

	tick()
	if _, err := s.CompareAndSwapState(ctx, m.ID, 0, json.RawMessage(`{"points":1}`)); err != nil {
		t.Fatalf("cas: %v", err)
	}
	nextMatch, nextState := stamps()
	if !nextMatch.After(matchAt) || !nextState.After(stateAt) {
		t.Fatalf("applied swap: match %v -> %v, state %v -> %v, want both to advance", matchAt, nextMatch, stateAt, nextState)
	}
	matchAt, stateAt = nextMatch, nextState

	tick()
	res, err := s.CompareAndSwapState(ctx, m.ID, 0, json.RawMessage(`{"points":9}`))
	if err != nil {
		t.Fatalf("stale cas: %v", err)
	}
	if res.Applied {
		t.Fatal("stale cas applied")
	}
	nextMatch, nextState = stamps()
	if !nextMatch.Equal(matchAt) || !nextState.Equal(stateAt) {
		t.Fatalf("rejected swap: match %v -> %v, state %v -> %v, want both unchanged", matchAt, nextMatch, stateAt, nextState)
	}

	tick()
	if _, err := s.AppendEvent(ctx, m.ID, storage.EventPoint, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	nextMatch, _ = stamps()
	if !nextMatch.After(matchAt) {
		t.Fatalf("append: match %v -> %v, want it to advance", matchAt, nextMatch)
	}
	matchAt = nextMatch

	tick()
	won := true
	if _, err := s.TransitionMatch(ctx, m.ID, storage.StatusLive, storage.StatusFinished, &won); err != nil {
		t.Fatalf("transition: %v", err)
	}
	nextMatch, _ = stamps()
	if !nextMatch.After(matchAt) {
		t.Fatalf("transition: match %v -> %v, want it to advance", matchAt, nextMatch)
	}
	matchAt = nextMatch

	tick()
	if _, err := s.TransitionMatch(ctx, m.ID, storage.StatusLive, storage.StatusAbandoned, nil); err == nil {
		t.Fatal("second transition succeeded")
	}
	nextMatch, _ = stamps()
	if !nextMatch.Equal(matchAt) {
		t.Fatalf("rejected transition: match %v -> %v, want unchanged", matchAt, nextMatch)
	}
}
