// Package memory provides an in-process transactional implementation of the
// storage contracts. It backs local development (STORE_BACKEND=memory) and
// the service tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/storage"
)

type data struct {
	matches map[uuid.UUID]storage.Match
	states  map[uuid.UUID]storage.MatchState
	events  map[uuid.UUID][]storage.MatchEvent
	users   map[string]storage.User
}

func newData() *data {
	return &data{
		matches: make(map[uuid.UUID]storage.Match),
		states:  make(map[uuid.UUID]storage.MatchState),
		events:  make(map[uuid.UUID][]storage.MatchEvent),
		users:   make(map[string]storage.User),
	}
}

// clone copies the maps and event slices. Records are values and payloads are
// never mutated in place, so sharing them is safe.
func (d *data) clone() *data {
	cp := newData()
	for k, v := range d.matches {
		cp.matches[k] = v
	}
	for k, v := range d.states {
		cp.states[k] = v
	}
	for k, v := range d.events {
		cp.events[k] = append([]storage.MatchEvent(nil), v...)
	}
	for k, v := range d.users {
		cp.users[k] = v
	}
	return cp
}

// Store is a mutex-guarded store. Transactions hold the lock for their whole
// duration and work on a copy that replaces the live data on commit.
type Store struct {
	mu   sync.Mutex
	data *data
	now  func() time.Time
}

var _ storage.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{data: newData(), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Store) view() *view {
	return &view{data: s.data, now: s.now}
}

func (s *Store) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := s.data.clone()
	if err := fn(&view{data: cp, now: s.now}); err != nil {
		return err
	}
	s.data = cp
	return nil
}

func (s *Store) InsertMatch(ctx context.Context, m storage.Match) (storage.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().InsertMatch(ctx, m)
}

func (s *Store) GetMatch(ctx context.Context, id uuid.UUID) (storage.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetMatch(ctx, id)
}

func (s *Store) GetLiveMatch(ctx context.Context, ownerID string) (storage.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetLiveMatch(ctx, ownerID)
}

func (s *Store) TransitionMatch(ctx context.Context, id uuid.UUID, from, to storage.Status, won *bool) (storage.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().TransitionMatch(ctx, id, from, to, won)
}

func (s *Store) CreateState(ctx context.Context, matchID uuid.UUID, state json.RawMessage) (storage.MatchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CreateState(ctx, matchID, state)
}

func (s *Store) GetState(ctx context.Context, matchID uuid.UUID) (storage.MatchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetState(ctx, matchID)
}

func (s *Store) CompareAndSwapState(ctx context.Context, matchID uuid.UUID, expectedVersion int64, state json.RawMessage) (storage.CASResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().CompareAndSwapState(ctx, matchID, expectedVersion, state)
}

func (s *Store) AppendEvent(ctx context.Context, matchID uuid.UUID, eventType storage.EventType, payload json.RawMessage) (storage.MatchEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().AppendEvent(ctx, matchID, eventType, payload)
}

func (s *Store) ListEvents(ctx context.Context, matchID uuid.UUID, afterSeq int64, limit int) ([]storage.MatchEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().ListEvents(ctx, matchID, afterSeq, limit)
}

func (s *Store) UpsertUser(ctx context.Context, u storage.User) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().UpsertUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, id string) (storage.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view().GetUser(ctx, id)
}

// view operates on one data set without locking. The caller holds the lock.
type view struct {
	data *data
	now  func() time.Time
}

func (v *view) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := v.data.clone()
	if err := fn(&view{data: cp, now: v.now}); err != nil {
		return err
	}
	*v.data = *cp
	return nil
}

func (v *view) InsertMatch(ctx context.Context, m storage.Match) (storage.Match, error) {
	if err := ctx.Err(); err != nil {
		return storage.Match{}, err
	}
	if _, ok := v.data.matches[m.ID]; ok {
		return storage.Match{}, storage.ErrAlreadyExists
	}
	if m.Status == storage.StatusLive {
		for _, existing := range v.data.matches {
			if existing.OwnerID == m.OwnerID && existing.Status == storage.StatusLive {
				return storage.Match{}, storage.ErrLiveMatchExists
			}
		}
	}
	now := v.now()
	if m.PlayedAt.IsZero() {
		m.PlayedAt = now
	}
	m.CreatedAt = now
	m.UpdatedAt = now
	v.data.matches[m.ID] = m
	return m, nil
}

func (v *view) GetMatch(ctx context.Context, id uuid.UUID) (storage.Match, error) {
	if err := ctx.Err(); err != nil {
		return storage.Match{}, err
	}
	m, ok := v.data.matches[id]
	if !ok {
		return storage.Match{}, storage.ErrNotFound
	}
	return m, nil
}

func (v *view) GetLiveMatch(ctx context.Context, ownerID string) (storage.Match, error) {
	if err := ctx.Err(); err != nil {
		return storage.Match{}, err
	}
	for _, m := range v.data.matches {
		if m.OwnerID == ownerID && m.Status == storage.StatusLive {
			return m, nil
		}
	}
	return storage.Match{}, storage.ErrNotFound
}

func (v *view) TransitionMatch(ctx context.Context, id uuid.UUID, from, to storage.Status, won *bool) (storage.Match, error) {
	if err := ctx.Err(); err != nil {
		return storage.Match{}, err
	}
	m, ok := v.data.matches[id]
	if !ok {
		return storage.Match{}, storage.ErrNotFound
	}
	if m.Status != from {
		return storage.Match{}, storage.ErrStatusConflict
	}
	m.Status = to
	m.Won = cloneBool(won)
	m.UpdatedAt = v.now()
	v.data.matches[id] = m
	return m, nil
}

func (v *view) CreateState(ctx context.Context, matchID uuid.UUID, state json.RawMessage) (storage.MatchState, error) {
	if err := ctx.Err(); err != nil {
		return storage.MatchState{}, err
	}
	if _, ok := v.data.matches[matchID]; !ok {
		return storage.MatchState{}, storage.ErrNotFound
	}
	if _, ok := v.data.states[matchID]; ok {
		return storage.MatchState{}, storage.ErrAlreadyExists
	}
	st := storage.MatchState{
		MatchID:   matchID,
		Version:   0,
		State:     cloneRaw(state),
		UpdatedAt: v.now(),
	}
	v.data.states[matchID] = st
	return copyState(st), nil
}

func (v *view) GetState(ctx context.Context, matchID uuid.UUID) (storage.MatchState, error) {
	if err := ctx.Err(); err != nil {
		return storage.MatchState{}, err
	}
	st, ok := v.data.states[matchID]
	if !ok {
		return storage.MatchState{}, storage.ErrNotFound
	}
	return copyState(st), nil
}

func (v *view) CompareAndSwapState(ctx context.Context, matchID uuid.UUID, expectedVersion int64, state json.RawMessage) (storage.CASResult, error) {
	if err := ctx.Err(); err != nil {
		return storage.CASResult{}, err
	}
	st, ok := v.data.states[matchID]
	if !ok {
		return storage.CASResult{}, storage.ErrNotFound
	}
	if st.Version != expectedVersion {
		return storage.CASResult{Applied: false, State: copyState(st)}, nil
	}
	now := v.now()
	st.Version++
	st.State = cloneRaw(state)
	st.UpdatedAt = now
	v.data.states[matchID] = st
	v.touch(matchID, now)
	return storage.CASResult{Applied: true, State: copyState(st)}, nil
}

func (v *view) AppendEvent(ctx context.Context, matchID uuid.UUID, eventType storage.EventType, payload json.RawMessage) (storage.MatchEvent, error) {
	if err := ctx.Err(); err != nil {
		return storage.MatchEvent{}, err
	}
	if _, ok := v.data.matches[matchID]; !ok {
		return storage.MatchEvent{}, storage.ErrNotFound
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	now := v.now()
	evt := storage.MatchEvent{
		ID:        uuid.New(),
		MatchID:   matchID,
		Seq:       int64(len(v.data.events[matchID])) + 1,
		Type:      eventType,
		Payload:   cloneRaw(payload),
		CreatedAt: now,
	}
	v.data.events[matchID] = append(v.data.events[matchID], evt)
	v.touch(matchID, now)
	return copyEvent(evt), nil
}

func (v *view) ListEvents(ctx context.Context, matchID uuid.UUID, afterSeq int64, limit int) ([]storage.MatchEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	all := v.data.events[matchID]
	i := sort.Search(len(all), func(i int) bool { return all[i].Seq > afterSeq })
	out := make([]storage.MatchEvent, 0, len(all)-i)
	for ; i < len(all); i++ {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, copyEvent(all[i]))
	}
	return out, nil
}

func (v *view) UpsertUser(ctx context.Context, u storage.User) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	if u.Email != nil {
		for id, other := range v.data.users {
			if id != u.ID && other.Email != nil && *other.Email == *u.Email {
				return storage.User{}, storage.ErrAlreadyExists
			}
		}
	}
	now := v.now()
	if existing, ok := v.data.users[u.ID]; ok {
		u.CreatedAt = existing.CreatedAt
	} else {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	v.data.users[u.ID] = u
	return u, nil
}

func (v *view) GetUser(ctx context.Context, id string) (storage.User, error) {
	if err := ctx.Err(); err != nil {
		return storage.User{}, err
	}
	u, ok := v.data.users[id]
	if !ok {
		return storage.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (v *view) touch(matchID uuid.UUID, now time.Time) {
	if m, ok := v.data.matches[matchID]; ok {
		m.UpdatedAt = now
		v.data.matches[matchID] = m
	}
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}
	v := *b
	return &v
}

func copyState(st storage.MatchState) storage.MatchState {
	st.State = cloneRaw(st.State)
	return st
}

func copyEvent(evt storage.MatchEvent) storage.MatchEvent {
	evt.Payload = cloneRaw(evt.Payload)
	return evt
}
