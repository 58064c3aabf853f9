package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirdesai22/padel-score/internal/match"
)

type createMatchRequest struct {
	UserID       string          `json:"userId"`
	Mode         string          `json:"mode"`
	GoldenPoint  bool            `json:"goldenPoint"`
	Players      []string        `json:"players"`
	InitialState json.RawMessage `json:"initialState"`
}

type registerPointRequest struct {
	UserID          string          `json:"userId"`
	Winner          string          `json:"winner"`
	ExpectedVersion int64           `json:"expectedVersion"`
	NewState        json.RawMessage `json:"newState"`
}

type undoRequest struct {
	UserID          string          `json:"userId"`
	ExpectedVersion int64           `json:"expectedVersion"`
	NewState        json.RawMessage `json:"newState"`
}

type updateStateRequest struct {
	UserID          string          `json:"userId"`
	ExpectedVersion int64           `json:"expectedVersion"`
	State           json.RawMessage `json:"state"`
}

type finishMatchRequest struct {
	UserID          string          `json:"userId"`
	Won             bool            `json:"won"`
	ExpectedVersion int64           `json:"expectedVersion"`
	FinalState      json.RawMessage `json:"finalState"`
	FinalStats      json.RawMessage `json:"finalStats"`
}

type matchResponse struct {
	MatchID uuid.UUID       `json:"matchId"`
	Status  string          `json:"status"`
	Version int64           `json:"version"`
	State   json.RawMessage `json:"state"`
	Won     *bool           `json:"won,omitempty"`
}

type eventResponse struct {
	ID        uuid.UUID       `json:"id"`
	Seq       int64           `json:"seq"`
	EventType string          `json:"eventType"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

func toResponse(s match.Snapshot) matchResponse {
	return matchResponse{
		MatchID: s.MatchID,
		Status:  string(s.Status),
		Version: s.Version,
		State:   s.State,
		Won:     s.Won,
	}
}

func matchID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("matchId"))
	if err != nil {
		badRequest(w, "matchId must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	var req createMatchRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.matches.Create(r.Context(), match.CreateParams{
		OwnerID:      req.UserID,
		Mode:         req.Mode,
		GoldenPoint:  req.GoldenPoint,
		Players:      req.Players,
		InitialState: req.InitialState,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !res.Created {
		writeJSON(w, http.StatusOK, toResponse(res.Snapshot))
		return
	}
	w.Header().Set("Location", "/matches/"+res.MatchID.String())
	writeJSON(w, http.StatusCreated, toResponse(res.Snapshot))
}

func (s *Server) getActiveMatch(w http.ResponseWriter, r *http.Request) {
	snap, err := s.matches.GetActive(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

func (s *Server) abandonActiveMatch(w http.ResponseWriter, r *http.Request) {
	if err := s.matches.Abandon(r.Context(), r.URL.Query().Get("userId")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) registerPoint(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	var req registerPointRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := s.matches.RegisterPoint(r.Context(), id, match.PointParams{
		MutationParams: match.MutationParams{
			OwnerID:         req.UserID,
			ExpectedVersion: req.ExpectedVersion,
			NewState:        req.NewState,
		},
		Winner: req.Winner,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

func (s *Server) undo(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	var req undoRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := s.matches.Undo(r.Context(), id, match.MutationParams{
		OwnerID:         req.UserID,
		ExpectedVersion: req.ExpectedVersion,
		NewState:        req.NewState,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

func (s *Server) updateState(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	var req updateStateRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := s.matches.UpdateState(r.Context(), id, match.MutationParams{
		OwnerID:         req.UserID,
		ExpectedVersion: req.ExpectedVersion,
		NewState:        req.State,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toResponse(snap))
}

func (s *Server) finishMatch(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	var req finishMatchRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.matches.Finish(r.Context(), id, match.FinishParams{
		OwnerID:         req.UserID,
		Won:             req.Won,
		ExpectedVersion: req.ExpectedVersion,
		FinalState:      req.FinalState,
		FinalStats:      req.FinalStats,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Match finished successfully"})
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := matchID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	afterSeq, err := intParam(q.Get("afterSeq"))
	if err != nil {
		badRequest(w, "afterSeq must be an integer")
		return
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		badRequest(w, "limit must be an integer")
		return
	}

	events, err := s.matches.Events(r.Context(), id, q.Get("userId"), afterSeq, int(limit))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]eventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, eventResponse{
			ID:        e.ID,
			Seq:       e.Seq,
			EventType: string(e.Type),
			Payload:   e.Payload,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func intParam(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}
