// Package api exposes the match service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/sirdesai22/padel-score/internal/match"
	"github.com/sirdesai22/padel-score/internal/storage"
)

// Server holds the handlers' dependencies.
type Server struct {
	matches *match.Service
	users   storage.UserStore
}

func New(matches *match.Service, users storage.UserStore) *Server {
	return &Server{matches: matches, users: users}
}

// Register mounts the public routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, "OK")
	})

	mux.HandleFunc("POST /users/{userId}", s.upsertUser)

	mux.HandleFunc("POST /matches", s.createMatch)
	mux.HandleFunc("GET /matches/active", s.getActiveMatch)
	mux.HandleFunc("DELETE /matches/active", s.abandonActiveMatch)
	mux.HandleFunc("PUT /matches/{matchId}/point", s.registerPoint)
	mux.HandleFunc("POST /matches/{matchId}/undo", s.undo)
	mux.HandleFunc("PUT /matches/{matchId}/state", s.updateState)
	mux.HandleFunc("POST /matches/{matchId}/finish", s.finishMatch)
	mux.HandleFunc("GET /matches/{matchId}/events", s.listEvents)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

type conflictDetails struct {
	CurrentVersion int64           `json:"currentVersion"`
	CurrentState   json.RawMessage `json:"currentState"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("❌ write response: %v", err)
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError maps service outcomes to status codes.
func writeError(w http.ResponseWriter, err error) {
	var conflict *match.VersionConflictError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, errorResponse{
			Error: "Version conflict",
			Details: conflictDetails{
				CurrentVersion: conflict.CurrentVersion,
				CurrentState:   conflict.CurrentState,
			},
		})
	case errors.Is(err, match.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, match.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, match.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, match.ErrStatusConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		log.Printf("❌ request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, fmt.Sprintf("JSON Error: %v", err))
		return false
	}
	return true
}
