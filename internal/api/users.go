package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirdesai22/padel-score/internal/storage"
)

type upsertUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

type userResponse struct {
	ID    string  `json:"id"`
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func (s *Server) upsertUser(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("userId"))
	if id == "" {
		badRequest(w, "userId is required")
		return
	}
	var req upsertUserRequest
	if !decode(w, r, &req) {
		return
	}

	u, err := s.users.UpsertUser(r.Context(), storage.User{ID: id, Name: req.Name, Email: req.Email})
	if errors.Is(err, storage.ErrAlreadyExists) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "Email already exists"})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{ID: u.ID, Name: u.Name, Email: u.Email})
}
