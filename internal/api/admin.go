package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/sirdesai22/padel-score/internal/models"
	"github.com/sirdesai22/padel-score/internal/workers"
	"gorm.io/gorm"
)

// Admin serves read and retry endpoints for the search sync pipeline.
type Admin struct {
	DB     *gorm.DB
	Worker *workers.SyncWorker
}

func (a *Admin) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/outbox", a.listOutbox)
	mux.HandleFunc("GET /api/dlq", a.listDLQ)
	mux.HandleFunc("POST /api/retry/{id}", a.retryDLQ)
}

func (a *Admin) listOutbox(w http.ResponseWriter, r *http.Request) {
	var outboxes []models.Outbox
	if err := a.DB.WithContext(r.Context()).Order("id desc").Limit(100).Find(&outboxes).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outboxes)
}

func (a *Admin) listDLQ(w http.ResponseWriter, r *http.Request) {
	var dlq []models.DLQ
	if err := a.DB.WithContext(r.Context()).Order("id desc").Limit(100).Find(&dlq).Error; err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dlq)
}

func (a *Admin) retryDLQ(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		badRequest(w, "id must be an integer")
		return
	}
	var d models.DLQ
	if err := a.DB.WithContext(r.Context()).First(&d, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
			return
		}
		writeError(w, err)
		return
	}
	if err := a.Worker.RetryOne(r.Context(), d); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "retry failed: " + err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "retried"})
}
