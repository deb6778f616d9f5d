package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/docsmart/docsmart-backend/internal/config"
	"github.com/docsmart/docsmart-backend/internal/repository/postgres"
	"github.com/docsmart/docsmart-backend/internal/storage"
	"github.com/docsmart/docsmart-backend/internal/worker"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	repo   *postgres.JobRepo
	store  *storage.Store
	timing *worker.Timing
	config *config.Config
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(repo *postgres.JobRepo, store *storage.Store, timing *worker.Timing, cfg *config.Config) *Handlers {
	return &Handlers{
		repo:   repo,
		store:  store,
		timing: timing,
		config: cfg,
	}
}

// HealthCheck reports service identity and queue depth.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	pending, inProgress, err := h.repo.QueueCounts(r.Context())
	if err != nil {
		respondSafeError(w, http.StatusServiceUnavailable, err, "Service temporarily unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"service":     "docsmart-backend",
		"pending":     pending,
		"in_progress": inProgress,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Encoding response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// respondSafeError logs the full internal error and sends a sanitized
// message to the client. Internal detail (connection strings, SQL, paths)
// never leaves the server on a 5xx.
func respondSafeError(w http.ResponseWriter, status int, internalErr error, publicMsg string) {
	if internalErr != nil {
		log.Printf("[API] ERROR [%d]: %s: %v", status, publicMsg, internalErr)
	}
	respondError(w, status, publicMsg)
}
