package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/docsmart/docsmart-backend/internal/jobs"
	"github.com/docsmart/docsmart-backend/internal/repository/postgres"
	"github.com/docsmart/docsmart-backend/internal/storage"
)

func jobIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%s is required", name)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

// JobStatus is the read-only projection of the job record.
func (h *Handlers) JobStatus(w http.ResponseWriter, r *http.Request) {
	id, err := jobIDParam(r, "jobId")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "A database error occurred")
		return
	}

	resp := map[string]interface{}{
		"status":   job.Status,
		"progress": job.Progress,
	}
	if job.Status == jobs.StatusSucceeded {
		resp["outputFileName"] = job.FileName
		resp["downloadLink"] = "/download-proxied-file?jobId=" + job.ID.String()
	}
	if job.Status == jobs.StatusFailed {
		resp["error"] = job.ErrorMessage
	}
	respondJSON(w, http.StatusOK, resp)
}

// DownloadProxiedFile gates each download: it bumps the access count
// atomically and either streams the artifact with attachment disposition or
// reports 410 once the artifact has expired or hit its access cap.
func (h *Handlers) DownloadProxiedFile(w http.ResponseWriter, r *http.Request) {
	id, err := jobIDParam(r, "jobId")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "A database error occurred")
		return
	}
	if job.PublicURL == "" {
		respondError(w, http.StatusNotFound, "no output available for this job")
		return
	}

	result, err := h.repo.IncrementAccessAndMaybeDelete(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		// The record was removed by a concurrent gate hitting the cap.
		respondError(w, http.StatusGone, "file no longer available")
		return
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "A database error occurred")
		return
	}

	key := fmt.Sprintf("public/%s/%s", job.ID, job.FileName)
	if result.Deleted {
		// The row is gone; take the artifact with it.
		if err := h.store.DeletePrefix(r.Context(), h.config.Storage.ProcessedBucket, fmt.Sprintf("public/%s/", job.ID)); err != nil {
			respondSafeError(w, http.StatusGone, err, "file no longer available")
			return
		}
		respondError(w, http.StatusGone, "download limit reached")
		return
	}

	rc, err := h.store.Open(r.Context(), h.config.Storage.ProcessedBucket, key)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusGone, "file no longer available")
		return
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "Could not read the processed file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", job.FileName))
	if _, err := io.Copy(w, rc); err != nil {
		// Too late for a status code; the client sees a truncated body.
		return
	}
}

// FileSize reports the output size in megabytes, rounded to 2 decimals.
func (h *Handlers) FileSize(w http.ResponseWriter, r *http.Request) {
	id, err := jobIDParam(r, "fileId")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	job, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "A database error occurred")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"file_size_mb": job.FileSizeMB(),
	})
}

// DeleteProcessedFile removes the artifact and the job row. Deleting an
// absent job succeeds, keeping the endpoint idempotent.
func (h *Handlers) DeleteProcessedFile(w http.ResponseWriter, r *http.Request) {
	id, err := jobIDParam(r, "jobId")
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	prefix := fmt.Sprintf("public/%s/", id)
	if err := h.store.DeletePrefix(r.Context(), h.config.Storage.ProcessedBucket, prefix); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "Could not delete artifacts")
		return
	}
	if err := h.store.DeletePrefix(r.Context(), h.config.Storage.RawBucket, prefix); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "Could not delete artifacts")
		return
	}
	if err := h.repo.Delete(r.Context(), id); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "A database error occurred")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
