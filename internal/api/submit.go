package api

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/docsmart/docsmart-backend/internal/jobs"
	"github.com/docsmart/docsmart-backend/internal/tools"
)

// maxSubmissionMemory bounds how much of a multipart submission is held in
// memory before spilling to disk.
const maxSubmissionMemory = 64 << 20

// SubmitJob accepts a multipart tool request, uploads the raw inputs, and
// enqueues a pending job. Validation failures are 400s and never reach a
// worker.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxSubmissionMemory); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	toolID := r.FormValue("toolId")
	if toolID == "" {
		respondError(w, http.StatusBadRequest, "toolId is required")
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		files = r.MultipartForm.File["files[]"]
	}
	if len(files) == 0 {
		respondError(w, http.StatusBadRequest, "at least one file is required")
		return
	}

	options, err := jobs.ParseOptions(r.FormValue("options"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := tools.ValidateSubmission(toolID, len(files), options); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The job id is minted here so raw inputs land under their final
	// public/{job_id}/raw/ prefix before the row exists.
	jobID := uuid.New()
	inputPaths := make([]string, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, "Could not read uploaded file")
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, "Could not read uploaded file")
			return
		}

		key := fmt.Sprintf("public/%s/raw/%s", jobID, filepath.Base(fh.Filename))
		if _, err := h.store.Upload(r.Context(), h.config.Storage.RawBucket, key, data, fh.Header.Get("Content-Type")); err != nil {
			respondSafeError(w, http.StatusInternalServerError, err, "Could not store uploaded file")
			return
		}
		inputPaths = append(inputPaths, key)
	}

	if err := h.repo.InsertPending(r.Context(), jobID, toolID, inputPaths, options); err != nil {
		respondSafeError(w, http.StatusInternalServerError, err, "Could not enqueue job")
		return
	}

	resp := map[string]interface{}{
		"success":         true,
		"jobId":           jobID.String(),
		"statusCheckLink": "/process-pdf?jobId=" + jobID.String(),
	}

	// Queue position and ETA are best-effort decoration.
	if pending, _, err := h.repo.QueueCounts(r.Context()); err == nil {
		avg := h.timing.AverageJobTime(r.Context())
		resp["queuePosition"] = pending
		resp["estimatedWaitTimeSeconds"] = int(avg.Seconds()) * pending
	}

	respondJSON(w, http.StatusAccepted, resp)
}
