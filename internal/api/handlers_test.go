package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsmart/docsmart-backend/internal/config"
	"github.com/docsmart/docsmart-backend/internal/repository/postgres"
	"github.com/docsmart/docsmart-backend/internal/storage"
	"github.com/docsmart/docsmart-backend/internal/worker"
)

func setupTestHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock, *storage.Store) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		Storage: config.StorageConfig{
			Type:            "local",
			LocalPath:       t.TempDir(),
			RawBucket:       "raw-inputs",
			ProcessedBucket: "processed-pdfs",
		},
		Retention: config.RetentionConfig{AccessThreshold: 3},
	}

	store, err := storage.New(context.Background(), cfg.Storage)
	require.NoError(t, err)

	repo := postgres.NewJobRepo(db, 3)
	timing := worker.NewTiming(nil, 30*time.Second)
	return NewHandlers(repo, store, timing, cfg), mock, store
}

func jobRow(id uuid.UUID, status string, progress int, fileName, publicURL string, fileSize int64, errMsg string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "tool_id", "status", "progress", "input_file_paths", "options",
		"file_name", "public_url", "file_size", "access_count", "worker_id",
		"error_message", "created_at", "updated_at",
	}).AddRow(
		id.String(), "merge", status, progress, []byte(`{}`), []byte(`{}`),
		fileName, publicURL, fileSize, 0, "", errMsg, now, now,
	)
}

func multipartBody(t *testing.T, toolID, options string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if toolID != "" {
		require.NoError(t, mw.WriteField("toolId", toolID))
	}
	if options != "" {
		require.NoError(t, mw.WriteField("options", options))
	}
	for name, data := range files {
		fw, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestSubmitJobMissingToolID(t *testing.T) {
	h, _, _ := setupTestHandlers(t)
	router := SetupRoutes(h)

	body, contentType := multipartBody(t, "", "", map[string][]byte{"a.pdf": []byte("x")})
	req := httptest.NewRequest(http.MethodPost, "/process-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "toolId")
}

func TestSubmitJobNoFiles(t *testing.T) {
	h, _, _ := setupTestHandlers(t)
	router := SetupRoutes(h)

	body, contentType := multipartBody(t, "merge", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/process-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitJobValidationFailures(t *testing.T) {
	h, _, _ := setupTestHandlers(t)
	router := SetupRoutes(h)

	cases := []struct {
		name    string
		tool    string
		options string
		files   map[string][]byte
		wantMsg string
	}{
		{"unknown tool", "shredPdf", "", map[string][]byte{"a.pdf": []byte("x")}, "unknown toolId"},
		{"merge arity", "merge", "", map[string][]byte{"a.pdf": []byte("x")}, "at least 2"},
		{"split bad range", "split", `{"pageRange":"5-3"}`, map[string][]byte{"a.pdf": []byte("x")}, "range"},
		{"protect no password", "protectPdf", "{}", map[string][]byte{"a.pdf": []byte("x")}, "password"},
		{"bad options json", "compress", "{nope", map[string][]byte{"a.pdf": []byte("x")}, "options"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tc.tool, tc.options, tc.files)
			req := httptest.NewRequest(http.MethodPost, "/process-pdf", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.wantMsg)
		})
	}
}

func TestSubmitJobAccepted(t *testing.T) {
	h, mock, store := setupTestHandlers(t)
	router := SetupRoutes(h)

	mock.ExpectExec("INSERT INTO processing_jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"pending", "in_progress"}).AddRow(3, 1))

	body, contentType := multipartBody(t, "merge", "", map[string][]byte{
		"a.pdf": []byte("pdf-a"),
		"b.pdf": []byte("pdf-b"),
	})
	req := httptest.NewRequest(http.MethodPost, "/process-pdf", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])

	jobID, err := uuid.Parse(resp["jobId"].(string))
	require.NoError(t, err)
	assert.Equal(t, "/process-pdf?jobId="+jobID.String(), resp["statusCheckLink"])
	assert.Equal(t, float64(3), resp["queuePosition"])
	assert.Equal(t, float64(90), resp["estimatedWaitTimeSeconds"])

	// Raw inputs landed under the job's prefix.
	data, err := store.Download(context.Background(), "raw-inputs", fmt.Sprintf("public/%s/raw/a.pdf", jobID))
	require.NoError(t, err)
	assert.Equal(t, "pdf-a", string(data))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStatusNotFound(t *testing.T) {
	h, mock, _ := setupTestHandlers(t)
	router := SetupRoutes(h)
	id := uuid.New()

	mock.ExpectQuery("SELECT").WithArgs(id).WillReturnError(sql.ErrNoRows)

	req := httptest.NewRequest(http.MethodGet, "/process-pdf?jobId="+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobStatusSucceeded(t *testing.T) {
	h, mock, _ := setupTestHandlers(t)
	router := SetupRoutes(h)
	id := uuid.New()

	mock.ExpectQuery("SELECT").WithArgs(id).
		WillReturnRows(jobRow(id, "succeeded", 100, "DocSmart_merged_documents_abcd1234.pdf", "https://example/out.pdf", 123, ""))

	req := httptest.NewRequest(http.MethodGet, "/process-pdf?jobId="+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "succeeded", resp["status"])
	assert.Equal(t, float64(100), resp["progress"])
	assert.Equal(t, "DocSmart_merged_documents_abcd1234.pdf", resp["outputFileName"])
	assert.Equal(t, "/download-proxied-file?jobId="+id.String(), resp["downloadLink"])
}

func TestJobStatusFailedCarriesError(t *testing.T) {
	h, mock, _ := setupTestHandlers(t)
	router := SetupRoutes(h)
	id := uuid.New()

	mock.ExpectQuery("SELECT").WithArgs(id).
		WillReturnRows(jobRow(id, "failed", 0, "", "", 0, `invalid page range "5-3": end before start`))

	req := httptest.NewRequest(http.MethodGet, "/process-pdf?jobId="+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "failed", resp["status"])
	assert.Contains(t, resp["error"], "range")
	assert.Nil(t, resp["downloadLink"])
}

func TestDownloadStreamsWithAttachment(t *testing.T) {
	h, mock, store := setupTestHandlers(t)
	router := SetupRoutes(h)
	id := uuid.New()
	fileName := "DocSmart_merged_documents_" + id.String()[:8] + ".pdf"

	_, err := store.Upload(context.Background(), "processed-pdfs",
		fmt.Sprintf("public/%s/%s", id, fileName), []byte("final pdf"), "application/pdf")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT").WithArgs(id).
		WillReturnRows(jobRow(id, "succeeded", 100, fileName, "https://example/out.pdf", 9, ""))
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE processing_jobs").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"access_count"}).AddRow(1))
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodGet, "/download-proxied-file?jobId="+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "final pdf", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), fileName)
}

func TestDownloadPastThresholdReturnsGone(t *testing.T) {
	h, mock, store := setupTestHandlers(t)
	router := SetupRoutes(h)
	id := uuid.New()
	fileName := "DocSmart_merged_documents_" + id.String()[:8] + ".pdf"

	key := fmt.Sprintf("public/%s/%s", id, fileName)
	_, err := store.Upload(context.Background(), "processed-pdfs", key, []byte("final pdf"), "application/pdf")
	require.NoError(t, err)

	mock.ExpectQuery("SELECT").WithArgs(id).
		WillReturnRows(jobRow(id, "succeeded", 100, fileName, "https://example/out.pdf", 9, ""))
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE processing_jobs").WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"access_count"}).AddRow(4))
	mock.ExpectExec("DELETE FROM processing_jobs").WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	req := httptest.NewRequest(http.MethodGet, "/download-proxied-file?jobId="+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusGone, rec.Code)

	// The artifact went with the record.
	_, err = store.Open(context.Background(), "processed-pdfs", key)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDownloadWithoutOutputReturnsNotFound(t *testing.T) {
	h, mock, _ := setupTestHandlers(t)
	router := SetupRoutes(h)
	id := uuid.New()

	mock.ExpectQuery("SELECT").WithArgs(id).
		WillReturnRows(jobRow(id, "in_progress", 40, "", "", 0, ""))

	req := httptest.NewRequest(http.MethodGet, "/download-proxied-file?jobId="+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFileSizeRoundsToMB(t *testing.T) {
	h, mock, _ := setupTestHandlers(t)
	router := SetupRoutes(h)
	id := uuid.New()

	mock.ExpectQuery("SELECT").WithArgs(id).
		WillReturnRows(jobRow(id, "succeeded", 100, "out.pdf", "https://example/out.pdf", 5*1024*1024/2, ""))

	req := httptest.NewRequest(http.MethodGet, "/file-size?fileId="+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2.5, resp["file_size_mb"])
}

func TestDeleteProcessedFileIsIdempotent(t *testing.T) {
	h, mock, _ := setupTestHandlers(t)
	router := SetupRoutes(h)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM processing_jobs").WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))

	req := httptest.NewRequest(http.MethodDelete, "/delete-processed-file?jobId="+id.String(), nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "true")
}

func TestBadJobIDParam(t *testing.T) {
	h, _, _ := setupTestHandlers(t)
	router := SetupRoutes(h)

	for _, path := range []string{
		"/process-pdf?jobId=not-a-uuid",
		"/download-proxied-file?jobId=",
		"/file-size?fileId=xyz",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}
