package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/docsmart/docsmart-backend/internal/jobs"
)

// ErrNotFound is returned when the addressed job does not exist.
var ErrNotFound = errors.New("job not found")

// JobRepo implements the job repository against PostgreSQL. It exclusively
// owns state transitions: workers and the download gate mutate rows only
// through these primitives.
type JobRepo struct {
	db              *sql.DB
	accessThreshold int
}

// NewJobRepo creates a Postgres-backed job repository. accessThreshold is
// the maximum number of successful downloads before the record is removed.
func NewJobRepo(db *sql.DB, accessThreshold int) *JobRepo {
	if accessThreshold <= 0 {
		accessThreshold = 3
	}
	return &JobRepo{db: db, accessThreshold: accessThreshold}
}

const jobColumns = `id, tool_id, status, progress, input_file_paths, options,
	COALESCE(file_name,''), COALESCE(public_url,''), COALESCE(file_size,0),
	access_count, COALESCE(worker_id,''), COALESCE(error_message,''),
	created_at, updated_at`

func scanJob(scan func(dest ...interface{}) error) (*jobs.Job, error) {
	j := &jobs.Job{}
	var inputPaths pq.StringArray
	var optionsRaw []byte
	err := scan(
		&j.ID, &j.ToolID, &j.Status, &j.Progress, &inputPaths, &optionsRaw,
		&j.FileName, &j.PublicURL, &j.FileSize,
		&j.AccessCount, &j.WorkerID, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	j.InputFilePaths = []string(inputPaths)
	if len(optionsRaw) > 0 {
		if err := json.Unmarshal(optionsRaw, &j.Options); err != nil {
			return nil, fmt.Errorf("parse job options: %w", err)
		}
	}
	if j.Options == nil {
		j.Options = jobs.Options{}
	}
	return j, nil
}

// InsertPending creates a new pending job under the given id. The caller
// mints the id so raw inputs can be uploaded under their job prefix before
// the row exists.
func (r *JobRepo) InsertPending(ctx context.Context, id uuid.UUID, toolID string, inputPaths []string, options jobs.Options) error {
	optionsJSON, err := json.Marshal(options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO processing_jobs
			(id, tool_id, status, progress, input_file_paths, options, access_count, created_at, updated_at)
		VALUES ($1, $2, 'pending', 0, $3, $4, 0, NOW(), NOW())
	`, id, toolID, pq.Array(inputPaths), optionsJSON)
	if err != nil {
		return fmt.Errorf("insert pending job: %w", err)
	}
	return nil
}

// ClaimNext atomically claims the oldest pending job for workerID and
// returns it, or nil when the queue is empty. FOR UPDATE SKIP LOCKED keeps
// concurrent claimers from ever observing the same row.
func (r *JobRepo) ClaimNext(ctx context.Context, workerID string) (*jobs.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		WITH claimed AS (
			UPDATE processing_jobs
			SET status = 'in_progress',
			    worker_id = $1,
			    progress = 0,
			    updated_at = NOW()
			WHERE id = (
				SELECT id FROM processing_jobs
				WHERE status = 'pending'
				ORDER BY created_at ASC
				LIMIT 1
				FOR UPDATE SKIP LOCKED
			)
			RETURNING `+jobColumns+`
		)
		SELECT `+jobColumns+` FROM claimed
	`, workerID)

	j, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return j, nil
}

// ProgressUpdate carries the optional fields of an UpdateProgress call.
type ProgressUpdate struct {
	FileName     string
	PublicURL    string
	ErrorMessage string
	FileSize     int64
}

// UpdateProgress applies a partial state update. Transitions violating the
// record invariants are rejected: terminal progress is forced (100 for
// succeeded, 0 for failed), a success must carry an output name and URL, and
// progress never moves backwards within a status.
func (r *JobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, status jobs.Status, progress int, upd *ProgressUpdate) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	if upd == nil {
		upd = &ProgressUpdate{}
	}

	switch status {
	case jobs.StatusSucceeded:
		progress = 100
		if upd.FileName == "" || upd.PublicURL == "" {
			return fmt.Errorf("succeeded update requires file_name and public_url")
		}
	case jobs.StatusFailed:
		progress = 0
	default:
		if progress < 0 || progress > 100 {
			return fmt.Errorf("progress %d out of range", progress)
		}
	}

	// GREATEST keeps in-flight progress monotone even if updates land out of
	// order; terminal statuses overwrite unconditionally.
	var res sql.Result
	var err error
	if status.Terminal() {
		res, err = r.db.ExecContext(ctx, `
			UPDATE processing_jobs
			SET status = $2,
			    progress = $3,
			    file_name = NULLIF($4, ''),
			    public_url = NULLIF($5, ''),
			    error_message = NULLIF($6, ''),
			    file_size = NULLIF($7, 0),
			    worker_id = NULL,
			    updated_at = NOW()
			WHERE id = $1 AND status = 'in_progress'
		`, id, status, progress, upd.FileName, upd.PublicURL, upd.ErrorMessage, upd.FileSize)
	} else {
		res, err = r.db.ExecContext(ctx, `
			UPDATE processing_jobs
			SET status = $2,
			    progress = GREATEST(progress, $3),
			    updated_at = NOW()
			WHERE id = $1 AND status IN ('pending', 'in_progress')
		`, id, status, progress)
	}
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %s: %w or already terminal", id, ErrNotFound)
	}
	return nil
}

// AccessResult is the outcome of IncrementAccessAndMaybeDelete.
type AccessResult struct {
	Deleted     bool
	AccessCount int
}

// IncrementAccessAndMaybeDelete atomically bumps the access count for one
// download. While the post-increment count stays within the threshold the
// download proceeds; past it the row is removed in the same transaction and
// the caller must delete the artifact. The row lock taken by UPDATE
// serializes concurrent gates per job id.
func (r *JobRepo) IncrementAccessAndMaybeDelete(ctx context.Context, id uuid.UUID) (*AccessResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin access transaction: %w", err)
	}
	defer tx.Rollback()

	var count int
	err = tx.QueryRowContext(ctx, `
		UPDATE processing_jobs
		SET access_count = access_count + 1,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING access_count
	`, id).Scan(&count)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("increment access count: %w", err)
	}

	result := &AccessResult{AccessCount: count}
	if count > r.accessThreshold {
		if _, err := tx.ExecContext(ctx, `DELETE FROM processing_jobs WHERE id = $1`, id); err != nil {
			return nil, fmt.Errorf("delete exhausted job: %w", err)
		}
		result.Deleted = true
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit access transaction: %w", err)
	}
	return result, nil
}

// Get returns the job with the given id.
func (r *JobRepo) Get(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM processing_jobs WHERE id = $1
	`, id)

	j, err := scanJob(row.Scan)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

// QueueCounts returns the number of pending and in-progress jobs, used for
// the submission ETA.
func (r *JobRepo) QueueCounts(ctx context.Context) (pending, inProgress int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'in_progress')
		FROM processing_jobs
	`).Scan(&pending, &inProgress)
	if err != nil {
		return 0, 0, fmt.Errorf("queue counts: %w", err)
	}
	return pending, inProgress, nil
}

// SweepTerminalOlderThan returns terminal jobs whose last update is older
// than the retention window. The caller deletes artifacts first, then calls
// Delete per job.
func (r *JobRepo) SweepTerminalOlderThan(ctx context.Context, retention time.Duration) ([]*jobs.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM processing_jobs
		WHERE status IN ('succeeded', 'failed')
		  AND updated_at < NOW() - $1::interval
		ORDER BY updated_at ASC
	`, fmt.Sprintf("%d seconds", int(retention.Seconds())))
	if err != nil {
		return nil, fmt.Errorf("sweep terminal jobs: %w", err)
	}
	defer rows.Close()

	var out []*jobs.Job
	for rows.Next() {
		j, err := scanJob(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan swept job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Delete removes the job row. Deleting an absent row is not an error, so
// the endpoint stays idempotent.
func (r *JobRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM processing_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	return nil
}
