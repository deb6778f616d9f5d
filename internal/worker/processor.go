package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docsmart/docsmart-backend/internal/config"
	"github.com/docsmart/docsmart-backend/internal/jobs"
	"github.com/docsmart/docsmart-backend/internal/repository/postgres"
	"github.com/docsmart/docsmart-backend/internal/storage"
	"github.com/docsmart/docsmart-backend/internal/tools"
)

// Pool runs a fleet of job processors. Each processor owns one job from
// claim to terminal state; parallelism comes from multiple processors, not
// from concurrency inside one.
type Pool struct {
	repo     *postgres.JobRepo
	store    *storage.Store
	registry *tools.Registry
	timing   *Timing

	storageCfg config.StorageConfig
	workerCfg  config.WorkerConfig

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewPool creates a processor pool.
func NewPool(repo *postgres.JobRepo, store *storage.Store, registry *tools.Registry, timing *Timing, storageCfg config.StorageConfig, workerCfg config.WorkerConfig) *Pool {
	return &Pool{
		repo:       repo,
		store:      store,
		registry:   registry,
		timing:     timing,
		storageCfg: storageCfg,
		workerCfg:  workerCfg,
	}
}

// Start launches the processors. Calling Start on a running pool is a
// no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	log.Printf("[Processor] Starting %d workers (poll_interval=%s)", p.workerCfg.Count, p.workerCfg.PollInterval())
	for i := 0; i < p.workerCfg.Count; i++ {
		proc := &processor{
			pool:     p,
			workerID: fmt.Sprintf("worker-%s", uuid.New().String()[:8]),
		}
		p.wg.Add(1)
		go proc.run(p.ctx)
	}
}

// Stop cancels the processors and waits for in-flight jobs to reach a
// terminal state.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	log.Println("[Processor] Stopping workers...")
	p.wg.Wait()
	log.Println("[Processor] Stopped")
}

// processor is one claim-to-terminal worker loop.
type processor struct {
	pool     *Pool
	workerID string
}

func (w *processor) run(ctx context.Context) {
	defer w.pool.wg.Done()
	log.Printf("[Processor] %s polling", w.workerID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.pool.repo.ClaimNext(ctx, w.workerID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Processor] %s: claim error: %v", w.workerID, err)
			sleepCtx(ctx, time.Second)
			continue
		}
		if job == nil {
			sleepCtx(ctx, w.pool.workerCfg.PollInterval())
			continue
		}

		start := time.Now()
		if err := w.process(ctx, job); err != nil {
			w.fail(job, err)
		} else if w.pool.timing != nil {
			w.pool.timing.Record(ctx, time.Since(start))
		}
	}
}

// process drives one claimed job: download inputs, dispatch, upload the
// result, record success. Scratch files and raw inputs are reclaimed on
// every exit path.
func (w *processor) process(ctx context.Context, job *jobs.Job) error {
	log.Printf("[Processor] %s: claimed job %s (%s)", w.workerID, job.ID, job.ToolID)

	scratchDir := filepath.Join(os.TempDir(), job.ID.String())
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return fmt.Errorf("creating scratch directory: %w", err)
	}
	defer func() {
		os.RemoveAll(scratchDir)
		w.deleteRawInputs(job)
	}()

	handler, ok := w.pool.registry.Get(job.ToolID)
	if !ok {
		return fmt.Errorf("no handler registered for tool %q", job.ToolID)
	}

	tracker := newProgressTracker(w.pool.repo, job.ID)
	tracker.update(ctx, 10)

	// Download raw inputs into scratch; progress ramps 10-20%.
	inputs := make([]string, 0, len(job.InputFilePaths))
	for i, key := range job.InputFilePaths {
		data, err := w.pool.store.Download(ctx, w.pool.storageCfg.RawBucket, key)
		if err != nil {
			return fmt.Errorf("downloading input %s: %w", filepath.Base(key), err)
		}
		local := filepath.Join(scratchDir, fmt.Sprintf("input_%d_%s", i, filepath.Base(key)))
		if err := os.WriteFile(local, data, 0o644); err != nil {
			return fmt.Errorf("staging input: %w", err)
		}
		inputs = append(inputs, local)
		tracker.update(ctx, 10+(i+1)*10/len(job.InputFilePaths))
	}

	timeout := w.pool.workerCfg.HandlerTimeout()
	if tools.IsOfficeTool(job.ToolID) {
		timeout = w.pool.workerCfg.OfficeTimeout()
	}
	handlerCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := handler.Handle(handlerCtx, &tools.Request{
		Inputs:     inputs,
		Options:    job.Options,
		ScratchDir: scratchDir,
		Progress:   func(pct int) { tracker.update(ctx, pct) },
	})
	if err != nil {
		return err
	}
	tracker.update(ctx, 80)

	finalName := fmt.Sprintf("DocSmart_%s_%s%s", result.BaseName, jobs.ShortID(job.ID), result.Extension)
	key := fmt.Sprintf("public/%s/%s", job.ID, finalName)
	publicURL, err := w.pool.store.Upload(ctx, w.pool.storageCfg.ProcessedBucket, key, result.Data, result.MimeType)
	if err != nil {
		return fmt.Errorf("uploading result: %w", err)
	}
	tracker.update(ctx, 90)

	// The artifact path is deterministic from the job id, so retrying the
	// success update after a transient failure never duplicates output.
	upd := &postgres.ProgressUpdate{
		FileName:  finalName,
		PublicURL: publicURL,
		FileSize:  int64(len(result.Data)),
	}
	var updateErr error
	for attempt := 0; attempt < 3; attempt++ {
		if updateErr = w.pool.repo.UpdateProgress(ctx, job.ID, jobs.StatusSucceeded, 100, upd); updateErr == nil {
			break
		}
		sleepCtx(ctx, time.Duration(attempt+1)*time.Second)
	}
	if updateErr != nil {
		return fmt.Errorf("recording success: %w", updateErr)
	}

	log.Printf("[Processor] %s: job %s succeeded (%s, %d bytes)", w.workerID, job.ID, finalName, len(result.Data))
	return nil
}

// fail marks the job failed with a bounded, sanitized message.
func (w *processor) fail(job *jobs.Job, cause error) {
	msg := errorMessage(cause)
	log.Printf("[Processor] %s: job %s failed: %s", w.workerID, job.ID, msg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := w.pool.repo.UpdateProgress(ctx, job.ID, jobs.StatusFailed, 0, &postgres.ProgressUpdate{ErrorMessage: msg})
	if err != nil {
		log.Printf("[Processor] %s: could not mark job %s failed: %v", w.workerID, job.ID, err)
	}
}

// deleteRawInputs reclaims the job's raw input artifacts. A failure here is
// logged, not fatal: the retention sweeper picks up leftovers.
func (w *processor) deleteRawInputs(job *jobs.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	prefix := fmt.Sprintf("public/%s/", job.ID)
	if err := w.pool.store.DeletePrefix(ctx, w.pool.storageCfg.RawBucket, prefix); err != nil {
		log.Printf("[Processor] %s: could not delete raw inputs for %s: %v", w.workerID, job.ID, err)
	}
}

// errorMessageLimit bounds error_message so stderr dumps stay readable.
const errorMessageLimit = 600

func errorMessage(err error) string {
	var toolErr *tools.ToolError
	var inputErr *tools.InputError

	var msg string
	switch {
	case errors.As(err, &toolErr):
		msg = toolErr.Error()
	case errors.As(err, &inputErr):
		msg = inputErr.Reason
	default:
		msg = err.Error()
	}

	msg = strings.TrimSpace(msg)
	if len(msg) > errorMessageLimit {
		msg = msg[:errorMessageLimit] + "..."
	}
	return msg
}

// progressTracker serializes repository progress updates and keeps the
// reported value monotone even when handler ticks race the loop's own
// milestones.
type progressTracker struct {
	repo *postgres.JobRepo
	id   uuid.UUID
	mu   sync.Mutex
	last int
}

func newProgressTracker(repo *postgres.JobRepo, id uuid.UUID) *progressTracker {
	return &progressTracker{repo: repo, id: id}
}

func (t *progressTracker) update(ctx context.Context, pct int) {
	t.mu.Lock()
	if pct <= t.last {
		t.mu.Unlock()
		return
	}
	t.last = pct
	t.mu.Unlock()

	if err := t.repo.UpdateProgress(ctx, t.id, jobs.StatusInProgress, pct, nil); err != nil {
		log.Printf("[Processor] progress update for %s: %v", t.id, err)
	}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
