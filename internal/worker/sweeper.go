package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/docsmart/docsmart-backend/internal/config"
	"github.com/docsmart/docsmart-backend/internal/repository/postgres"
	"github.com/docsmart/docsmart-backend/internal/storage"
)

// RetentionSweeper periodically removes terminal jobs older than the
// retention window, artifacts first, then rows. Non-terminal jobs are never
// touched regardless of age. The sweep works from job rows only: artifacts of
// a job left in_progress (a worker that crashed between upload and the
// success update) and artifacts whose row is already gone are not reclaimed.
type RetentionSweeper struct {
	repo       *postgres.JobRepo
	store      *storage.Store
	storageCfg config.StorageConfig
	interval   time.Duration
	retention  time.Duration

	startOnce sync.Once
}

// NewRetentionSweeper creates a sweeper with the configured window and
// tick.
func NewRetentionSweeper(repo *postgres.JobRepo, store *storage.Store, storageCfg config.StorageConfig, retentionCfg config.RetentionConfig) *RetentionSweeper {
	return &RetentionSweeper{
		repo:       repo,
		store:      store,
		storageCfg: storageCfg,
		interval:   retentionCfg.CleanupInterval(),
		retention:  retentionCfg.Window(),
	}
}

// Start launches the sweep loop in a goroutine. Start is idempotent: only
// the first call per process has an effect.
func (s *RetentionSweeper) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		go s.loop(ctx)
	})
}

func (s *RetentionSweeper) loop(ctx context.Context) {
	log.Printf("[RetentionSweep] Starting (interval=%s, retention=%s)", s.interval, s.retention)

	// Run once immediately on start
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[RetentionSweep] Stopping")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *RetentionSweeper) sweep(ctx context.Context) {
	start := time.Now()

	expired, err := s.repo.SweepTerminalOlderThan(ctx, s.retention)
	if err != nil {
		log.Printf("[RetentionSweep] Scan error: %v", err)
		return
	}
	if len(expired) == 0 {
		return
	}

	removed := 0
	for _, job := range expired {
		if ctx.Err() != nil {
			return
		}

		// Artifacts go first so a crash mid-sweep leaves a row that the
		// next cycle retries, never an unreachable blob.
		prefix := fmt.Sprintf("public/%s/", job.ID)
		if err := s.store.DeletePrefix(ctx, s.storageCfg.ProcessedBucket, prefix); err != nil {
			log.Printf("[RetentionSweep] Could not delete artifacts for %s: %v", job.ID, err)
			continue
		}
		if err := s.store.DeletePrefix(ctx, s.storageCfg.RawBucket, prefix); err != nil {
			log.Printf("[RetentionSweep] Could not delete raw inputs for %s: %v", job.ID, err)
			continue
		}
		if err := s.repo.Delete(ctx, job.ID); err != nil {
			log.Printf("[RetentionSweep] Could not delete job %s: %v", job.ID, err)
			continue
		}
		removed++
	}

	log.Printf("[RetentionSweep] Removed %d/%d expired jobs in %s", removed, len(expired), time.Since(start).Round(time.Millisecond))
}
