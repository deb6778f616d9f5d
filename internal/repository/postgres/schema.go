package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the processing_jobs table definition. cmd/migrate applies it;
// EnsureSchema is also safe to call at startup in development.
const Schema = `
CREATE TABLE IF NOT EXISTS processing_jobs (
	id               UUID PRIMARY KEY,
	tool_id          TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	progress         INT  NOT NULL DEFAULT 0,
	input_file_paths TEXT[] NOT NULL DEFAULT '{}',
	options          JSONB NOT NULL DEFAULT '{}',
	file_name        TEXT,
	public_url       TEXT,
	file_size        BIGINT,
	access_count     INT  NOT NULL DEFAULT 0,
	worker_id        TEXT,
	error_message    TEXT,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_processing_jobs_pending
	ON processing_jobs (created_at) WHERE status = 'pending';

CREATE INDEX IF NOT EXISTS idx_processing_jobs_terminal
	ON processing_jobs (updated_at) WHERE status IN ('succeeded', 'failed');
`

// EnsureSchema creates the job table and its indexes if absent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
