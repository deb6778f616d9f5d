package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsmart/docsmart-backend/internal/repository/postgres"
	"github.com/docsmart/docsmart-backend/internal/tools"
)

func TestErrorMessageFromToolError(t *testing.T) {
	err := &tools.ToolError{Tool: "gs", ExitCode: 1, Stderr: "Unrecoverable error"}
	msg := errorMessage(err)

	assert.Contains(t, msg, "gs")
	assert.Contains(t, msg, "exited with code 1")
	assert.Contains(t, msg, "Unrecoverable error")
}

func TestErrorMessageFromInputError(t *testing.T) {
	err := &tools.InputError{Reason: `invalid page range "5-3": end before start`}
	assert.Equal(t, `invalid page range "5-3": end before start`, errorMessage(err))
}

func TestErrorMessageTruncates(t *testing.T) {
	msg := errorMessage(errors.New(strings.Repeat("z", 2000)))
	assert.Len(t, msg, errorMessageLimit+3)
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestProgressTrackerIsMonotone(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := postgres.NewJobRepo(db, 3)
	id := uuid.New()
	tracker := newProgressTracker(repo, id)
	ctx := context.Background()

	// Only strictly increasing values reach the repository.
	mock.ExpectExec("UPDATE processing_jobs").
		WithArgs(id, "in_progress", 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE processing_jobs").
		WithArgs(id, "in_progress", 40).
		WillReturnResult(sqlmock.NewResult(0, 1))

	tracker.update(ctx, 10)
	tracker.update(ctx, 10) // duplicate suppressed
	tracker.update(ctx, 5)  // regression suppressed
	tracker.update(ctx, 40)

	assert.NoError(t, mock.ExpectationsWereMet())
}
