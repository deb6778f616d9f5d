package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsmart/docsmart-backend/internal/config"
)

func testRunner() *Runner {
	return NewRunner(config.ToolsConfig{})
}

func TestRunnerCapturesExitCodeAndStderr(t *testing.T) {
	run := testRunner()
	err := run.Run(context.Background(), "sh", "-c", "echo boom >&2; exit 3")
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "sh", toolErr.Tool)
	assert.Equal(t, 3, toolErr.ExitCode)
	assert.Contains(t, toolErr.Stderr, "boom")
	assert.Contains(t, toolErr.Error(), "exited with code 3")
}

func TestRunnerSuccess(t *testing.T) {
	run := testRunner()
	assert.NoError(t, run.Run(context.Background(), "true"))
}

func TestRunnerOutput(t *testing.T) {
	run := testRunner()
	out, err := run.RunOutput(context.Background(), "sh", "-c", "echo 7")
	require.NoError(t, err)
	assert.Equal(t, "7\n", string(out))
}

func TestRunnerTimeout(t *testing.T) {
	run := testRunner()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := run.Run(ctx, "sleep", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestRunnerStripsBinaryPath(t *testing.T) {
	run := testRunner()
	err := run.Run(context.Background(), "/bin/sh", "-c", "exit 1")
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "sh", toolErr.Tool)
}

func TestTailOf(t *testing.T) {
	assert.Equal(t, "short", tailOf("  short \n"))

	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	tail := tailOf(string(long))
	assert.Len(t, tail, stderrTailLimit+3)
	assert.Equal(t, "...", tail[:3])
}

func TestSanitizeSecret(t *testing.T) {
	assert.Equal(t, "password *** rejected", sanitizeSecret("password hunter2 rejected", "hunter2"))
	assert.Equal(t, "unchanged", sanitizeSecret("unchanged", ""))
}
