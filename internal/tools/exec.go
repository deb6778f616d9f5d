package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/docsmart/docsmart-backend/internal/config"
)

// stderrTailLimit bounds how much subprocess stderr is kept for error
// messages.
const stderrTailLimit = 500

// Runner spawns the external tool binaries. One Runner is shared by every
// handler; the binary paths come from configuration.
type Runner struct {
	cfg config.ToolsConfig
}

// NewRunner creates a Runner for the configured binaries.
func NewRunner(cfg config.ToolsConfig) *Runner {
	return &Runner{cfg: cfg}
}

func (r *Runner) Ghostscript() string { return r.cfg.Ghostscript }
func (r *Runner) QPDF() string        { return r.cfg.QPDF }
func (r *Runner) Soffice() string     { return r.cfg.Soffice }
func (r *Runner) PDFToPPM() string    { return r.cfg.PDFToPPM }
func (r *Runner) Img2PDF() string     { return r.cfg.Img2PDF }
func (r *Runner) PDF2Docx() string    { return r.cfg.PDF2Docx }

// Run executes the tool and waits for it. On non-zero exit it returns a
// ToolError with the truncated stderr tail; on context expiry the process
// is killed and a timeout error is returned.
func (r *Runner) Run(ctx context.Context, tool string, args ...string) error {
	_, err := r.run(ctx, tool, false, args...)
	return err
}

// RunOutput executes the tool and returns its stdout.
func (r *Runner) RunOutput(ctx context.Context, tool string, args ...string) ([]byte, error) {
	return r.run(ctx, tool, true, args...)
}

func (r *Runner) run(ctx context.Context, tool string, captureStdout bool, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, tool, args...)

	var stdout, stderr bytes.Buffer
	if captureStdout {
		cmd.Stdout = &stdout
	}
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	// Context expiry wins over the exit error the kill produced.
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out", toolName(tool))
		}
		return nil, fmt.Errorf("%s cancelled: %w", toolName(tool), ctxErr)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, &ToolError{
			Tool:     toolName(tool),
			ExitCode: exitErr.ExitCode(),
			Stderr:   tailOf(stderr.String()),
		}
	}
	return nil, fmt.Errorf("running %s: %w", toolName(tool), err)
}

// toolName strips any directory component so errors name the binary, not
// its install path.
func toolName(tool string) string {
	if idx := strings.LastIndexByte(tool, '/'); idx >= 0 {
		return tool[idx+1:]
	}
	return tool
}

func tailOf(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrTailLimit {
		return s
	}
	return "..." + s[len(s)-stderrTailLimit:]
}
