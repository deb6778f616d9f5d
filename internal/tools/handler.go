package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/docsmart/docsmart-backend/internal/jobs"
)

// Result is what a handler produces: raw output bytes plus enough metadata
// for the worker to name and upload the artifact.
type Result struct {
	Data      []byte
	MimeType  string
	BaseName  string
	Extension string
}

// Request carries a handler invocation. Inputs are local paths inside the
// job's scratch directory; handlers write intermediates to ScratchDir and
// must remove anything they create outside it. Progress is optional.
type Request struct {
	Inputs     []string
	Options    jobs.Options
	ScratchDir string
	Progress   func(pct int)
}

func (r *Request) progress(pct int) {
	if r.Progress != nil {
		r.Progress(pct)
	}
}

// Handler is a pure function from local input files and options to an
// output buffer. Handlers never touch the job repository.
type Handler interface {
	Handle(ctx context.Context, req *Request) (*Result, error)
}

// ToolError is a subprocess failure, carrying the tool name, exit code and
// a truncated stderr tail. Command arguments are never included: they can
// carry passwords.
type ToolError struct {
	Tool     string
	ExitCode int
	Stderr   string
}

func (e *ToolError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Tool, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Tool, e.ExitCode, e.Stderr)
}

// InputError marks a fatal problem with the submitted files or options. The
// submission API rejects these with 400 so they never reach a worker;
// handlers still raise them for anything only visible at processing time.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string { return e.Reason }

func inputErrorf(format string, args ...interface{}) error {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}

// MIME types and extensions of the produced artifacts.
const (
	MimePDF  = "application/pdf"
	MimeZIP  = "application/zip"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// sanitizeSecret removes a secret value from subprocess output before it can
// reach logs or the job's error_message.
func sanitizeSecret(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}
