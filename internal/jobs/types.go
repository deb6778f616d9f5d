package jobs

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a processing job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is absorbing (succeeded or failed).
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// Tool identifiers accepted by the submission API. Each maps to exactly one
// registered handler.
const (
	ToolMerge          = "merge"
	ToolSplit          = "split"
	ToolRotate         = "rotate"
	ToolRemove         = "remove"
	ToolImageToPDF     = "img2pdf"
	ToolPDFToImage     = "pdf2img"
	ToolPDFToWord      = "pdfToWord"
	ToolDocxToPDF      = "docxToPdf"
	ToolProtectPDF     = "protectPdf"
	ToolUnlockPDF      = "unlockPdf"
	ToolAddWatermark   = "addWatermark"
	ToolAddPageNumbers = "addPageNumbers"
	ToolRepairPDF      = "repairPdf"
	ToolCompress       = "compress"
)

// KnownTools lists every accepted tool id.
var KnownTools = []string{
	ToolMerge, ToolSplit, ToolRotate, ToolRemove,
	ToolImageToPDF, ToolPDFToImage, ToolPDFToWord, ToolDocxToPDF,
	ToolProtectPDF, ToolUnlockPDF, ToolAddWatermark, ToolAddPageNumbers,
	ToolRepairPDF, ToolCompress,
}

// IsKnownTool reports whether toolID maps to a handler.
func IsKnownTool(toolID string) bool {
	for _, t := range KnownTools {
		if t == toolID {
			return true
		}
	}
	return false
}

// Options is the free-form, tool-specific configuration envelope submitted
// with a job. It is set at submit time and read-only thereafter.
type Options map[string]interface{}

// String returns the string value under key, or "" if absent or not a string.
func (o Options) String(key string) string {
	v, ok := o[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Bool returns the boolean value under key, accepting JSON booleans and the
// strings "true"/"false".
func (o Options) Bool(key string) bool {
	switch v := o[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// IntSlice returns the integer list under key. JSON numbers arrive as
// float64; both are accepted.
func (o Options) IntSlice(key string) []int {
	raw, ok := o[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case float64:
			out = append(out, int(n))
		case int:
			out = append(out, n)
		}
	}
	return out
}

// Job is the durable record of a single client request. The repository owns
// every state transition; workers and the download gate mutate rows only
// through repository primitives.
type Job struct {
	ID             uuid.UUID `json:"id"`
	ToolID         string    `json:"tool_id"`
	Status         Status    `json:"status"`
	Progress       int       `json:"progress"`
	InputFilePaths []string  `json:"input_file_paths"`
	Options        Options   `json:"options"`
	FileName       string    `json:"file_name,omitempty"`
	PublicURL      string    `json:"public_url,omitempty"`
	FileSize       int64     `json:"file_size,omitempty"`
	AccessCount    int       `json:"access_count"`
	WorkerID       string    `json:"worker_id,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// FileSizeMB returns the output size in megabytes rounded to 2 decimals.
func (j *Job) FileSizeMB() float64 {
	return RoundMB(j.FileSize)
}

// RoundMB converts a byte count to megabytes rounded to 2 decimals.
func RoundMB(bytes int64) float64 {
	return math.Round(float64(bytes)/(1024*1024)*100) / 100
}

// ParseOptions decodes the JSON options envelope from a submission form.
// An empty string yields an empty envelope.
func ParseOptions(raw string) (Options, error) {
	if raw == "" {
		return Options{}, nil
	}
	var opts Options
	if err := json.Unmarshal([]byte(raw), &opts); err != nil {
		return nil, fmt.Errorf("invalid options JSON: %w", err)
	}
	if opts == nil {
		opts = Options{}
	}
	return opts, nil
}

// ShortID returns the first 8 characters of the job id, used in output
// artifact names.
func ShortID(id uuid.UUID) string {
	return id.String()[:8]
}
