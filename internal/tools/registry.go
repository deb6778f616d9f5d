package tools

import (
	"github.com/docsmart/docsmart-backend/internal/jobs"
)

// Registry maps tool ids to their handlers. Dispatch is a flat table; no
// handler knows about any other.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds the full handler table over one shared Runner.
func NewRegistry(run *Runner) *Registry {
	return &Registry{handlers: map[string]Handler{
		jobs.ToolMerge:          &mergeHandler{run: run},
		jobs.ToolSplit:          &splitHandler{run: run},
		jobs.ToolRotate:         &rotateHandler{run: run},
		jobs.ToolRemove:         &removeHandler{run: run},
		jobs.ToolImageToPDF:     &imageToPDFHandler{run: run},
		jobs.ToolPDFToImage:     &pdfToImageHandler{run: run},
		jobs.ToolPDFToWord:      &pdfToWordHandler{run: run},
		jobs.ToolDocxToPDF:      &docxToPDFHandler{run: run},
		jobs.ToolProtectPDF:     &protectHandler{run: run},
		jobs.ToolUnlockPDF:      &unlockHandler{run: run},
		jobs.ToolAddWatermark:   &watermarkHandler{run: run},
		jobs.ToolAddPageNumbers: &pageNumbersHandler{run: run},
		jobs.ToolRepairPDF:      &repairHandler{run: run},
		jobs.ToolCompress:       &compressHandler{run: run},
	}}
}

// Get returns the handler for toolID.
func (r *Registry) Get(toolID string) (Handler, bool) {
	h, ok := r.handlers[toolID]
	return h, ok
}

// IsOfficeTool reports whether toolID runs an Office conversion, which gets
// the longer soft timeout.
func IsOfficeTool(toolID string) bool {
	return toolID == jobs.ToolPDFToWord || toolID == jobs.ToolDocxToPDF
}

// ValidateSubmission checks file arity and options for a tool before a job
// is enqueued. Anything rejected here is a 400 and never reaches a worker.
func ValidateSubmission(toolID string, fileCount int, opts jobs.Options) error {
	if !jobs.IsKnownTool(toolID) {
		return inputErrorf("unknown toolId %q", toolID)
	}

	switch toolID {
	case jobs.ToolMerge:
		if fileCount < 2 {
			return inputErrorf("merge requires at least 2 files, got %d", fileCount)
		}
	case jobs.ToolImageToPDF:
		if fileCount < 1 {
			return inputErrorf("img2pdf requires at least 1 image")
		}
	default:
		if fileCount != 1 {
			return inputErrorf("%s requires exactly 1 file, got %d", toolID, fileCount)
		}
	}

	switch toolID {
	case jobs.ToolSplit:
		if _, err := jobs.ParsePageRanges(opts.String("pageRange")); err != nil {
			return &InputError{Reason: err.Error()}
		}
	case jobs.ToolRotate:
		switch opts.String("angle") {
		case "":
			// angle may also arrive as a JSON number
			switch angleOf(opts) {
			case 90, 180, 270:
			default:
				return inputErrorf("rotate angle must be 90, 180 or 270")
			}
		case "90", "180", "270":
		default:
			return inputErrorf("rotate angle must be 90, 180 or 270")
		}
	case jobs.ToolRemove:
		pages := opts.IntSlice("pages")
		if len(pages) == 0 {
			return inputErrorf("remove requires a non-empty pages list")
		}
		for _, p := range pages {
			if p < 1 {
				return inputErrorf("remove pages are 1-based, got %d", p)
			}
		}
	case jobs.ToolProtectPDF:
		if opts.String("password") == "" {
			return inputErrorf("protectPdf requires a non-empty password")
		}
	case jobs.ToolCompress:
		if _, err := ProfileFor(opts.String("compressionLevel")); err != nil {
			return err
		}
	}
	return nil
}

// angleOf reads the rotate angle, accepting both JSON numbers and numeric
// strings.
func angleOf(opts jobs.Options) int {
	switch v := opts["angle"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		switch v {
		case "90":
			return 90
		case "180":
			return 180
		case "270":
			return 270
		}
	}
	return 0
}
