package tools

import (
	"context"
	"os"
	"path/filepath"
)

// mergeHandler concatenates two or more PDFs in submission order.
type mergeHandler struct {
	run *Runner
}

func (h *mergeHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Inputs) < 2 {
		return nil, inputErrorf("merge requires at least 2 files, got %d", len(req.Inputs))
	}
	req.progress(20)

	out := filepath.Join(req.ScratchDir, "merged.pdf")
	args := []string{"--empty", "--pages"}
	args = append(args, req.Inputs...)
	args = append(args, "--", out)

	if err := h.run.Run(ctx, h.run.QPDF(), args...); err != nil {
		return nil, err
	}
	req.progress(70)

	data, err := os.ReadFile(out)
	if err != nil {
		return nil, err
	}
	req.progress(80)

	return &Result{
		Data:      data,
		MimeType:  MimePDF,
		BaseName:  "merged_documents",
		Extension: ".pdf",
	}, nil
}
