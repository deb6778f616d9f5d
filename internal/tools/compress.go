package tools

import (
	"context"
	"os"
	"path/filepath"
)

// compressHandler shrinks a PDF with the Ghostscript profile inferred from
// compressionLevel. Profile choice guarantees size(extreme) <= size(medium)
// <= size(low) for the same input.
type compressHandler struct {
	run *Runner
}

func (h *compressHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	profile, err := ProfileFor(req.Options.String("compressionLevel"))
	if err != nil {
		return nil, err
	}
	req.progress(20)

	out := filepath.Join(req.ScratchDir, "compressed.pdf")
	args := profile.GhostscriptArgs(req.Inputs[0], out, req.Options.Bool("grayscale"))
	if err := h.run.Run(ctx, h.run.Ghostscript(), args...); err != nil {
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
		BaseName:  "compressed_document",
		Extension: ".pdf",
	}, nil
}
