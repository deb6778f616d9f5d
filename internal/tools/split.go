package tools

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docsmart/docsmart-backend/internal/jobs"
)

// splitHandler extracts page ranges from a PDF. Exactly one range yields a
// bare PDF; multiple ranges yield a ZIP with one entry per range, named
// after the range, in submission order.
type splitHandler struct {
	run *Runner
}

func (h *splitHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	ranges, err := jobs.ParsePageRanges(req.Options.String("pageRange"))
	if err != nil {
		return nil, &InputError{Reason: err.Error()}
	}
	input := req.Inputs[0]
	req.progress(20)

	type part struct {
		label string
		path  string
	}
	parts := make([]part, 0, len(ranges))
	for i, r := range ranges {
		out := filepath.Join(req.ScratchDir, fmt.Sprintf("part_%d.pdf", i))
		spec := fmt.Sprintf("%d-%d", r.Start, r.End)
		if err := h.run.Run(ctx, h.run.QPDF(), "--empty", "--pages", input, spec, "--", out); err != nil {
			return nil, err
		}
		parts = append(parts, part{label: r.Label(), path: out})

		// Ranges ramp through the handler's progress window.
		req.progress(20 + (i+1)*60/len(ranges))
	}

	if len(parts) == 1 {
		data, err := os.ReadFile(parts[0].path)
		if err != nil {
			return nil, err
		}
		return &Result{
			Data:      data,
			MimeType:  MimePDF,
			BaseName:  strings.TrimSuffix(parts[0].label, ".pdf"),
			Extension: ".pdf",
		}, nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, p := range parts {
		data, err := os.ReadFile(p.path)
		if err != nil {
			return nil, err
		}
		w, err := zw.Create(p.label)
		if err != nil {
			return nil, fmt.Errorf("adding %s to archive: %w", p.label, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("writing %s to archive: %w", p.label, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}

	return &Result{
		Data:      buf.Bytes(),
		MimeType:  MimeZIP,
		BaseName:  "split_pages",
		Extension: ".zip",
	}, nil
}
