package tools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// rotateHandler rotates the given pages (or every page) by a fixed angle.
type rotateHandler struct {
	run *Runner
}

func (h *rotateHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	angle := angleOf(req.Options)
	switch angle {
	case 90, 180, 270:
	default:
		return nil, inputErrorf("rotate angle must be 90, 180 or 270")
	}
	req.progress(20)

	rotateSpec := fmt.Sprintf("+%d", angle)
	if pages := req.Options.IntSlice("pages"); len(pages) > 0 {
		specs := make([]string, len(pages))
		for i, p := range pages {
			if p < 1 {
				return nil, inputErrorf("rotate pages are 1-based, got %d", p)
			}
			specs[i] = strconv.Itoa(p)
		}
		rotateSpec += ":" + strings.Join(specs, ",")
	}

	out := filepath.Join(req.ScratchDir, "rotated.pdf")
	if err := h.run.Run(ctx, h.run.QPDF(), req.Inputs[0], out, "--rotate="+rotateSpec); err != nil {
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
		BaseName:  "rotated_document",
		Extension: ".pdf",
	}, nil
}

// removeHandler deletes the given pages, keeping everything else in order.
type removeHandler struct {
	run *Runner
}

func (h *removeHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	remove := req.Options.IntSlice("pages")
	if len(remove) == 0 {
		return nil, inputErrorf("remove requires a non-empty pages list")
	}
	input := req.Inputs[0]
	req.progress(20)

	total, err := h.pageCount(ctx, input)
	if err != nil {
		return nil, err
	}

	removed := make(map[int]bool, len(remove))
	for _, p := range remove {
		if p < 1 || p > total {
			return nil, inputErrorf("page %d out of range (document has %d pages)", p, total)
		}
		removed[p] = true
	}

	var kept []string
	for p := 1; p <= total; p++ {
		if !removed[p] {
			kept = append(kept, strconv.Itoa(p))
		}
	}
	if len(kept) == 0 {
		return nil, inputErrorf("removing every page would leave an empty document")
	}
	req.progress(40)

	out := filepath.Join(req.ScratchDir, "removed.pdf")
	spec := strings.Join(kept, ",")
	if err := h.run.Run(ctx, h.run.QPDF(), "--empty", "--pages", input, spec, "--", out); err != nil {
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
		BaseName:  "pages_removed",
		Extension: ".pdf",
	}, nil
}

func (h *removeHandler) pageCount(ctx context.Context, path string) (int, error) {
	out, err := h.run.RunOutput(ctx, h.run.QPDF(), "--show-npages", path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(string(bytes.TrimSpace(out)))
	if err != nil {
		return 0, fmt.Errorf("unexpected page count output %q", bytes.TrimSpace(out))
	}
	return n, nil
}
