package tools

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Decoders beyond the stdlib set, registered for image.Decode. The
	// external converter only understands the common raster formats, so
	// webp/bmp/tiff inputs are normalized to PNG first.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	_ "image/gif"
	_ "image/jpeg"
)

// imageToPDFHandler converts one or more images into a single PDF, pages in
// submission order.
type imageToPDFHandler struct {
	run *Runner
}

func (h *imageToPDFHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	if len(req.Inputs) < 1 {
		return nil, inputErrorf("img2pdf requires at least 1 image")
	}
	req.progress(20)

	normalized := make([]string, 0, len(req.Inputs))
	for i, input := range req.Inputs {
		path, err := h.normalize(input, req.ScratchDir, i)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, path)
	}
	req.progress(40)

	out := filepath.Join(req.ScratchDir, "images.pdf")
	args := append([]string{"-o", out}, normalized...)
	if err := h.run.Run(ctx, h.run.Img2PDF(), args...); err != nil {
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
		BaseName:  "converted_images",
		Extension: ".pdf",
	}, nil
}

// normalize re-encodes webp/bmp/tiff inputs to PNG; jpeg/png/gif pass
// through untouched so jpeg data keeps its original encoding in the PDF.
func (h *imageToPDFHandler) normalize(input, scratchDir string, idx int) (string, error) {
	switch strings.ToLower(filepath.Ext(input)) {
	case ".jpg", ".jpeg", ".png", ".gif":
		return input, nil
	}

	f, err := os.Open(input)
	if err != nil {
		return "", err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return "", inputErrorf("unsupported image %s: %v", filepath.Base(input), err)
	}

	out := filepath.Join(scratchDir, fmt.Sprintf("normalized_%d.png", idx))
	dst, err := os.Create(out)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if err := png.Encode(dst, img); err != nil {
		return "", fmt.Errorf("re-encoding %s image %s: %w", format, filepath.Base(input), err)
	}
	return out, nil
}

// pdfToImageHandler renders each PDF page to PNG and archives the pages.
type pdfToImageHandler struct {
	run *Runner
}

// renderDPI is the raster resolution for page images.
const renderDPI = "150"

func (h *pdfToImageHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	input := req.Inputs[0]
	req.progress(20)

	prefix := filepath.Join(req.ScratchDir, "page")
	if err := h.run.Run(ctx, h.run.PDFToPPM(), "-png", "-r", renderDPI, input, prefix); err != nil {
		return nil, err
	}
	req.progress(60)

	// pdftoppm names output page-1.png, page-2.png, ... (zero-padded for
	// larger documents); sort restores page order.
	rendered, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(rendered) == 0 {
		return nil, inputErrorf("document produced no pages")
	}
	sort.Strings(rendered)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for i, path := range rendered {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("page_%d.png", i+1)
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("adding %s to archive: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("writing %s to archive: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}
	req.progress(80)

	return &Result{
		Data:      buf.Bytes(),
		MimeType:  MimeZIP,
		BaseName:  "pdf_pages",
		Extension: ".zip",
	}, nil
}
