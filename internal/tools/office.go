package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// pdfToWordHandler converts a PDF to DOCX.
type pdfToWordHandler struct {
	run *Runner
}

func (h *pdfToWordHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	input := req.Inputs[0]
	req.progress(20)

	out := filepath.Join(req.ScratchDir, "converted.docx")
	if err := h.run.Run(ctx, h.run.PDF2Docx(), "convert", input, out); err != nil {
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
		MimeType:  MimeDOCX,
		BaseName:  "converted_document",
		Extension: ".docx",
	}, nil
}

// docxToPDFHandler converts a DOCX to PDF via headless LibreOffice.
type docxToPDFHandler struct {
	run *Runner
}

func (h *docxToPDFHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	input := req.Inputs[0]
	req.progress(20)

	// soffice writes <input stem>.pdf into --outdir and offers no way to
	// name the file directly.
	outDir := filepath.Join(req.ScratchDir, "office_out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	if err := h.run.Run(ctx, h.run.Soffice(), "--headless", "--convert-to", "pdf", "--outdir", outDir, input); err != nil {
		return nil, err
	}
	req.progress(70)

	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	data, err := os.ReadFile(filepath.Join(outDir, stem+".pdf"))
	if err != nil {
		return nil, err
	}
	req.progress(80)

	return &Result{
		Data:      data,
		MimeType:  MimePDF,
		BaseName:  "converted_document",
		Extension: ".pdf",
	}, nil
}
