package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// watermarkHandler stamps a diagonal text watermark on every page via a
// Ghostscript EndPage hook through pdfwrite.
type watermarkHandler struct {
	run *Runner
}

// defaultWatermarkText is used when the options carry no text.
const defaultWatermarkText = "DocSmart"

func (h *watermarkHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	text := req.Options.String("text")
	if text == "" {
		text = defaultWatermarkText
	}
	req.progress(20)

	ps := fmt.Sprintf(`<< /EndPage { exch pop 2 ne dup { gsave /Helvetica-Bold 60 selectfont 0.8 setgray 306 396 translate 45 rotate (%s) dup stringwidth pop 2 div neg 0 moveto show grestore } if } >> setpagedevice`,
		escapePostScript(text))

	out := filepath.Join(req.ScratchDir, "watermarked.pdf")
	err := h.run.Run(ctx, h.run.Ghostscript(),
		"-sDEVICE=pdfwrite", "-dNOPAUSE", "-dQUIET", "-dBATCH",
		"-o", out, "-c", ps, "-f", req.Inputs[0])
	if err != nil {
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
		BaseName:  "watermarked_document",
		Extension: ".pdf",
	}, nil
}

// pageNumbersHandler prints "N" bottom-center on every page. The EndPage
// hook receives the running page count as its first operand.
type pageNumbersHandler struct {
	run *Runner
}

func (h *pageNumbersHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	req.progress(20)

	const ps = `<< /EndPage { exch 1 add exch 2 ne dup { exch gsave /Helvetica 10 selectfont 0 setgray dup 10 string cvs dup stringwidth pop 2 div neg 306 add 24 moveto show pop grestore } { exch pop } ifelse } >> setpagedevice`

	out := filepath.Join(req.ScratchDir, "numbered.pdf")
	err := h.run.Run(ctx, h.run.Ghostscript(),
		"-sDEVICE=pdfwrite", "-dNOPAUSE", "-dQUIET", "-dBATCH",
		"-o", out, "-c", ps, "-f", req.Inputs[0])
	if err != nil {
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
		BaseName:  "numbered_document",
		Extension: ".pdf",
	}, nil
}

// repairHandler rewrites a damaged PDF through pdfwrite, rebuilding the
// xref table and dropping unreadable objects.
type repairHandler struct {
	run *Runner
}

func (h *repairHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	req.progress(20)

	out := filepath.Join(req.ScratchDir, "repaired.pdf")
	err := h.run.Run(ctx, h.run.Ghostscript(),
		"-sDEVICE=pdfwrite", "-dNOPAUSE", "-dQUIET", "-dBATCH",
		"-dPDFSETTINGS=/default", "-o", out, req.Inputs[0])
	if err != nil {
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
		BaseName:  "repaired_document",
		Extension: ".pdf",
	}, nil
}

// escapePostScript escapes the characters with meaning inside a PostScript
// string literal.
func escapePostScript(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
