package tools

import (
	"context"
	"os"
	"path/filepath"
)

// protectHandler encrypts a PDF with a user password (AES-256).
type protectHandler struct {
	run *Runner
}

func (h *protectHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	password := req.Options.String("password")
	if password == "" {
		return nil, inputErrorf("protectPdf requires a non-empty password")
	}
	req.progress(20)

	out := filepath.Join(req.ScratchDir, "protected.pdf")
	err := h.run.Run(ctx, h.run.QPDF(), "--encrypt", password, password, "256", "--", req.Inputs[0], out)
	if err != nil {
		return nil, scrubToolError(err, password)
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
		BaseName:  "protected_document",
		Extension: ".pdf",
	}, nil
}

// unlockHandler removes encryption from a PDF. The password may be empty
// for documents with only an owner password.
type unlockHandler struct {
	run *Runner
}

func (h *unlockHandler) Handle(ctx context.Context, req *Request) (*Result, error) {
	password := req.Options.String("password")
	req.progress(20)

	out := filepath.Join(req.ScratchDir, "unlocked.pdf")
	err := h.run.Run(ctx, h.run.QPDF(), "--password="+password, "--decrypt", req.Inputs[0], out)
	if err != nil {
		return nil, scrubToolError(err, password)
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
		BaseName:  "unlocked_document",
		Extension: ".pdf",
	}, nil
}

// scrubToolError removes the password from captured stderr. qpdf does not
// normally echo passwords, but the value must never reach error_message.
func scrubToolError(err error, password string) error {
	if te, ok := err.(*ToolError); ok && password != "" {
		te.Stderr = sanitizeSecret(te.Stderr, password)
	}
	return err
}
