package validate

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
)

var (
	pdfMagic  = []byte("%PDF-")
	errNotPDF = errors.New("missing %PDF- header")
)

// PDF validates a PDF file: header check, then pdfinfo when available.
func (v *Validator) PDF(ctx context.Context, pdfPath string) Result {
	r := Result{Format: "pdf", Path: pdfPath}
	if !checkExists(&r) {
		return r
	}

	if err := checkPDFHeader(pdfPath); err != nil {
		r.fail(CodeIssues, "%v", err)
		r.Summary = "not a PDF"
		return r
	}

	out := v.runTool(ctx, &r, v.pdfinfoTimeout, "pdfinfo", pdfPath)
	if out.failed {
		msg := strings.TrimSpace(out.stderr)
		if msg == "" {
			msg = "unknown error"
		}
		r.fail(CodeIssues, "pdfinfo failed: %s", msg)
	}

	switch {
	case !r.OK():
		r.Summary = "pdfinfo reported errors"
	case out.ran:
		r.Summary = "valid"
		if pages := pageLine(out.stdout); pages != "" {
			r.Summary += " " + pages
		}
	default:
		r.Summary = "header valid"
	}
	return r
}

func checkPDFHeader(path string) error {
	f, err := os.Open(path) // #nosec G304 -- validating a build artifact
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	head := make([]byte, len(pdfMagic))
	if _, err := io.ReadFull(f, head); err != nil || !bytes.Equal(head, pdfMagic) {
		return errNotPDF
	}
	return nil
}

// pageLine returns the "Pages:" line of pdfinfo output, normalized.
func pageLine(stdout string) string {
	for _, line := range strings.Split(stdout, "\n") {
		if strings.HasPrefix(line, "Pages:") {
			return "Pages: " + strings.TrimSpace(strings.TrimPrefix(line, "Pages:"))
		}
	}
	return ""
}
