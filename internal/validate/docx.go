package validate

import (
	"archive/zip"
	"fmt"
	"os"
)

const docxContentTypes = "[Content_Types].xml"

// DOCX checks that the file is a zip archive holding [Content_Types].xml.
func DOCX(docxPath string) Result {
	r := Result{Format: "docx", Path: docxPath}
	if !checkExists(&r) {
		return r
	}

	zr, err := zip.OpenReader(docxPath)
	if err != nil {
		r.fail(CodeIssues, "DOCX appears corrupted: %v", err)
		r.Summary = "corrupted"
		return r
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		if f.Name == docxContentTypes {
			r.Summary = "valid"
			return r
		}
	}
	r.fail(CodeIssues, "missing core file %s", docxContentTypes)
	r.Summary = "invalid"
	return r
}

// Markdown checks that the exported file exists and is not empty.
func Markdown(mdPath string) Result {
	r := Result{Format: "markdown", Path: mdPath}
	if !checkExists(&r) {
		return r
	}

	info, err := os.Stat(mdPath)
	if err != nil {
		r.fail(CodeIssues, "stat: %v", err)
		return r
	}
	if info.Size() == 0 {
		r.fail(CodeIssues, "Markdown file is empty")
		r.Summary = "empty"
		return r
	}
	r.Summary = fmt.Sprintf("%d bytes", info.Size())
	return r
}
