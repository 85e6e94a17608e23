// Package validate checks the artifacts produced by an export.
//
// Each format has an in-process check (archive structure, file header,
// non-empty output) and, where one exists, an external tool that is run when
// it is found on PATH:
//   - EPUB: mimetype and container.xml, every img[src] resolves inside the
//     archive, cover height, then epubcheck
//   - PDF: %PDF- header, then pdfinfo for the page count
//   - DOCX: [Content_Types].xml present in the archive
//   - Markdown: file exists and is not empty
//
// A Result's Code doubles as the exit code of `bookexport validate`:
// 0 ok, 1 issues, 2 not found, 124 timeout, 127 tool missing.
package validate
