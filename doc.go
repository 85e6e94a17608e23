// Package bookexport builds a Markdown book manuscript into Markdown, PDF,
// EPUB and DOCX with Pandoc.
//
// # Quick Start
//
// Resolve the project layout, create an exporter, and run it:
//
//	paths, err := bookexport.DefaultPaths("/path/to/book")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	exp := bookexport.NewExporter(paths)
//	report, err := exp.Export(ctx, bookexport.ExportOptions{
//	    Formats:  []string{"epub", "pdf"},
//	    BookType: bookexport.Paperback,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range report.Validation.Wait() {
//	    fmt.Println(r.Format, r.Code)
//	}
//
// # Export Pipeline
//
// Export runs these steps in order:
//
//  1. Project lock (.bookexport.lock), metadata file and language
//  2. TOC normalization (strip-to-anchors or replace-ext)
//  3. Image paths made absolute: Markdown images, then <img> tags
//  4. Output rotation: output/ moves to output_backup/
//  5. One Pandoc run per format, in markdown, pdf, epub, docx order
//  6. Image paths restored to relative, even after a failure
//  7. Background validation of every artifact
//
// The image rewrite can be disabled with PathModeSkipImages or
// PathModeKeepRelative. DryRun prints the Pandoc commands and changes
// nothing.
//
// # Configuration
//
// Use functional options to customize the exporter:
//
//	cfg, _, err := config.LoadProjectConfig(root)
//	exp := bookexport.NewExporter(paths,
//	    bookexport.WithConfig(cfg),
//	    bookexport.WithTimeout(10 * time.Minute),
//	    bookexport.WithStatus(status),
//	)
//
// # Preview
//
// Exporter.Preview renders the manuscript to a standalone HTML file with
// goldmark, without Pandoc and without touching the manuscript.
//
// # Project Layout
//
//	book/
//	├── manuscript/
//	│   ├── front-matter/toc.md
//	│   ├── chapters/*.md
//	│   └── back-matter/
//	├── assets/
//	├── config/metadata.yaml
//	├── pyproject.toml
//	└── output/
package bookexport
