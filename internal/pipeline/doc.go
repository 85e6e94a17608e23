// Package pipeline implements the text stages of a book export.
//
// Manuscript stages rewrite Markdown files in place:
//   - Image target rewriting between relative and absolute paths, for
//     Markdown images (PathRewriter) and raw <img> tags (ImgTagRewriter)
//   - Table of contents normalization (NormalizeTOCFile)
//
// Preview stages render the manuscript to a single HTML document:
//   - Markdown preprocessing (line endings, metadata blocks, highlights)
//   - Markdown to HTML conversion via Goldmark
//   - CSS and table of contents injection
//   - Image sources rewritten to file:// URLs
//
// Code blocks and inline code are never modified by the manuscript stages.
// Running Pandoc is handled by the root bookexport package.
package pipeline
