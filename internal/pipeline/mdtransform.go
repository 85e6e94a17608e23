package pipeline

import (
	"context"
	"regexp"
	"strings"
)

// Highlight placeholders use Unicode Private Use Area characters.
// They pass through Goldmark unchanged and are turned into <mark> tags
// after HTML generation.
const (
	MarkStartPlaceholder = "\uE000"
	MarkEndPlaceholder   = "\uE001"
)

var (
	crlfOrCR = regexp.MustCompile(`\r\n?`)

	multipleBlankLines = regexp.MustCompile(`\n{3,}`)

	// ==text== (Pandoc writes [text]{.mark}, both are accepted)
	highlightPattern      = regexp.MustCompile(`==([^=\n]+)==`)
	pandocMarkSpanPattern = regexp.MustCompile(`\[([^\]\n]+)\]\{\.mark\}`)

	// Pandoc yaml_metadata_block at the very start of a section file.
	metadataBlockPattern = regexp.MustCompile(`\A---\n(?:.*\n)*?(?:---|\.\.\.)\n`)
)

// MarkdownPreprocessor defines the contract for markdown preprocessing.
type MarkdownPreprocessor interface {
	PreprocessMarkdown(ctx context.Context, content string) string
}

// CommonMarkPreprocessor adapts Pandoc Markdown for CommonMark rendering.
type CommonMarkPreprocessor struct{}

// PreprocessMarkdown applies all transformations to prepare Markdown for conversion.
func (p *CommonMarkPreprocessor) PreprocessMarkdown(ctx context.Context, content string) string {
	if ctx.Err() != nil {
		return content
	}

	content = normalizeLineEndings(content)
	content = stripMetadataBlock(content)
	content = convertHighlights(content)
	content = compressBlankLines(content)
	return content
}

// JoinSections concatenates section texts the way Pandoc does with multiple
// input files: each section is separated by a blank line.
func JoinSections(sections []string) string {
	trimmed := make([]string, 0, len(sections))
	for _, s := range sections {
		s = strings.TrimRight(normalizeLineEndings(s), "\n")
		if s != "" {
			trimmed = append(trimmed, s)
		}
	}
	if len(trimmed) == 0 {
		return ""
	}
	return strings.Join(trimmed, "\n\n") + "\n"
}

func normalizeLineEndings(content string) string {
	return crlfOrCR.ReplaceAllString(content, "\n")
}

// compressBlankLines limits consecutive blank lines to 2 maximum.
func compressBlankLines(content string) string {
	return multipleBlankLines.ReplaceAllString(content, "\n\n")
}

// stripMetadataBlock removes a leading YAML metadata block. Metadata comes
// from config/metadata.yaml in the preview.
func stripMetadataBlock(content string) string {
	return metadataBlockPattern.ReplaceAllString(content, "")
}

// convertHighlights transforms ==text== and [text]{.mark} to placeholder
// markers, converted back by ConvertMarkPlaceholders.
func convertHighlights(content string) string {
	content = pandocMarkSpanPattern.ReplaceAllString(content, MarkStartPlaceholder+"$1"+MarkEndPlaceholder)
	return highlightPattern.ReplaceAllString(content, MarkStartPlaceholder+"$1"+MarkEndPlaceholder)
}

// ConvertMarkPlaceholders converts placeholder markers to <mark> tags.
func ConvertMarkPlaceholders(content string) string {
	return strings.ReplaceAll(
		strings.ReplaceAll(content, MarkStartPlaceholder, "<mark>"),
		MarkEndPlaceholder, "</mark>",
	)
}
