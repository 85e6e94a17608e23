package bookexport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/alnah/go-bookexport/internal/assets"
	"github.com/alnah/go-bookexport/internal/fileutil"
	"github.com/alnah/go-bookexport/internal/logging"
	"github.com/alnah/go-bookexport/internal/pipeline"
)

// Compile-time interface implementation checks.
var (
	_ pipeline.MarkdownPreprocessor = (*pipeline.CommonMarkPreprocessor)(nil)
	_ pipeline.HTMLConverter        = (*pipeline.GoldmarkConverter)(nil)
	_ pipeline.CSSInjector          = (*pipeline.CSSInjection)(nil)
	_ pipeline.TOCInjector          = (*pipeline.TOCInjection)(nil)
	_ pipeline.TextRewriter         = (*pipeline.PathRewriter)(nil)
	_ pipeline.TextRewriter         = (*pipeline.ImgTagRewriter)(nil)
)

// PreviewOptions describes one HTML preview. Zero fields use the
// configured preview settings.
type PreviewOptions struct {
	SectionOrder []string
	BookType     BookType
	Lang         string
	Style        string
	Output       string // relative to the output directory unless absolute
	TOCTitle     string
	TOCDepth     int // 0 uses the configured depth, negative disables the TOC
}

// PreviewResult describes a written preview.
type PreviewResult struct {
	Path  string
	Files []string
	HTML  []byte
}

// Preview renders the manuscript to a standalone HTML file without Pandoc.
// Image paths are made absolute in memory only; the manuscript is never
// modified.
func (e *Exporter) Preview(ctx context.Context, opts PreviewOptions) (*PreviewResult, error) {
	bookType, err := ParseBookType(string(opts.BookType))
	if err != nil {
		return nil, err
	}

	order := opts.SectionOrder
	if len(order) == 0 {
		order = e.sections.Order(string(bookType))
	}
	if len(order) == 0 {
		order = DefaultSectionOrder()
	}
	files, err := CollectMarkdownFiles(e.paths.Manuscript, order)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreview, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %w in %s", ErrPreview, ErrNoMarkdownFiles, e.paths.Manuscript)
	}

	sections, err := e.loadPreviewSections(files)
	if err != nil {
		return nil, err
	}

	preprocessor := &pipeline.CommonMarkPreprocessor{}
	content := preprocessor.PreprocessMarkdown(ctx, pipeline.JoinSections(sections))
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, err := ReadMetadata(e.paths.Metadata)
	if err != nil {
		e.status.Printf(logging.KindWarn, "Could not read metadata: %v", err)
	}
	metaLang := meta.Language
	if metaLang == "" {
		metaLang = meta.Lang
	}
	lang, _ := ResolveLanguage(opts.Lang, metaLang)

	htmlContent, err := pipeline.NewGoldmarkConverter().ToHTML(ctx, content, pipeline.DocumentInfo{
		Title: meta.Title,
		Lang:  lang,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: converting to HTML: %v", ErrPreview, err)
	}

	htmlContent, err = pipeline.RewriteImageSources(htmlContent, e.paths.Manuscript)
	if err != nil {
		return nil, fmt.Errorf("%w: rewriting image sources: %v", ErrPreview, err)
	}
	htmlContent = pipeline.ConvertMarkPlaceholders(htmlContent)

	css, err := e.loadPreviewStyle(opts.Style)
	if err != nil {
		return nil, err
	}
	htmlContent = (&pipeline.CSSInjection{}).InjectCSS(ctx, htmlContent, css)

	if toc := e.previewTOC(opts); toc != nil {
		htmlContent, err = pipeline.NewTOCInjection().InjectTOC(ctx, htmlContent, toc)
		if err != nil {
			return nil, fmt.Errorf("%w: injecting TOC: %v", ErrPreview, err)
		}
	}

	out := opts.Output
	if out == "" {
		out = e.preview.Output
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(e.paths.Output, out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating %s: %v", ErrPreview, filepath.Dir(out), err)
	}
	if err := fileutil.WriteFileAtomic(out, []byte(htmlContent)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPreview, err)
	}

	e.status.Printf(logging.KindSuccess, "Preview written: %s (%d files)", out, len(files))
	return &PreviewResult{Path: out, Files: files, HTML: []byte(htmlContent)}, nil
}

// loadPreviewSections reads every file and makes its image paths absolute.
func (e *Exporter) loadPreviewSections(files []string) ([]string, error) {
	rewriters := []pipeline.TextRewriter{
		pipeline.NewPathRewriter(pipeline.ToAbsolute, e.paths.Assets),
		pipeline.NewImgTagRewriter(pipeline.ToAbsolute, e.paths.Assets),
	}

	sections := make([]string, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path) // #nosec G304 -- manuscript file from the section order
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPreview, err)
		}
		if !utf8.Valid(data) {
			return nil, fmt.Errorf("%w: %s", pipeline.ErrInvalidEncoding, path)
		}
		text := string(data)
		for _, rw := range rewriters {
			text, _ = rw.RewriteText(text, filepath.Dir(path))
		}
		sections = append(sections, text)
	}
	return sections, nil
}

// loadPreviewStyle looks in <assets>/styles first, then in the embedded
// styles.
func (e *Exporter) loadPreviewStyle(style string) (string, error) {
	if style == "" {
		style = e.preview.Style
	}
	if style == "" {
		style = assets.DefaultStyleName
	}

	base := ""
	if fileutil.DirExists(filepath.Join(e.paths.Assets, "styles")) {
		base = e.paths.Assets
	}
	resolver, err := assets.NewAssetResolver(base)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPreview, err)
	}
	css, err := resolver.LoadStyle(style)
	if err != nil {
		return "", fmt.Errorf("%w: loading style %q: %w", ErrPreview, style, err)
	}
	return css, nil
}

func (e *Exporter) previewTOC(opts PreviewOptions) *pipeline.TOCData {
	depth := opts.TOCDepth
	if depth == 0 {
		depth = e.preview.TOCDepth
	}
	if depth <= 0 {
		return nil
	}
	title := opts.TOCTitle
	if title == "" {
		title = e.preview.TOCTitle
	}
	return &pipeline.TOCData{Title: title, MinDepth: 1, MaxDepth: depth}
}
