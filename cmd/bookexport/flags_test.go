package main

// Notes:
// - exportOptions: precedence flags > env > config is checked per setting;
//   settings passed through WithConfig are not repeated here
// - parseTimeout, printBookType, previewOptions and validateFormat are pure
//   and table-driven
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"errors"
	"slices"
	"testing"
	"time"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/config"
)

// ---------------------------------------------------------------------------
// TestExportOptions - Flag, env and config precedence
// ---------------------------------------------------------------------------

func TestExportOptions(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		opts, err := exportOptions(&exportFlags{}, &envConfig{}, config.DefaultConfig())
		if err != nil {
			t.Fatalf("exportOptions() error = %v", err)
		}
		if opts.Formats != nil {
			t.Errorf("Formats = %v, want nil (config formats apply)", opts.Formats)
		}
		if opts.BookType != bookexport.Ebook {
			t.Errorf("BookType = %q, want ebook", opts.BookType)
		}
		if opts.PathMode != bookexport.PathModeRewrite {
			t.Errorf("PathMode = %v, want rewrite", opts.PathMode)
		}
		if opts.NoValidate {
			t.Error("NoValidate should be false by default")
		}
	})

	t.Run("flags win over env and config", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultConfig()
		cfg.Export.BookType = "hardcover"
		cfg.Export.Lang = "de"
		cfg.Export.OutputName = "from-config"

		var f exportFlags
		f.selection.formats = "EPUB, pdf"
		f.selection.bookType = "paperback"
		f.selection.lang = "fr"
		f.selection.order = "front-matter, chapters"
		f.output.outputFile = "from-flag"
		f.output.extension = ".markdown"
		f.images.keepRelative = true

		opts, err := exportOptions(&f, &envConfig{Formats: []string{"docx"}}, cfg)
		if err != nil {
			t.Fatalf("exportOptions() error = %v", err)
		}
		if !slices.Equal(opts.Formats, []string{"epub", "pdf"}) {
			t.Errorf("Formats = %v, want [epub pdf]", opts.Formats)
		}
		if opts.BookType != bookexport.Paperback {
			t.Errorf("BookType = %q, want paperback", opts.BookType)
		}
		if opts.Lang != "fr" {
			t.Errorf("Lang = %q, want fr", opts.Lang)
		}
		if opts.OutputName != "from-flag" {
			t.Errorf("OutputName = %q, want from-flag", opts.OutputName)
		}
		if opts.MarkdownExt != "markdown" {
			t.Errorf("MarkdownExt = %q, want markdown", opts.MarkdownExt)
		}
		if !slices.Equal(opts.SectionOrder, []string{"front-matter", "chapters"}) {
			t.Errorf("SectionOrder = %v", opts.SectionOrder)
		}
		if opts.PathMode != bookexport.PathModeKeepRelative {
			t.Errorf("PathMode = %v, want keep-relative", opts.PathMode)
		}
	})

	t.Run("env formats when no flag", func(t *testing.T) {
		t.Parallel()

		opts, err := exportOptions(&exportFlags{}, &envConfig{Formats: []string{"docx", "nope"}}, config.DefaultConfig())
		if err != nil {
			t.Fatalf("exportOptions() error = %v", err)
		}
		if !slices.Equal(opts.Formats, []string{"docx", "nope"}) {
			t.Errorf("Formats = %v, unknown names are skipped by the export", opts.Formats)
		}
	})

	t.Run("config book type and validation", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultConfig()
		cfg.Export.BookType = "hardcover"
		cfg.Export.RunValidation = false

		opts, err := exportOptions(&exportFlags{}, nil, cfg)
		if err != nil {
			t.Fatalf("exportOptions() error = %v", err)
		}
		if opts.BookType != bookexport.Hardcover {
			t.Errorf("BookType = %q, want hardcover", opts.BookType)
		}
		if !opts.NoValidate {
			t.Error("NoValidate should follow export.validate: false")
		}
	})

	t.Run("errors", func(t *testing.T) {
		t.Parallel()

		tests := []struct {
			name    string
			flags   func(*exportFlags)
			wantErr error
		}{
			{"empty format list", func(f *exportFlags) { f.selection.formats = " , " }, bookexport.ErrInvalidFormatList},
			{"invalid book type", func(f *exportFlags) { f.selection.bookType = "scroll" }, bookexport.ErrInvalidBookType},
			{"both image modes", func(f *exportFlags) {
				f.images.skipImages = true
				f.images.keepRelative = true
			}, bookexport.ErrInvalidPathMode},
		}
		for _, tt := range tests {
			var f exportFlags
			tt.flags(&f)
			_, err := exportOptions(&f, nil, config.DefaultConfig())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("%s: error = %v, want %v", tt.name, err, tt.wantErr)
			}
			if !errors.Is(err, bookexport.ErrUsage) {
				t.Errorf("%s: error = %v, want a usage error", tt.name, err)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// TestParseTimeout - --timeout parsing
// ---------------------------------------------------------------------------

func TestParseTimeout(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    time.Duration
		wantSet bool
		wantErr bool
	}{
		{"", 0, false, false},
		{"90s", 90 * time.Second, true, false},
		{"5m", 5 * time.Minute, true, false},
		{"soon", 0, false, true},
		{"0s", 0, false, true},
		{"-1m", 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, set, err := parseTimeout(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseTimeout(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, bookexport.ErrUsage) {
				t.Errorf("parseTimeout(%q) error = %v, want a usage error", tt.in, err)
			}
			if got != tt.want || set != tt.wantSet {
				t.Errorf("parseTimeout(%q) = %v, %v, want %v, %v", tt.in, got, set, tt.want, tt.wantSet)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestPrintBookType - Print book type fallback
// ---------------------------------------------------------------------------

func TestPrintBookType(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in           string
		want         bookexport.BookType
		wantFellBack bool
	}{
		{"", bookexport.Paperback, false},
		{"paperback", bookexport.Paperback, false},
		{" Hardcover ", bookexport.Hardcover, false},
		{"ebook", bookexport.Paperback, true},
		{"scroll", bookexport.Paperback, true},
	}

	for _, tt := range tests {
		got, fellBack := printBookType(tt.in)
		if got != tt.want || fellBack != tt.wantFellBack {
			t.Errorf("printBookType(%q) = %q, %v, want %q, %v", tt.in, got, fellBack, tt.want, tt.wantFellBack)
		}
	}
}

// ---------------------------------------------------------------------------
// TestPreviewOptions - Preview flag mapping
// ---------------------------------------------------------------------------

func TestPreviewOptions(t *testing.T) {
	t.Parallel()

	t.Run("maps flags", func(t *testing.T) {
		t.Parallel()

		opts, err := previewOptions(&previewFlags{
			order:    "chapters",
			bookType: "paperback",
			style:    "book",
			tocDepth: 2,
		})
		if err != nil {
			t.Fatalf("previewOptions() error = %v", err)
		}
		if opts.BookType != bookexport.Paperback || opts.Style != "book" || opts.TOCDepth != 2 {
			t.Errorf("previewOptions() = %+v", opts)
		}
		if !slices.Equal(opts.SectionOrder, []string{"chapters"}) {
			t.Errorf("SectionOrder = %v, want [chapters]", opts.SectionOrder)
		}
	})

	t.Run("no-toc disables the TOC", func(t *testing.T) {
		t.Parallel()

		opts, err := previewOptions(&previewFlags{noTOC: true})
		if err != nil {
			t.Fatalf("previewOptions() error = %v", err)
		}
		if opts.TOCDepth >= 0 {
			t.Errorf("TOCDepth = %d, want negative", opts.TOCDepth)
		}
	})

	t.Run("toc depth out of range", func(t *testing.T) {
		t.Parallel()

		for _, depth := range []int{-1, 7} {
			if _, err := previewOptions(&previewFlags{tocDepth: depth}); !errors.Is(err, bookexport.ErrUsage) {
				t.Errorf("tocDepth %d: error = %v, want a usage error", depth, err)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// TestValidateFormat - validate --type and extension detection
// ---------------------------------------------------------------------------

func TestValidateFormat(t *testing.T) {
	t.Parallel()
	tests := []struct {
		path     string
		fileType string
		want     string
		wantErr  bool
	}{
		{"book.epub", "", "epub", false},
		{"book.PDF", "", "pdf", false},
		{"book.docx", "", "docx", false},
		{"book.md", "", "markdown", false},
		{"book.bin", "md", "markdown", false},
		{"book.bin", "EPUB", "epub", false},
		{"book.bin", "", "", true},
		{"book.epub", "odt", "", true},
	}

	for _, tt := range tests {
		got, err := validateFormat(tt.path, tt.fileType)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateFormat(%q, %q) error = %v, wantErr %v", tt.path, tt.fileType, err, tt.wantErr)
			continue
		}
		if err != nil && !errors.Is(err, bookexport.ErrUsage) {
			t.Errorf("validateFormat(%q, %q) error = %v, want a usage error", tt.path, tt.fileType, err)
		}
		if got != tt.want {
			t.Errorf("validateFormat(%q, %q) = %q, want %q", tt.path, tt.fileType, got, tt.want)
		}
	}
}
