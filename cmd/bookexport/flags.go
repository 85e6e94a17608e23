package main

import (
	"fmt"
	"strings"
	"time"

	flag "github.com/spf13/pflag"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/config"
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	root    string
	config  string
	quiet   bool
	verbose bool
}

// selectionFlags choose what goes into a build.
type selectionFlags struct {
	formats  string
	order    string
	bookType string
	lang     string
}

// outputFlags name the produced files.
type outputFlags struct {
	outputFile string
	extension  string
	cover      string
	epub2      bool
}

// imageFlags select the image path handling. Mutually exclusive.
type imageFlags struct {
	skipImages   bool
	keepRelative bool
}

// tocFlags control the TOC normalization step.
type tocFlags struct {
	mode string
	ext  string
}

// runFlags control the run itself.
type runFlags struct {
	dryRun     bool
	noValidate bool
	timeout    string
}

// exportFlags holds all flags for the export command.
type exportFlags struct {
	selection selectionFlags
	output    outputFlags
	images    imageFlags
	toc       tocFlags
	run       runFlags
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.root, "root", "C", ".", "book project root")
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug records in the log file")
}

// addSelectionFlags adds build selection flags to a FlagSet.
func addSelectionFlags(fs *flag.FlagSet, f *selectionFlags) {
	fs.StringVarP(&f.formats, "format", "f", "", "formats to build: "+strings.Join(bookexport.FormatNames(), ","))
	fs.StringVar(&f.order, "order", "", "comma-separated section order, relative to the manuscript")
	fs.StringVarP(&f.bookType, "book-type", "b", "", "book type: ebook, paperback, hardcover")
	fs.StringVarP(&f.lang, "lang", "l", "", "document language (overrides metadata)")
}

// addOutputFlags adds output naming flags to a FlagSet.
func addOutputFlags(fs *flag.FlagSet, f *outputFlags) {
	fs.StringVarP(&f.outputFile, "output-file", "o", "", "output base name (book type is appended)")
	fs.StringVar(&f.extension, "extension", "", "extension of the markdown export (default: md)")
	fs.StringVar(&f.cover, "cover", "", "EPUB cover image")
	fs.BoolVar(&f.epub2, "epub2", false, "force EPUB2 compatibility metadata")
}

// addImageFlags adds image path flags to a FlagSet.
func addImageFlags(fs *flag.FlagSet, f *imageFlags) {
	fs.BoolVar(&f.skipImages, "skip-images", false, "do not rewrite image paths")
	fs.BoolVar(&f.keepRelative, "keep-relative-paths", false, "build with relative image paths")
}

// addTOCFlags adds TOC flags to a FlagSet.
func addTOCFlags(fs *flag.FlagSet, f *tocFlags) {
	fs.StringVar(&f.mode, "toc-mode", "", "TOC normalization: strip-to-anchors, replace-ext")
	fs.StringVar(&f.ext, "toc-ext", "", "link extension for replace-ext")
}

// addRunFlags adds run control flags to a FlagSet.
func addRunFlags(fs *flag.FlagSet, f *runFlags) {
	fs.BoolVarP(&f.dryRun, "dry-run", "n", false, "print the Pandoc commands without running them")
	fs.BoolVar(&f.noValidate, "no-validate", false, "skip artifact validation")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "timeout per Pandoc run (e.g., 5m)")
}

// addExportFlags adds every export flag to a FlagSet.
func addExportFlags(fs *flag.FlagSet, f *exportFlags) {
	addSelectionFlags(fs, &f.selection)
	addOutputFlags(fs, &f.output)
	addImageFlags(fs, &f.images)
	addTOCFlags(fs, &f.toc)
	addRunFlags(fs, &f.run)
}

// exportOptions merges flags over the environment and the config:
// flags > env vars > config file > defaults. Settings not present here
// (PDF engine, cover, TOC defaults) reach the Exporter through WithConfig.
func exportOptions(f *exportFlags, env *envConfig, cfg *config.Config) (bookexport.ExportOptions, error) {
	var opts bookexport.ExportOptions

	switch {
	case f.selection.formats != "":
		formats, err := bookexport.ParseFormats(f.selection.formats)
		if err != nil {
			return opts, err
		}
		opts.Formats = formats
	case env != nil && len(env.Formats) > 0:
		opts.Formats = env.Formats
	}

	if f.selection.order != "" {
		opts.SectionOrder = bookexport.ParseSectionOrder(f.selection.order)
	}

	bookType := firstNonEmpty(f.selection.bookType, cfg.Export.BookType)
	bt, err := bookexport.ParseBookType(bookType)
	if err != nil {
		return opts, err
	}
	opts.BookType = bt

	mode, err := bookexport.NewPathMode(f.images.skipImages, f.images.keepRelative)
	if err != nil {
		return opts, err
	}
	opts.PathMode = mode

	opts.Lang = firstNonEmpty(f.selection.lang, cfg.Export.Lang)
	opts.OutputName = firstNonEmpty(f.output.outputFile, cfg.Export.OutputName)
	opts.MarkdownExt = strings.TrimPrefix(f.output.extension, ".")
	opts.CoverPath = f.output.cover
	opts.ForceEPUB2 = f.output.epub2
	opts.TOCMode = f.toc.mode
	opts.TOCExt = f.toc.ext
	opts.DryRun = f.run.dryRun
	opts.NoValidate = f.run.noValidate || !cfg.Export.RunValidation
	return opts, nil
}

// parseTimeout parses --timeout. Empty means the configured timeout.
func parseTimeout(s string) (time.Duration, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, false, fmt.Errorf("%w: invalid timeout %q: %v", bookexport.ErrUsage, s, err)
	}
	if d <= 0 {
		return 0, false, fmt.Errorf("%w: timeout must be positive, got %s", bookexport.ErrUsage, s)
	}
	return d, true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
