package bookexport

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-bookexport/internal/config"
)

// BookType selects the output suffix and the section order.
type BookType string

// Book types.
const (
	Ebook     BookType = "ebook"
	Paperback BookType = "paperback"
	Hardcover BookType = "hardcover"
)

// BookTypes lists the valid book types.
var BookTypes = []BookType{Ebook, Paperback, Hardcover}

// ParseBookType validates s. An empty string yields Ebook.
func ParseBookType(s string) (BookType, error) {
	switch bt := BookType(strings.ToLower(strings.TrimSpace(s))); bt {
	case "":
		return Ebook, nil
	case Ebook, Paperback, Hardcover:
		return bt, nil
	default:
		return "", fmt.Errorf("%w: %q (must be ebook, paperback or hardcover)", ErrInvalidBookType, s)
	}
}

// PathMode controls the image path rewrite around the Pandoc runs.
type PathMode int

const (
	// PathModeRewrite makes image paths absolute before Pandoc runs and
	// restores them afterwards.
	PathModeRewrite PathMode = iota
	// PathModeSkipImages leaves image paths alone.
	PathModeSkipImages
	// PathModeKeepRelative leaves image paths alone because the manuscript
	// is meant to be built with relative paths.
	PathModeKeepRelative
)

func (m PathMode) String() string {
	switch m {
	case PathModeSkipImages:
		return "skip-images"
	case PathModeKeepRelative:
		return "keep relative paths"
	default:
		return "rewrite"
	}
}

// NewPathMode maps the two mutually exclusive CLI switches to a PathMode.
func NewPathMode(skipImages, keepRelative bool) (PathMode, error) {
	switch {
	case skipImages && keepRelative:
		return 0, fmt.Errorf("%w: skip-images and keep-relative-paths are mutually exclusive", ErrInvalidPathMode)
	case skipImages:
		return PathModeSkipImages, nil
	case keepRelative:
		return PathModeKeepRelative, nil
	default:
		return PathModeRewrite, nil
	}
}

// Paths locates every file of a book project. All paths are absolute.
type Paths struct {
	Root       string
	Manuscript string
	Assets     string
	Output     string
	Backup     string
	Metadata   string
	Pyproject  string
	TOC        string
	Log        string
	Lock       string
}

// LockFileName is the run lock created in the project root.
const LockFileName = ".bookexport.lock"

// NewPaths resolves the layout against root. Relative layout entries are
// joined to root; absolute ones are kept.
func NewPaths(root string, layout config.PathsConfig) (Paths, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Paths{}, fmt.Errorf("resolving project root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return Paths{}, fmt.Errorf("%w: %s", ErrProjectNotFound, absRoot)
	}

	join := func(p string) string {
		if filepath.IsAbs(p) {
			return filepath.Clean(p)
		}
		return filepath.Join(absRoot, p)
	}

	return Paths{
		Root:       absRoot,
		Manuscript: join(layout.Manuscript),
		Assets:     join(layout.Assets),
		Output:     join(layout.Output),
		Backup:     join(layout.Backup),
		Metadata:   join(layout.Metadata),
		Pyproject:  join(layout.Pyproject),
		TOC:        join(layout.TOC),
		Log:        join(layout.Log),
		Lock:       filepath.Join(absRoot, LockFileName),
	}, nil
}

// DefaultPaths resolves the conventional project layout against root.
func DefaultPaths(root string) (Paths, error) {
	return NewPaths(root, config.DefaultConfig().Paths)
}

// RewriteDirs returns the directories scanned by the image path rewrite.
func (p Paths) RewriteDirs() []string {
	return []string{p.Manuscript}
}

// PDFSettings selects the PDF engine and fonts.
type PDFSettings struct {
	Engine   string
	MainFont string
	MonoFont string
}

// DefaultPDFSettings returns lualatex with the DejaVu fonts.
func DefaultPDFSettings() PDFSettings {
	return PDFSettings{
		Engine:   "lualatex",
		MainFont: "DejaVu Sans",
		MonoFont: "DejaVu Sans Mono",
	}
}

// FormatJob is one Pandoc invocation.
type FormatJob struct {
	Format       string
	OutputPath   string
	Files        []string
	AssetsDir    string
	MetadataFile string
	Date         string // overrides the metadata date when set
	Lang         string
	ForceEPUB2   bool
	CoverPath    string
	PDF          PDFSettings
	ExtraArgs    []string
	Binary       string // defaults to "pandoc"
}

// ExportOptions describes one export run. The zero value builds every format
// for an ebook with the default section order.
type ExportOptions struct {
	Formats      []string // nil builds every format
	SectionOrder []string // nil uses the configured order for BookType
	BookType     BookType
	OutputName   string // overrides Preset and the project name
	Preset       string
	Lang         string
	MarkdownExt  string
	CoverPath    string // relative to the project root unless absolute
	ForceEPUB2   bool
	PathMode     PathMode
	TOCMode      string
	TOCExt       string
	DryRun       bool
	NoValidate   bool
}

// ParseFormats splits a comma-separated format list. Unknown names are kept
// so the export can warn about them; an empty list is an error.
func ParseFormats(csv string) ([]string, error) {
	var formats []string
	for _, f := range strings.Split(csv, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			formats = append(formats, f)
		}
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormatList, csv)
	}
	return formats, nil
}

// ParseSectionOrder splits a comma-separated section order.
func ParseSectionOrder(csv string) []string {
	var order []string
	for _, s := range strings.Split(csv, ",") {
		if s = strings.TrimSpace(s); s != "" {
			order = append(order, s)
		}
	}
	return order
}
