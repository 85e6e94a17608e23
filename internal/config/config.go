package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/alnah/go-bookexport/internal/dateutil"
	"github.com/alnah/go-bookexport/internal/fileutil"
	"github.com/alnah/go-bookexport/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrConfigInvalid   = errors.New("invalid config")
)

// ProjectConfigName is the config file looked up in a project root.
const ProjectConfigName = "bookexport"

// Accepted values. Kept in sync with the root package.
var (
	KnownFormats   = []string{"markdown", "pdf", "epub", "docx"}
	KnownBookTypes = []string{"ebook", "paperback", "hardcover"}
	KnownTOCModes  = []string{"strip-to-anchors", "replace-ext"}
)

// Config holds the tool configuration read from bookexport.yaml.
// Unset keys keep the values of DefaultConfig.
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Export   ExportConfig   `yaml:"export"`
	Sections SectionsConfig `yaml:"sections"`
	PDF      PDFConfig      `yaml:"pdf"`
	EPUB     EPUBConfig     `yaml:"epub"`
	TOC      TOCConfig      `yaml:"toc"`
	Preview  PreviewConfig  `yaml:"preview"`
	Pandoc   PandocConfig   `yaml:"pandoc"`
	Metadata MetadataConfig `yaml:"metadata"`
}

// PathsConfig locates the project files, relative to the project root.
type PathsConfig struct {
	Manuscript string `yaml:"manuscript"`
	Assets     string `yaml:"assets"`
	Output     string `yaml:"output"`
	Backup     string `yaml:"backup"`
	Metadata   string `yaml:"metadata"`
	Pyproject  string `yaml:"pyproject"`
	TOC        string `yaml:"toc"`
	Log        string `yaml:"log"`
}

// ExportConfig holds the defaults of the export command.
type ExportConfig struct {
	Formats       []string `yaml:"formats"`
	BookType      string   `yaml:"book_type"`
	Lang          string   `yaml:"lang"`
	OutputName    string   `yaml:"output_name"`
	MarkdownExt   string   `yaml:"markdown_ext"`
	Timeout       string   `yaml:"timeout"` // Go duration, empty = no timeout
	RunValidation bool     `yaml:"validate"`
}

// SectionsConfig overrides the section order. Entries are paths relative to
// the manuscript directory; directories expand to their Markdown files.
type SectionsConfig struct {
	Default    []string            `yaml:"default"`
	ByBookType map[string][]string `yaml:"by_book_type"`
}

// PDFConfig selects the PDF engine and fonts passed to Pandoc.
type PDFConfig struct {
	Engine   string `yaml:"engine"`
	MainFont string `yaml:"main_font"`
	MonoFont string `yaml:"mono_font"`
}

// EPUBConfig defines EPUB options.
type EPUBConfig struct {
	Cover          string `yaml:"cover"`       // relative to the project root
	ForceEPUB2     bool   `yaml:"force_epub2"` // --metadata epub.version=2
	MinCoverHeight int    `yaml:"min_cover_height"`
}

// TOCConfig defines how the manuscript TOC file is normalized before export.
type TOCConfig struct {
	Mode string `yaml:"mode"`
	Ext  string `yaml:"ext"`
}

// PreviewConfig defines the HTML preview.
type PreviewConfig struct {
	Style    string `yaml:"style"`
	Output   string `yaml:"output"` // relative to the output directory
	TOCTitle string `yaml:"toc_title"`
	TOCDepth int    `yaml:"toc_depth"`
}

// PandocConfig defines how Pandoc is invoked.
type PandocConfig struct {
	Binary    string   `yaml:"binary"`
	ExtraArgs []string `yaml:"extra_args"`
}

// MetadataConfig defines the metadata generated when the project has no
// metadata file.
type MetadataConfig struct {
	// PlaceholderDate is a fixed date or "auto" / "auto:LAYOUT".
	PlaceholderDate string `yaml:"placeholder_date"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"paths", &c.Paths},
		{"export", &c.Export},
		{"sections", &c.Sections},
		{"pdf", &c.PDF},
		{"epub", &c.EPUB},
		{"toc", &c.TOC},
		{"preview", &c.Preview},
		{"pandoc", &c.Pandoc},
		{"metadata", &c.Metadata},
	}
	for _, s := range validators {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrConfigInvalid, s.name, err)
		}
	}
	return nil
}

// Validate validates the paths configuration.
func (c *PathsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Manuscript, validation.Required),
		validation.Field(&c.Assets, validation.Required),
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.Backup, validation.Required, validation.By(differentFrom(c.Output, "output"))),
		validation.Field(&c.Metadata, validation.Required),
		validation.Field(&c.Pyproject, validation.Required),
		validation.Field(&c.TOC, validation.Required),
		validation.Field(&c.Log, validation.Required),
	)
}

// Validate validates the export configuration.
func (c *ExportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Formats, validation.Each(validation.Required, validation.In(toAny(KnownFormats)...))),
		validation.Field(&c.BookType, validation.Required, validation.In(toAny(KnownBookTypes)...)),
		validation.Field(&c.MarkdownExt, validation.By(bareExtension)),
		validation.Field(&c.Timeout, validation.By(duration)),
	)
}

// TimeoutDuration returns the per-command timeout, zero when unset.
func (c *ExportConfig) TimeoutDuration() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// Validate validates the section orders.
func (c *SectionsConfig) Validate() error {
	if err := validation.Validate(c.Default, validation.Each(validation.Required)); err != nil {
		return fmt.Errorf("default: %v", err)
	}
	for bookType, order := range c.ByBookType {
		if err := validation.Validate(bookType, validation.In(toAny(KnownBookTypes)...)); err != nil {
			return fmt.Errorf("by_book_type: %q: %v", bookType, err)
		}
		if err := validation.Validate(order, validation.Required, validation.Each(validation.Required)); err != nil {
			return fmt.Errorf("by_book_type.%s: %v", bookType, err)
		}
	}
	return nil
}

// Order returns the configured section order for bookType, falling back to
// the default order. A nil result means the built-in order applies.
func (c *SectionsConfig) Order(bookType string) []string {
	if order, ok := c.ByBookType[bookType]; ok && len(order) > 0 {
		return order
	}
	return c.Default
}

// Validate validates the PDF configuration.
func (c *PDFConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Engine, validation.Required, validation.By(noWhitespace)),
	)
}

// Validate validates the EPUB configuration.
func (c *EPUBConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinCoverHeight, validation.Min(0)),
	)
}

// Validate validates the TOC configuration.
func (c *TOCConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(toAny(KnownTOCModes)...)),
		validation.Field(&c.Ext, validation.Required, validation.By(bareExtension)),
	)
}

// Validate validates the preview configuration.
func (c *PreviewConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Style, validation.Required),
		validation.Field(&c.Output, validation.Required),
		validation.Field(&c.TOCDepth, validation.Min(0), validation.Max(6)),
	)
}

// Validate validates the Pandoc configuration.
func (c *PandocConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Binary, validation.Required),
		validation.Field(&c.ExtraArgs, validation.Each(validation.Required)),
	)
}

// Validate validates the metadata configuration.
func (c *MetadataConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.PlaceholderDate, validation.Required, validation.By(autoDate)),
	)
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func bareExtension(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, `./\ `) {
		return fmt.Errorf("must be a bare extension without dot, got %q", s)
	}
	return nil
}

func duration(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("must be a Go duration such as 10m: %v", err)
	}
	if d < 0 {
		return errors.New("must not be negative")
	}
	return nil
}

func autoDate(value any) error {
	s, _ := value.(string)
	return dateutil.Validate(s)
}

func noWhitespace(value any) error {
	s, _ := value.(string)
	if strings.ContainsAny(s, " \t\n") {
		return fmt.Errorf("must not contain whitespace, got %q", s)
	}
	return nil
}

func differentFrom(other, otherName string) validation.RuleFunc {
	return func(value any) error {
		s, _ := value.(string)
		if s != "" && filepath.Clean(s) == filepath.Clean(other) {
			return fmt.Errorf("must differ from %s", otherName)
		}
		return nil
	}
}

// DefaultConfig returns the configuration used when no bookexport.yaml exists.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Manuscript: "manuscript",
			Assets:     "assets",
			Output:     "output",
			Backup:     "output_backup",
			Metadata:   filepath.Join("config", "metadata.yaml"),
			Pyproject:  "pyproject.toml",
			TOC:        filepath.Join("manuscript", "front-matter", "toc.md"),
			Log:        "export.log",
		},
		Export: ExportConfig{
			Formats:       append([]string(nil), KnownFormats...),
			BookType:      "ebook",
			MarkdownExt:   "md",
			RunValidation: true,
		},
		PDF: PDFConfig{
			Engine:   "lualatex",
			MainFont: "DejaVu Sans",
			MonoFont: "DejaVu Sans Mono",
		},
		EPUB: EPUBConfig{
			MinCoverHeight: 1600,
		},
		TOC: TOCConfig{
			Mode: "strip-to-anchors",
			Ext:  "md",
		},
		Preview: PreviewConfig{
			Style:    "default",
			Output:   "preview.html",
			TOCDepth: 3,
		},
		Pandoc: PandocConfig{
			Binary: "pandoc",
		},
		Metadata: MetadataConfig{
			PlaceholderDate: dateutil.PlaceholderDate,
		},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if fileutil.IsFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	return loadFile(configPath)
}

// LoadProjectConfig loads bookexport.yaml (or .yml) from the project root.
// A project without one gets DefaultConfig; found reports which case applied.
func LoadProjectConfig(root string) (cfg *Config, found bool, err error) {
	p := ProjectConfigPath(root)
	if p == "" {
		return DefaultConfig(), false, nil
	}
	cfg, err = loadFile(p)
	if err != nil {
		return nil, true, err
	}
	return cfg, true, nil
}

// ProjectConfigPath returns the project config file in root, or "" when
// there is none.
func ProjectConfigPath(root string) string {
	for _, ext := range configExtensions {
		p := filepath.Join(root, ProjectConfigName+ext)
		if fileutil.FileExists(p) {
			return p
		}
	}
	return ""
}

func loadFile(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yamlutil.UnmarshalStrict(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConfigParse, configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

var configExtensions = []string{".yaml", ".yml"}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/bookexport/
func resolveConfigPath(name string) (string, error) {
	triedPaths := make([]string, 0, len(configExtensions)*2)

	for _, ext := range configExtensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range configExtensions {
			userPath := filepath.Join(userConfigDir, "bookexport", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
