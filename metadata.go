package bookexport

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"

	"github.com/alnah/go-bookexport/internal/dateutil"
	"github.com/alnah/go-bookexport/internal/fileutil"
	"github.com/alnah/go-bookexport/internal/yamlutil"
)

// Fallbacks used when the project does not say otherwise.
const (
	DefaultProjectName = "book"
	DefaultLanguage    = "en"
)

// pyproject holds the two places a project name can live.
type pyproject struct {
	Tool struct {
		Poetry struct {
			Name string `toml:"name"`
		} `toml:"poetry"`
	} `toml:"tool"`
	Project struct {
		Name string `toml:"name"`
	} `toml:"project"`
}

// ProjectName reads the project name from pyproject.toml, trying
// [tool.poetry].name then [project].name. The returned name is always
// usable: on any failure it is DefaultProjectName and err says why.
func ProjectName(pyprojectPath string) (string, error) {
	data, err := os.ReadFile(pyprojectPath) // #nosec G304 -- project manifest
	if err != nil {
		return DefaultProjectName, fmt.Errorf("could not read project name from %s: %w", pyprojectPath, err)
	}

	var p pyproject
	if err := toml.Unmarshal(data, &p); err != nil {
		return DefaultProjectName, fmt.Errorf("could not parse %s: %w", pyprojectPath, err)
	}

	name := strings.TrimSpace(p.Tool.Poetry.Name)
	if name == "" {
		name = strings.TrimSpace(p.Project.Name)
	}
	if name == "" {
		return DefaultProjectName, fmt.Errorf("no project name in %s", pyprojectPath)
	}
	if err := ValidateBasename(name); err != nil {
		return DefaultProjectName, fmt.Errorf("project name in %s: %w", pyprojectPath, err)
	}
	return name, nil
}

// Metadata is the subset of the Pandoc metadata file the tool reads.
type Metadata struct {
	Title    string `yaml:"title"`
	Author   string `yaml:"author"`
	Date     string `yaml:"date"`
	Lang     string `yaml:"lang"`
	Language string `yaml:"language"`
}

// ReadMetadata parses the YAML metadata file. A missing file yields a zero
// Metadata and no error.
func ReadMetadata(path string) (Metadata, error) {
	var m Metadata
	if err := yamlutil.ReadFile(path, &m, false); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Metadata{}, nil
		}
		return Metadata{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}

// MetadataLanguage returns the language declared in the metadata file,
// preferring language over lang.
func MetadataLanguage(path string) (string, error) {
	m, err := ReadMetadata(path)
	if err != nil {
		return "", err
	}
	if m.Language != "" {
		return m.Language, nil
	}
	return m.Lang, nil
}

// ResolveLanguage applies explicit > metadata > DefaultLanguage. mismatch is
// true when both are set and name different languages; explicit wins.
func ResolveLanguage(explicit, metadata string) (lang string, mismatch bool) {
	explicit = strings.TrimSpace(explicit)
	metadata = strings.TrimSpace(metadata)
	switch {
	case explicit != "":
		return explicit, metadata != "" && !sameLanguage(explicit, metadata)
	case metadata != "":
		return metadata, false
	default:
		return DefaultLanguage, false
	}
}

func sameLanguage(a, b string) bool {
	ca, errA := CanonicalLanguage(a)
	cb, errB := CanonicalLanguage(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return ca == cb
}

// CanonicalLanguage validates a BCP 47 tag and returns its canonical form
// (pt_br -> pt-BR).
func CanonicalLanguage(tag string) (string, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid language tag %q: %w", tag, err)
	}
	return t.String(), nil
}

// MetadataDate returns the date to pass to Pandoc for a metadata file
// whose date is "auto" or "auto:LAYOUT", resolved at now. Fixed or missing
// dates return "" and stay with the metadata file.
func MetadataDate(path string, now time.Time) (string, error) {
	m, err := ReadMetadata(path)
	if err != nil {
		return "", err
	}
	if !dateutil.IsAuto(m.Date) {
		return "", nil
	}
	date, err := dateutil.Resolve(m.Date, now)
	if err != nil {
		return "", fmt.Errorf("date in %s: %w", path, err)
	}
	return date, nil
}

// Placeholder values written when the project has no metadata file.
const (
	PlaceholderTitle  = "CHANGE TO YOUR TITLE"
	PlaceholderAuthor = "YOUR NAME"
)

// MetadataFile is the metadata file handed to Pandoc.
type MetadataFile struct {
	Path string
	Temp bool // created by EnsureMetadataFile, removed by Remove
}

// Remove deletes the file if it is temporary.
func (m MetadataFile) Remove() error {
	if !m.Temp {
		return nil
	}
	if err := os.Remove(m.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type placeholderMetadata struct {
	Title  string `yaml:"title"`
	Author string `yaml:"author"`
	Date   string `yaml:"date"`
	Lang   string `yaml:"lang"`
}

// EnsureMetadataFile returns path when it exists. Otherwise it writes a
// temporary YAML file with placeholder title, author, date and lang; the
// caller removes it with MetadataFile.Remove. date is a fixed or auto date
// value resolved at now; empty means the year.
func EnsureMetadataFile(path, date string, now time.Time) (MetadataFile, error) {
	if fileutil.FileExists(path) {
		return MetadataFile{Path: path}, nil
	}

	if date == "" {
		date = dateutil.PlaceholderDate
	}
	resolved, err := dateutil.Resolve(date, now)
	if err != nil {
		return MetadataFile{}, fmt.Errorf("placeholder date: %w", err)
	}
	data, err := yamlutil.Marshal(placeholderMetadata{
		Title:  PlaceholderTitle,
		Author: PlaceholderAuthor,
		Date:   resolved,
		Lang:   DefaultLanguage,
	})
	if err != nil {
		return MetadataFile{}, err
	}

	tmpPath, _, err := fileutil.WriteTempFile(string(data), "yaml")
	if err != nil {
		return MetadataFile{}, fmt.Errorf("creating temporary metadata: %w", err)
	}
	return MetadataFile{Path: tmpPath, Temp: true}, nil
}

// OutputBasename picks explicit > preset > project name and appends the
// book type: "mybook-ebook".
func OutputBasename(projectName, explicit, preset string, bookType BookType) string {
	base := projectName
	switch {
	case explicit != "":
		base = explicit
	case preset != "":
		base = preset
	}
	if bookType == "" {
		bookType = Ebook
	}
	return base + "-" + string(bookType)
}

// ValidateBasename rejects names that would escape the output directory.
func ValidateBasename(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: %q", ErrInvalidBasename, name)
	}
	return nil
}
