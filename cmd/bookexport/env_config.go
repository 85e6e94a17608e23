package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/alnah/go-bookexport/internal/config"
)

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without editing bookexport.yaml.
type envConfig struct {
	ConfigPath string        // BOOKEXPORT_CONFIG: config file path
	Lang       string        // BOOKEXPORT_LANG: document language
	BookType   string        // BOOKEXPORT_BOOK_TYPE: ebook, paperback, hardcover
	Formats    []string      // BOOKEXPORT_FORMATS: comma-separated formats
	Timeout    time.Duration // BOOKEXPORT_TIMEOUT: per Pandoc run
	PDFEngine  string        // BOOKEXPORT_PDF_ENGINE: lualatex, xelatex...
	Pandoc     string        // BOOKEXPORT_PANDOC: pandoc binary
}

// envPrefix marks the variables read by bookexport.
const envPrefix = "BOOKEXPORT_"

// knownEnvVars lists valid BOOKEXPORT_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"BOOKEXPORT_CONFIG":     true,
	"BOOKEXPORT_LANG":       true,
	"BOOKEXPORT_BOOK_TYPE":  true,
	"BOOKEXPORT_FORMATS":    true,
	"BOOKEXPORT_TIMEOUT":    true,
	"BOOKEXPORT_PDF_ENGINE": true,
	"BOOKEXPORT_PANDOC":     true,
	"BOOKEXPORT_CONTAINER":  true, // read by doctor
}

// loadDotEnv loads <root>/.env. Variables already set in the process
// environment win. A missing file is not an error.
func loadDotEnv(root string) error {
	path := filepath.Join(root, ".env")
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %s: %v", config.ErrConfigParse, path, err)
	}
	return nil
}

// loadEnvConfig reads configuration from environment variables.
// Invalid durations are ignored, like unset ones.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: strings.TrimSpace(os.Getenv("BOOKEXPORT_CONFIG")),
		Lang:       strings.TrimSpace(os.Getenv("BOOKEXPORT_LANG")),
		BookType:   strings.TrimSpace(os.Getenv("BOOKEXPORT_BOOK_TYPE")),
		PDFEngine:  strings.TrimSpace(os.Getenv("BOOKEXPORT_PDF_ENGINE")),
		Pandoc:     strings.TrimSpace(os.Getenv("BOOKEXPORT_PANDOC")),
	}

	if formats := os.Getenv("BOOKEXPORT_FORMATS"); formats != "" {
		for _, f := range strings.Split(formats, ",") {
			if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
				cfg.Formats = append(cfg.Formats, f)
			}
		}
	}

	if timeout := os.Getenv("BOOKEXPORT_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	return cfg
}

// warnUnknownEnvVars logs warnings for unrecognized BOOKEXPORT_* variables.
// Helps catch typos like BOOKEXPORT_FORMAT instead of BOOKEXPORT_FORMATS.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, envPrefix) {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig overrides config values with the environment variables
// that are set. CLI flags are applied later, on top, which gives:
// flags > env vars > config file > defaults.
// Formats are not applied here: like --format, unknown names in
// BOOKEXPORT_FORMATS are warned about and skipped by the export.
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Lang != "" {
		cfg.Export.Lang = env.Lang
	}
	if env.BookType != "" {
		cfg.Export.BookType = strings.ToLower(env.BookType)
	}
	if env.Timeout > 0 {
		cfg.Export.Timeout = env.Timeout.String()
	}
	if env.PDFEngine != "" {
		cfg.PDF.Engine = env.PDFEngine
	}
	if env.Pandoc != "" {
		cfg.Pandoc.Binary = env.Pandoc
	}
}
