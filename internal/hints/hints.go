// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/alnah/go-bookexport/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForPandocMissing returns hints when the pandoc executable is not found.
func ForPandocMissing() string {
	var hints []string

	switch {
	case IsInContainer():
		hints = append(hints, "use an image with Pandoc and LaTeX, e.g. pandoc/extra")
	case runtime.GOOS == "darwin":
		hints = append(hints, "install with: brew install pandoc")
	case runtime.GOOS == "windows":
		hints = append(hints, "install with: winget install JohnMacFarlane.Pandoc")
	default:
		hints = append(hints, "install pandoc from your package manager or pandoc.org")
	}

	if os.Getenv("BOOKEXPORT_PANDOC") == "" {
		hints = append(hints, "set BOOKEXPORT_PANDOC to use a specific binary")
	}

	return formatHints(hints)
}

// ForPDFEngine returns a hint when Pandoc cannot find the PDF engine.
func ForPDFEngine(engine string) string {
	if engine == "" {
		engine = "lualatex"
	}
	return format("install " + engine + " (TeX Live) or set pdf.engine in bookexport.yaml")
}

// ForPandocFailure inspects Pandoc's stderr for well-known causes.
func ForPandocFailure(stderr string) string {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "not found") && strings.Contains(lower, "engine"):
		return ForPDFEngine("")
	case strings.Contains(lower, "could not fetch resource"):
		return format("check image paths; run 'bookexport paths --to-absolute' to see which resolve")
	case strings.Contains(lower, "font") && strings.Contains(lower, "not found"):
		return format("install DejaVu fonts or set pdf.main_font / pdf.mono_font")
	}
	return format("see export.log for Pandoc's full output")
}

// ForTimeout returns a hint about increasing timeout for slow operations.
func ForTimeout() string {
	return format("for large books, use --timeout or set timeout in bookexport.yaml")
}

// ForProjectLocked returns a hint when another export holds the lock.
func ForProjectLocked(lockPath string) string {
	return format("another export is running; if not, remove " + lockPath)
}

// ForInvalidEncoding returns a hint for non UTF-8 manuscript files.
func ForInvalidEncoding() string {
	return format("convert the file to UTF-8, e.g. iconv -f latin1 -t utf-8")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/bookexport/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/bookexport.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(filepath.ToSlash(p), ".config/bookexport") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForProjectRoot returns a hint when the project layout is not found.
func ForProjectRoot() string {
	return format("run from the book root or pass --root; expected a manuscript/ directory")
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check the project directory is writable")
}

// ForStyleNotFound returns hints for style not found errors.
func ForStyleNotFound(available []string) string {
	if len(available) == 0 {
		return ""
	}
	return format("available: " + strings.Join(available, ", "))
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
