package bookexport

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for library operations.
var (
	// ErrUsage groups invalid caller input. Errors below wrap it.
	ErrUsage = errors.New("usage error")

	ErrInvalidBookType   = fmt.Errorf("%w: invalid book type", ErrUsage)
	ErrInvalidPathMode   = fmt.Errorf("%w: invalid path mode", ErrUsage)
	ErrInvalidFormatList = fmt.Errorf("%w: no formats given", ErrUsage)
	ErrInvalidBasename   = fmt.Errorf("%w: invalid output name", ErrUsage)

	// Project errors.
	ErrProjectNotFound = errors.New("project root not found")
	ErrProjectLocked   = errors.New("another export is running on this project")

	// Pandoc errors.
	ErrPandocNotFound  = errors.New("pandoc not found")
	ErrPandocFailed    = errors.New("pandoc failed")
	ErrNoMarkdownFiles = errors.New("no Markdown files found")

	// Preview errors.
	ErrPreview = errors.New("preview failed")
)

// stderrTailLines is how much Pandoc stderr is kept in a PandocError.
const stderrTailLines = 20

// PandocError reports a failed Pandoc run for one format.
// It matches ErrPandocFailed with errors.Is.
type PandocError struct {
	Format string
	Args   []string
	Stderr string
	Err    error
}

func (e *PandocError) Error() string {
	msg := fmt.Sprintf("pandoc failed for %s: %v", e.Format, e.Err)
	if tail := tailLines(e.Stderr, stderrTailLines); tail != "" {
		msg += "\n" + tail
	}
	return msg
}

func (e *PandocError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrPandocFailed) true.
func (e *PandocError) Is(target error) bool { return target == ErrPandocFailed }

// tailLines returns the last n non-empty lines of s.
func tailLines(s string, n int) string {
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
