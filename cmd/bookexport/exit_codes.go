package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/assets"
	"github.com/alnah/go-bookexport/internal/config"
	"github.com/alnah/go-bookexport/internal/hints"
	"github.com/alnah/go-bookexport/internal/pipeline"
)

// Exit codes for the bookexport CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
// The validate command exits with the validator's own code instead.
const (
	ExitSuccess = 0 // Successful build
	ExitGeneral = 1 // General error, Pandoc failure
	ExitUsage   = 2 // Invalid flags or config
	ExitIO      = 3 // Missing project, invalid encoding, permission denied
	ExitLocked  = 4 // Another export holds the project lock
)

// exitError ends the process with code. Its message was already printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exit *exitError
	if errors.As(err, &exit) {
		return exit.code
	}

	// Lock errors (exit 4)
	if errors.Is(err, bookexport.ErrProjectLocked) {
		return ExitLocked
	}

	// I/O errors (exit 3)
	if errors.Is(err, bookexport.ErrProjectNotFound) ||
		errors.Is(err, pipeline.ErrInvalidEncoding) ||
		errors.Is(err, pipeline.ErrTOCNotFound) ||
		errors.Is(err, bookexport.ErrNoMarkdownFiles) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) {
		return ExitIO
	}

	// Usage/config errors (exit 2)
	if errors.Is(err, bookexport.ErrUsage) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrConfigInvalid) ||
		errors.Is(err, pipeline.ErrInvalidTOCMode) ||
		errors.Is(err, assets.ErrStyleNotFound) ||
		errors.Is(err, assets.ErrInvalidAssetName) {
		return ExitUsage
	}

	return ExitGeneral
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error) string {
	var pandocErr *bookexport.PandocError
	switch {
	case errors.As(err, &pandocErr):
		if errors.Is(pandocErr.Err, context.DeadlineExceeded) {
			return hints.ForTimeout()
		}
		return hints.ForPandocFailure(pandocErr.Stderr)
	case errors.Is(err, bookexport.ErrPandocNotFound):
		return hints.ForPandocMissing()
	case errors.Is(err, bookexport.ErrProjectLocked):
		return hints.ForProjectLocked(bookexport.LockFileName)
	case errors.Is(err, pipeline.ErrInvalidEncoding):
		return hints.ForInvalidEncoding()
	case errors.Is(err, bookexport.ErrProjectNotFound):
		return hints.ForProjectRoot()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(nil)
	case errors.Is(err, assets.ErrStyleNotFound):
		return hints.ForStyleNotFound(assets.StyleNames())
	case errors.Is(err, os.ErrPermission):
		return hints.ForOutputDirectory()
	}
	return ""
}

// reportError prints err and its hint. Interrupts and errors carrying only
// an exit code print nothing.
func reportError(w io.Writer, err error) {
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	var exit *exitError
	if errors.As(err, &exit) {
		return
	}
	fmt.Fprintf(w, "Error: %v%s\n", err, hintFor(err))
	if exitCodeFor(err) == ExitUsage && errors.Is(err, bookexport.ErrUsage) {
		fmt.Fprintln(w, "Run 'bookexport --help' for usage.")
	}
}
