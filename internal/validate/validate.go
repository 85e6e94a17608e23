package validate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Code is the outcome of a validation, usable as a process exit code.
type Code int

const (
	CodeOK          Code = 0
	CodeIssues      Code = 1
	CodeNotFound    Code = 2
	CodeTimeout     Code = 124
	CodeToolMissing Code = 127
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeIssues:
		return "issues"
	case CodeNotFound:
		return "not found"
	case CodeTimeout:
		return "timeout"
	case CodeToolMissing:
		return "tool missing"
	default:
		return fmt.Sprintf("code %d", int(c))
	}
}

// Default timeouts for the external tools.
const (
	DefaultEPUBCheckTimeout = 60 * time.Second
	DefaultPDFInfoTimeout   = 30 * time.Second
)

// DefaultMinCoverHeight is the cover height below which a warning is issued.
const DefaultMinCoverHeight = 1600

// Result describes the validation of one artifact.
type Result struct {
	Format   string
	Path     string
	Code     Code
	Summary  string
	Issues   []string
	Warnings []string
}

// OK reports whether the artifact passed.
func (r Result) OK() bool {
	return r.Code == CodeOK
}

func (r *Result) fail(code Code, format string, args ...any) {
	if r.Code == CodeOK {
		r.Code = code
	}
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Runner executes an external tool. The root package's ExecRunner satisfies it.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr string, err error)
}

// Validator validates export artifacts.
type Validator struct {
	runner           Runner
	lookPath         func(string) (string, error)
	epubcheckTimeout time.Duration
	pdfinfoTimeout   time.Duration
	minCoverHeight   int
	requireTools     bool
}

// Option configures a Validator.
type Option func(*Validator)

// WithLookPath replaces exec.LookPath for tool discovery.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(v *Validator) { v.lookPath = fn }
}

// WithTimeouts sets the epubcheck and pdfinfo timeouts. Zero keeps the default.
func WithTimeouts(epubcheck, pdfinfo time.Duration) Option {
	return func(v *Validator) {
		if epubcheck > 0 {
			v.epubcheckTimeout = epubcheck
		}
		if pdfinfo > 0 {
			v.pdfinfoTimeout = pdfinfo
		}
	}
}

// WithMinCoverHeight sets the cover height warning threshold; 0 disables it.
func WithMinCoverHeight(h int) Option {
	return func(v *Validator) { v.minCoverHeight = h }
}

// WithRequireTools makes a missing external tool fail with CodeToolMissing.
// By default a missing tool is a warning and the in-process checks decide.
func WithRequireTools(require bool) Option {
	return func(v *Validator) { v.requireTools = require }
}

// New creates a Validator running external tools through runner.
func New(runner Runner, opts ...Option) *Validator {
	v := &Validator{
		runner:           runner,
		lookPath:         exec.LookPath,
		epubcheckTimeout: DefaultEPUBCheckTimeout,
		pdfinfoTimeout:   DefaultPDFInfoTimeout,
		minCoverHeight:   DefaultMinCoverHeight,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate dispatches on format: "epub", "pdf", "docx" or "markdown".
func (v *Validator) Validate(ctx context.Context, format, path string) Result {
	switch format {
	case "epub":
		return v.EPUB(ctx, path)
	case "pdf":
		return v.PDF(ctx, path)
	case "docx":
		return DOCX(path)
	case "markdown":
		return Markdown(path)
	default:
		r := Result{Format: format, Path: path}
		r.fail(CodeIssues, "unsupported format %q", format)
		return r
	}
}

// DetectFormat guesses the format from the file extension.
func DetectFormat(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".epub":
		return "epub", true
	case ".pdf":
		return "pdf", true
	case ".docx":
		return "docx", true
	case ".md", ".gfm", ".markdown":
		return "markdown", true
	default:
		return "", false
	}
}

// checkExists fills r and returns false when path is not a regular file.
func checkExists(r *Result) bool {
	info, err := os.Stat(r.Path)
	if err != nil || info.IsDir() {
		r.fail(CodeNotFound, "%s file not found: %s", r.Format, r.Path)
		return false
	}
	return true
}

// toolOutcome is the result of running an external checker.
type toolOutcome struct {
	ran     bool
	stdout  string
	stderr  string
	timeout bool
	failed  bool
}

// runTool runs tool with a timeout. A missing tool is recorded on r as a
// warning, or as CodeToolMissing when tools are required.
func (v *Validator) runTool(ctx context.Context, r *Result, timeout time.Duration, tool string, args ...string) toolOutcome {
	if _, err := v.lookPath(tool); err != nil {
		if v.requireTools {
			r.fail(CodeToolMissing, "%s not found on PATH", tool)
		} else {
			r.warn("%s not found on PATH, external check skipped", tool)
		}
		return toolOutcome{}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, err := v.runner.Run(ctx, tool, args...)
	out := toolOutcome{ran: true, stdout: stdout, stderr: stderr}
	switch {
	case err == nil:
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		out.timeout = true
		r.fail(CodeTimeout, "%s timed out after %s", tool, timeout)
	case errors.Is(err, exec.ErrNotFound):
		out.ran = false
		r.fail(CodeToolMissing, "%s not found: %v", tool, err)
	default:
		out.failed = true
	}
	return out
}

// outputLines splits tool output into non-empty trimmed lines.
func outputLines(outputs ...string) []string {
	var lines []string
	for _, o := range outputs {
		for _, line := range strings.Split(o, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines
}
