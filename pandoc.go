package bookexport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/alnah/go-bookexport/internal/fileutil"
	"github.com/alnah/go-bookexport/internal/process"
)

// Format is an output format and the Pandoc writer producing it.
type Format struct {
	Name   string
	Writer string
}

// Formats lists the supported formats in default build order.
var Formats = []Format{
	{Name: "markdown", Writer: "gfm"},
	{Name: "pdf", Writer: "pdf"},
	{Name: "epub", Writer: "epub"},
	{Name: "docx", Writer: "docx"},
}

// DefaultMarkdownExt is the extension of the Markdown export.
const DefaultMarkdownExt = "md"

// LookupFormat returns the format named name.
func LookupFormat(name string) (Format, bool) {
	for _, f := range Formats {
		if f.Name == name {
			return f, true
		}
	}
	return Format{}, false
}

// FormatNames returns the names of Formats in order.
func FormatNames() []string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = f.Name
	}
	return names
}

// ResolveExtension returns the output file extension for format. A custom
// extension only applies to markdown.
func ResolveExtension(format, customMarkdownExt string) string {
	if format == "markdown" {
		if customMarkdownExt != "" {
			return customMarkdownExt
		}
		return DefaultMarkdownExt
	}
	if f, ok := LookupFormat(format); ok {
		return f.Writer
	}
	return format
}

// DefaultSectionOrder returns the section order used when none is configured.
// Entries are relative to the manuscript directory.
func DefaultSectionOrder() []string {
	return []string{
		"front-matter/toc.md",
		"front-matter/preface.md",
		"front-matter/introduction.md",
		"front-matter/foreword.md",
		"chapters",
		"back-matter/epilogue.md",
		"back-matter/glossary.md",
		"back-matter/appendix.md",
		"back-matter/acknowledgments.md",
		"back-matter/about-the-author.md",
		"back-matter/faq.md",
		"back-matter/bibliography.md",
		"back-matter/index.md",
	}
}

// CollectMarkdownFiles expands a section order into Markdown files.
// Directory entries expand to their .md files in lexicographic order (not
// recursively); file entries stand for themselves; missing entries are
// dropped. A file reached twice is kept at its first position.
func CollectMarkdownFiles(bookDir string, order []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, section := range order {
		p := filepath.Join(bookDir, filepath.FromSlash(section))
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			add(p)
			continue
		}
		entries, err := fileutil.ListMarkdownFiles(p)
		if err != nil {
			return nil, fmt.Errorf("listing section %s: %w", section, err)
		}
		for _, e := range entries {
			add(e)
		}
	}
	return files, nil
}

// BuildPandocArgs returns the full argv (binary first) for job.
func BuildPandocArgs(job FormatJob) []string {
	writer := job.Format
	if f, ok := LookupFormat(job.Format); ok {
		writer = f.Writer
	}
	binary := job.Binary
	if binary == "" {
		binary = "pandoc"
	}

	args := []string{
		binary,
		"--verbose",
		"--from=markdown",
		"--to=" + writer,
		"--output=" + job.OutputPath,
		"--resource-path=" + job.AssetsDir,
		"--metadata-file=" + job.MetadataFile,
	}
	args = append(args, job.Files...)
	if job.Date != "" {
		args = append(args, "--metadata", "date="+job.Date)
	}

	switch job.Format {
	case "epub":
		if job.Lang != "" {
			args = append(args, "--metadata", "lang="+job.Lang)
		}
		if job.ForceEPUB2 {
			args = append(args, "--metadata", "epub.version=2")
		}
		if job.CoverPath != "" {
			args = append(args, "--epub-cover-image="+job.CoverPath)
		}
	case "pdf":
		pdf := job.PDF
		def := DefaultPDFSettings()
		if pdf.Engine == "" {
			pdf.Engine = def.Engine
		}
		if pdf.MainFont == "" {
			pdf.MainFont = def.MainFont
		}
		if pdf.MonoFont == "" {
			pdf.MonoFont = def.MonoFont
		}
		args = append(args,
			"--pdf-engine="+pdf.Engine,
			"-V", "mainfont="+pdf.MainFont,
			"-V", "monofont="+pdf.MonoFont,
		)
	case "markdown":
		args = append(args, "--wrap=none")
	}

	return append(args, job.ExtraArgs...)
}

// CommandRunner abstracts command execution to enable testing without real subprocesses.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) (stdout string, stderr string, err error)
}

// waitDelay bounds how long Run waits for output pipes after the process
// group was killed.
const waitDelay = 5 * time.Second

// ExecRunner implements CommandRunner using os/exec. The command runs in its
// own process group, killed as a whole when ctx is done.
type ExecRunner struct {
	// Log, when set, receives stdout and stderr as they are produced.
	Log io.Writer
}

func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	process.SetProcessGroup(cmd)
	cmd.Cancel = func() error {
		process.KillProcessGroup(cmd.Process.Pid)
		return nil
	}
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if r.Log != nil {
		cmd.Stdout = io.MultiWriter(&stdout, r.Log)
		cmd.Stderr = io.MultiWriter(&stderr, r.Log)
	}

	err := cmd.Run()
	if err != nil && ctx.Err() != nil {
		err = fmt.Errorf("%s: %w", name, ctx.Err())
	}
	return stdout.String(), stderr.String(), err
}

var _ CommandRunner = (*ExecRunner)(nil)
