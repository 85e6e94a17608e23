package bookexport

// Notes:
// - mockRunner stands in for Pandoc: it records argv, snapshots the chapter
//   while "Pandoc" runs and writes the --output file
// - lookPath only knows pandoc, so epubcheck/pdfinfo are reported missing and
//   validation relies on the in-process checks
// - Fixture roots are symlink-resolved so absolute image paths are stable
// - Unix paths only; Windows is skipped in the fixture helper

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alnah/go-bookexport/internal/config"
	"github.com/alnah/go-bookexport/internal/logging"
	"github.com/alnah/go-bookexport/internal/pipeline"
	"github.com/alnah/go-bookexport/internal/validate"
)

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

type mockRunner struct {
	mu        sync.Mutex
	calls     [][]string
	snapshots []string // chapter content seen by each call

	snapshotPath string
	failFormat   string // --to writer that fails
	stderr       string
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, append([]string{name}, args...))
	if m.snapshotPath != "" {
		data, _ := os.ReadFile(m.snapshotPath)
		m.snapshots = append(m.snapshots, string(data))
	}
	if m.failFormat != "" && slices.Contains(args, "--to="+m.failFormat) {
		return "", m.stderr, errors.New("exit status 43")
	}
	for _, arg := range args {
		if out, ok := strings.CutPrefix(arg, "--output="); ok {
			content := "# Built\n"
			if strings.HasSuffix(out, ".pdf") {
				content = "%PDF-1.7\n%fake\n"
			}
			if err := os.WriteFile(out, []byte(content), 0o600); err != nil {
				return "", "", err
			}
		}
	}
	return "", "", nil
}

func (m *mockRunner) argv() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.calls)
}

func pandocOnly(name string) (string, error) {
	if name == "pandoc" {
		return "/usr/bin/pandoc", nil
	}
	return "", exec.ErrNotFound
}

// ---------------------------------------------------------------------------
// Fixture
// ---------------------------------------------------------------------------

const (
	fixtureChapter = "# One\n\n![Figure](../../assets/img.png)\n\n<img src=\"../../assets/img.png\" alt=\"Fig\">\n\n![Web](https://example.com/x.png)\n"
	fixtureTOC     = "- [One](../chapters/01-one.md#one)\n"
)

type project struct {
	paths   Paths
	chapter string
}

func newProject(t *testing.T) project {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fixture uses unix path expectations")
	}

	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("resolving temp dir: %v", err)
	}
	paths, err := DefaultPaths(root)
	if err != nil {
		t.Fatalf("DefaultPaths: %v", err)
	}

	p := project{paths: paths, chapter: filepath.Join(paths.Manuscript, "chapters", "01-one.md")}
	mustWrite(t, p.chapter, fixtureChapter)
	mustWrite(t, filepath.Join(paths.Manuscript, "chapters", "02-two.md"), "# Two\n\nText.\n")
	mustWrite(t, paths.TOC, fixtureTOC)
	mustWrite(t, filepath.Join(paths.Assets, "img.png"), "png")
	mustWrite(t, paths.Metadata, "title: Test Book\nauthor: A. Writer\nlang: en\n")
	mustWrite(t, paths.Pyproject, "[tool.poetry]\nname = \"testbook\"\n")
	return p
}

func newTestExporter(p project, runner *mockRunner, opts ...Option) (*Exporter, *bytes.Buffer) {
	var out bytes.Buffer
	base := []Option{
		WithRunner(runner),
		WithLookPath(pandocOnly),
		WithStatus(logging.NewStatus(&out, nil, false)),
		WithClock(func() time.Time { return time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC) }),
	}
	return NewExporter(p.paths, append(base, opts...)...), &out
}

// ---------------------------------------------------------------------------
// Export: success path
// ---------------------------------------------------------------------------

func TestExport_AllFormats(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	runner := &mockRunner{snapshotPath: p.chapter}
	exp, out := newTestExporter(p, runner)

	report, err := exp.Export(context.Background(), ExportOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}

	if report.Basename != "testbook-ebook" {
		t.Errorf("Basename = %q, want testbook-ebook", report.Basename)
	}
	if report.Lang != "en" {
		t.Errorf("Lang = %q, want en", report.Lang)
	}

	calls := runner.argv()
	if len(calls) != 4 {
		t.Fatalf("got %d pandoc calls, want 4", len(calls))
	}
	wantWriters := []string{"--to=gfm", "--to=pdf", "--to=epub", "--to=docx"}
	for i, call := range calls {
		if !slices.Contains(call, wantWriters[i]) {
			t.Errorf("call %d = %v, want %s", i, call, wantWriters[i])
		}
	}

	wantFiles := []string{
		filepath.Join(p.paths.Output, "testbook-ebook.md"),
		filepath.Join(p.paths.Output, "testbook-ebook.pdf"),
		filepath.Join(p.paths.Output, "testbook-ebook.epub"),
		filepath.Join(p.paths.Output, "testbook-ebook.docx"),
	}
	for i, a := range report.Artifacts {
		if a.Path != wantFiles[i] {
			t.Errorf("artifact %d = %q, want %q", i, a.Path, wantFiles[i])
		}
	}

	t.Run("pandoc saw absolute image paths", func(t *testing.T) {
		abs := filepath.Join(p.paths.Assets, "img.png")
		for i, snap := range runner.snapshots {
			if !strings.Contains(snap, "![Figure]("+abs+")") || !strings.Contains(snap, `<img src="`+abs+`" alt="Fig">`) {
				t.Errorf("call %d saw chapter:\n%s", i, snap)
			}
			if !strings.Contains(snap, "https://example.com/x.png") {
				t.Errorf("URL was rewritten")
			}
		}
	})

	t.Run("manuscript restored byte for byte", func(t *testing.T) {
		if got := mustRead(t, p.chapter); got != fixtureChapter {
			t.Errorf("chapter after export =\n%s\nwant\n%s", got, fixtureChapter)
		}
	})

	t.Run("toc normalized", func(t *testing.T) {
		if !report.TOCChanged {
			t.Error("TOCChanged = false")
		}
		if got := mustRead(t, p.paths.TOC); got != "- [One](#one)\n" {
			t.Errorf("toc = %q", got)
		}
	})

	t.Run("lock released", func(t *testing.T) {
		release, err := AcquireLock(p.paths.Lock)
		if err != nil {
			t.Fatalf("lock still held: %v", err)
		}
		release()
	})

	t.Run("validation results in artifact order", func(t *testing.T) {
		results := report.Validation.Wait()
		if len(results) != 4 {
			t.Fatalf("got %d results, want 4", len(results))
		}
		for i, r := range results {
			if r.Path != wantFiles[i] {
				t.Errorf("result %d path = %q, want %q", i, r.Path, wantFiles[i])
			}
		}
		if !results[0].OK() {
			t.Errorf("markdown validation = %+v", results[0])
		}
		if !results[1].OK() {
			t.Errorf("pdf validation = %+v", results[1])
		}
		if results[2].OK() {
			t.Errorf("fake epub passed validation")
		}
	})

	t.Run("status lines", func(t *testing.T) {
		for _, want := range []string{
			"📘 Output file base name set to: testbook-ebook",
			"🌐 Using language: 'en'",
			"✅ Successfully generated: " + wantFiles[2],
			"🧩 EPUB generated. Validation running in background...",
			"🚀 Export complete",
		} {
			if !strings.Contains(out.String(), want) {
				t.Errorf("status output missing %q", want)
			}
		}
	})
}

func TestExport_Argv(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	mustWrite(t, filepath.Join(p.paths.Root, "cover.png"), "not an image")
	runner := &mockRunner{}
	exp, _ := newTestExporter(p, runner, WithConfig(func() *config.Config {
		cfg := config.DefaultConfig()
		cfg.PDF.Engine = "xelatex"
		cfg.Pandoc.ExtraArgs = []string{"--toc"}
		return cfg
	}()))

	_, err := exp.Export(context.Background(), ExportOptions{
		Formats:    []string{"epub", "pdf"},
		Lang:       "fr",
		CoverPath:  "cover.png",
		ForceEPUB2: true,
		NoValidate: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	calls := runner.argv()
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}

	files := []string{
		filepath.Join(p.paths.Manuscript, "front-matter", "toc.md"),
		filepath.Join(p.paths.Manuscript, "chapters", "01-one.md"),
		filepath.Join(p.paths.Manuscript, "chapters", "02-two.md"),
	}
	head := func(writer, ext string) []string {
		return append([]string{
			"pandoc", "--verbose", "--from=markdown", "--to=" + writer,
			"--output=" + filepath.Join(p.paths.Output, "testbook-ebook."+ext),
			"--resource-path=" + p.paths.Assets,
			"--metadata-file=" + p.paths.Metadata,
		}, files...)
	}

	wantEPUB := append(head("epub", "epub"),
		"--metadata", "lang=fr", "--metadata", "epub.version=2",
		"--epub-cover-image="+filepath.Join(p.paths.Root, "cover.png"), "--toc")
	if !slices.Equal(calls[0], wantEPUB) {
		t.Errorf("epub argv\ngot  %q\nwant %q", calls[0], wantEPUB)
	}

	wantPDF := append(head("pdf", "pdf"),
		"--pdf-engine=xelatex", "-V", "mainfont=DejaVu Sans", "-V", "monofont=DejaVu Sans Mono", "--toc")
	if !slices.Equal(calls[1], wantPDF) {
		t.Errorf("pdf argv\ngot  %q\nwant %q", calls[1], wantPDF)
	}
}

// ---------------------------------------------------------------------------
// Export: failures
// ---------------------------------------------------------------------------

func TestExport_PandocFailureRestoresManuscript(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	if err := os.Remove(p.paths.Metadata); err != nil {
		t.Fatal(err)
	}
	runner := &mockRunner{failFormat: "pdf", stderr: "Error producing PDF.\n! LaTeX Error: File `x.sty' not found.\n"}
	exp, out := newTestExporter(p, runner)

	report, err := exp.Export(context.Background(), ExportOptions{})
	if !errors.Is(err, ErrPandocFailed) {
		t.Fatalf("expected ErrPandocFailed, got %v", err)
	}
	var perr *PandocError
	if !errors.As(err, &perr) || perr.Format != "pdf" || !strings.Contains(perr.Error(), "x.sty") {
		t.Errorf("unexpected PandocError: %v", err)
	}

	if calls := runner.argv(); len(calls) != 2 {
		t.Errorf("got %d calls, want markdown then pdf only", len(calls))
	}
	if len(report.Artifacts) != 1 || report.Artifacts[0].Format != "markdown" {
		t.Errorf("artifacts = %+v", report.Artifacts)
	}
	if report.Validation != nil {
		t.Error("validation scheduled after a failure")
	}

	if got := mustRead(t, p.chapter); got != fixtureChapter {
		t.Errorf("manuscript not restored:\n%s", got)
	}

	metaArg := ""
	for _, arg := range runner.argv()[0] {
		if v, ok := strings.CutPrefix(arg, "--metadata-file="); ok {
			metaArg = v
		}
	}
	if metaArg == p.paths.Metadata || metaArg == "" {
		t.Fatalf("expected a temporary metadata file, got %q", metaArg)
	}
	if _, err := os.Stat(metaArg); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("temporary metadata %s not removed", metaArg)
	}
	if !strings.Contains(out.String(), "🗑️  Deleted temporary metadata file") {
		t.Errorf("missing deletion status line:\n%s", out)
	}
}

func TestExport_LockHeld(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	release, err := AcquireLock(p.paths.Lock)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer release()

	runner := &mockRunner{}
	exp, _ := newTestExporter(p, runner)
	_, err = exp.Export(context.Background(), ExportOptions{})
	if !errors.Is(err, ErrProjectLocked) {
		t.Fatalf("expected ErrProjectLocked, got %v", err)
	}
	if len(runner.argv()) != 0 {
		t.Error("pandoc ran while the project was locked")
	}
	if got := mustRead(t, p.paths.TOC); got != fixtureTOC {
		t.Error("TOC modified while the project was locked")
	}
}

func TestExport_PandocMissing(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	runner := &mockRunner{}
	exp, _ := newTestExporter(p, runner, WithLookPath(func(string) (string, error) {
		return "", exec.ErrNotFound
	}))

	_, err := exp.Export(context.Background(), ExportOptions{})
	if !errors.Is(err, ErrPandocNotFound) {
		t.Fatalf("expected ErrPandocNotFound, got %v", err)
	}
}

func TestExport_InvalidEncodingAborts(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	bad := filepath.Join(p.paths.Manuscript, "chapters", "03-bad.md")
	mustWrite(t, bad, "caf\xe9\n")

	runner := &mockRunner{}
	exp, _ := newTestExporter(p, runner)
	_, err := exp.Export(context.Background(), ExportOptions{})
	if !errors.Is(err, pipeline.ErrInvalidEncoding) {
		t.Fatalf("expected ErrInvalidEncoding, got %v", err)
	}
	if len(runner.argv()) != 0 {
		t.Error("pandoc ran after an encoding error")
	}
	if got := mustRead(t, p.chapter); got != fixtureChapter {
		t.Errorf("chapter changed:\n%s", got)
	}
}

func TestExport_UsageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    ExportOptions
		wantErr error
	}{
		{name: "bad book type", opts: ExportOptions{BookType: "scroll"}, wantErr: ErrInvalidBookType},
		{name: "empty format list", opts: ExportOptions{Formats: []string{}}, wantErr: ErrInvalidFormatList},
		{name: "output name with separator", opts: ExportOptions{OutputName: "../x", Formats: []string{"docx"}}, wantErr: ErrInvalidBasename},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newProject(t)
			runner := &mockRunner{}
			exp, _ := newTestExporter(p, runner)
			_, err := exp.Export(context.Background(), tt.opts)
			if !errors.Is(err, tt.wantErr) || !errors.Is(err, ErrUsage) {
				t.Fatalf("expected %v wrapping ErrUsage, got %v", tt.wantErr, err)
			}
			if len(runner.argv()) != 0 {
				t.Error("pandoc ran after a usage error")
			}
			if got := mustRead(t, p.chapter); got != fixtureChapter {
				t.Error("manuscript not restored after a usage error")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Export: modes
// ---------------------------------------------------------------------------

func TestExport_DryRun(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	runner := &mockRunner{}
	exp, out := newTestExporter(p, runner, WithLookPath(func(string) (string, error) {
		return "", exec.ErrNotFound
	}))

	report, err := exp.Export(context.Background(), ExportOptions{DryRun: true, Formats: []string{"epub", "docx"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.argv()) != 0 {
		t.Error("dry run executed pandoc")
	}
	if len(report.Commands) != 2 {
		t.Errorf("got %d commands, want 2", len(report.Commands))
	}
	if _, err := os.Stat(p.paths.Output); !errors.Is(err, os.ErrNotExist) {
		t.Error("dry run created the output directory")
	}
	if _, err := os.Stat(p.paths.Lock); !errors.Is(err, os.ErrNotExist) {
		t.Error("dry run created the lock file")
	}
	if mustRead(t, p.chapter) != fixtureChapter || mustRead(t, p.paths.TOC) != fixtureTOC {
		t.Error("dry run modified the manuscript")
	}
	if !strings.Contains(out.String(), "[dry-run] pandoc --verbose") {
		t.Errorf("commands not printed:\n%s", out)
	}
}

func TestExport_PathModes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		mode     PathMode
		wantSkip string
	}{
		{name: "skip images", mode: PathModeSkipImages, wantSkip: "⏭️  Skipping Step 1 (skip-images)."},
		{name: "keep relative", mode: PathModeKeepRelative, wantSkip: "⏭️  Skipping Step 1 (keep relative paths)."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newProject(t)
			runner := &mockRunner{snapshotPath: p.chapter}
			exp, out := newTestExporter(p, runner)

			report, err := exp.Export(context.Background(), ExportOptions{
				Formats:    []string{"docx"},
				PathMode:   tt.mode,
				NoValidate: true,
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(report.Rewrites) != 0 {
				t.Errorf("rewrites ran: %+v", report.Rewrites)
			}
			if runner.snapshots[0] != fixtureChapter {
				t.Errorf("pandoc saw rewritten chapter:\n%s", runner.snapshots[0])
			}
			if !strings.Contains(out.String(), tt.wantSkip) {
				t.Errorf("missing %q in:\n%s", tt.wantSkip, out)
			}
		})
	}
}

func TestExport_SkipsUnknownFormatsAndEmptyManuscript(t *testing.T) {
	t.Parallel()

	t.Run("unknown format", func(t *testing.T) {
		t.Parallel()

		p := newProject(t)
		runner := &mockRunner{}
		exp, out := newTestExporter(p, runner)

		report, err := exp.Export(context.Background(), ExportOptions{Formats: []string{"odt", "docx"}, NoValidate: true})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(report.Skipped, []string{"odt"}) {
			t.Errorf("Skipped = %v", report.Skipped)
		}
		if len(runner.argv()) != 1 {
			t.Errorf("got %d calls, want 1", len(runner.argv()))
		}
		if !strings.Contains(out.String(), "Unknown format 'odt'") {
			t.Errorf("missing warning:\n%s", out)
		}
	})

	t.Run("no markdown files", func(t *testing.T) {
		t.Parallel()

		p := newProject(t)
		runner := &mockRunner{}
		exp, _ := newTestExporter(p, runner)

		report, err := exp.Export(context.Background(), ExportOptions{
			SectionOrder: []string{"nowhere"},
			Formats:      []string{"epub", "pdf"},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(runner.argv()) != 0 || len(report.Artifacts) != 0 {
			t.Error("formats built without input files")
		}
		if !slices.Equal(report.Skipped, []string{"epub", "pdf"}) {
			t.Errorf("Skipped = %v", report.Skipped)
		}
		if got := report.Validation.Wait(); len(got) != 0 {
			t.Errorf("validation results = %v", got)
		}
	})
}

func TestExport_BookTypeAndSectionOrder(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	cfg := config.DefaultConfig()
	cfg.Sections.ByBookType = map[string][]string{"paperback": {"chapters/02-two.md"}}

	runner := &mockRunner{}
	exp, _ := newTestExporter(p, runner, WithConfig(cfg))

	report, err := exp.Export(context.Background(), ExportOptions{
		BookType:   Paperback,
		Preset:     "print-version",
		Formats:    []string{"epub"},
		NoValidate: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Basename != "print-version-paperback" {
		t.Errorf("Basename = %q", report.Basename)
	}

	call := runner.argv()[0]
	if !slices.Contains(call, filepath.Join(p.paths.Manuscript, "chapters", "02-two.md")) {
		t.Errorf("section order not applied: %v", call)
	}
	if slices.Contains(call, p.chapter) {
		t.Errorf("chapter outside the paperback order was included")
	}
}

func TestExport_LanguageMismatchWarns(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	runner := &mockRunner{}
	exp, out := newTestExporter(p, runner)

	report, err := exp.Export(context.Background(), ExportOptions{Lang: "pt_br", Formats: []string{"epub"}, NoValidate: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Lang != "pt-BR" {
		t.Errorf("Lang = %q, want pt-BR", report.Lang)
	}
	if !strings.Contains(out.String(), "Language mismatch") {
		t.Errorf("missing mismatch warning:\n%s", out)
	}
	if !slices.Contains(runner.argv()[0], "lang=pt-BR") {
		t.Errorf("argv = %v", runner.argv()[0])
	}
}

func TestExport_AutoMetadataDate(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	mustWrite(t, p.paths.Metadata, "title: Test Book\ndate: auto:long\nlang: en\n")
	runner := &mockRunner{}
	exp, out := newTestExporter(p, runner)

	if _, err := exp.Export(context.Background(), ExportOptions{Formats: []string{"epub"}, NoValidate: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	argv := runner.argv()[0]
	if i := slices.Index(argv, "date=January 2, 2030"); i < 1 || argv[i-1] != "--metadata" {
		t.Errorf("argv lacks the resolved date: %q", argv)
	}
	if !strings.Contains(out.String(), "Metadata date resolved to 'January 2, 2030'") {
		t.Errorf("missing date status line:\n%s", out)
	}
	if got := mustRead(t, p.paths.Metadata); !strings.Contains(got, "date: auto:long") {
		t.Errorf("metadata file rewritten:\n%s", got)
	}
}

func TestExport_FixedAndBrokenMetadataDate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		date     string
		wantWarn bool
	}{
		{name: "fixed date left to the metadata file", date: "\"2020\""},
		{name: "bad layout warns", date: "\"auto:[YYYY\"", wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := newProject(t)
			mustWrite(t, p.paths.Metadata, "title: Test Book\ndate: "+tt.date+"\n")
			runner := &mockRunner{}
			exp, out := newTestExporter(p, runner)

			if _, err := exp.Export(context.Background(), ExportOptions{Formats: []string{"docx"}, NoValidate: true}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			for _, arg := range runner.argv()[0] {
				if strings.HasPrefix(arg, "date=") {
					t.Errorf("unexpected date override %q", arg)
				}
			}
			if got := strings.Contains(out.String(), "Could not resolve metadata date"); got != tt.wantWarn {
				t.Errorf("warning printed = %v, want %v:\n%s", got, tt.wantWarn, out)
			}
		})
	}
}

// metadataCapture records the metadata file content Pandoc is given.
type metadataCapture struct {
	*mockRunner
	seen []string
}

func (m *metadataCapture) Run(ctx context.Context, name string, args ...string) (string, string, error) {
	for _, arg := range args {
		if path, ok := strings.CutPrefix(arg, "--metadata-file="); ok {
			data, _ := os.ReadFile(path)
			m.seen = append(m.seen, string(data))
		}
	}
	return m.mockRunner.Run(ctx, name, args...)
}

func TestExport_PlaceholderDateFromConfig(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	if err := os.Remove(p.paths.Metadata); err != nil {
		t.Fatal(err)
	}
	capture := &metadataCapture{mockRunner: &mockRunner{}}
	cfg := config.DefaultConfig()
	cfg.Metadata.PlaceholderDate = "auto:MMMM YYYY"
	exp, _ := newTestExporter(p, capture.mockRunner, WithRunner(capture), WithConfig(cfg))

	if _, err := exp.Export(context.Background(), ExportOptions{Formats: []string{"epub"}, NoValidate: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(capture.seen) != 1 {
		t.Fatalf("got %d Pandoc runs, want 1", len(capture.seen))
	}
	if !strings.Contains(capture.seen[0], "date: January 2030") {
		t.Errorf("placeholder metadata:\n%s", capture.seen[0])
	}
	for _, arg := range capture.argv()[0] {
		if strings.HasPrefix(arg, "date=") {
			t.Errorf("placeholder date passed twice: %q", arg)
		}
	}
}

func TestExport_WarnsUnrestorableTargets(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	local := filepath.Join(filepath.Dir(p.chapter), "local.png")
	mustWrite(t, local, "png")
	mustWrite(t, p.chapter, "# One\n\n![Local](local.png)\n\n![Figure](../../assets/img.png)\n")
	runner := &mockRunner{}
	exp, out := newTestExporter(p, runner)

	if _, err := exp.Export(context.Background(), ExportOptions{Formats: []string{"markdown"}, NoValidate: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	warning := "Image target 'local.png' in " + filepath.Join("manuscript", "chapters", "01-one.md") + " will not be restored as written"
	if !strings.Contains(out.String(), warning) {
		t.Errorf("missing warning %q:\n%s", warning, out)
	}
	if strings.Contains(out.String(), "'../../assets/img.png'") {
		t.Errorf("restorable target flagged:\n%s", out)
	}
	want := "# One\n\n![Local](" + local + ")\n\n![Figure](../../assets/img.png)\n"
	if got := mustRead(t, p.chapter); got != want {
		t.Errorf("chapter after export =\n%s\nwant\n%s", got, want)
	}
}

func TestExport_MissingCoverDropped(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	runner := &mockRunner{}
	exp, out := newTestExporter(p, runner)

	_, err := exp.Export(context.Background(), ExportOptions{CoverPath: "missing.jpg", Formats: []string{"epub"}, NoValidate: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, arg := range runner.argv()[0] {
		if strings.HasPrefix(arg, "--epub-cover-image=") {
			t.Errorf("missing cover passed to pandoc: %s", arg)
		}
	}
	if !strings.Contains(out.String(), "Cover image not found") {
		t.Errorf("missing warning:\n%s", out)
	}
}

func TestExport_OutputRotation(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	mustWrite(t, filepath.Join(p.paths.Output, "old.epub"), "old")

	exp, _ := newTestExporter(p, &mockRunner{})
	report, err := exp.Export(context.Background(), ExportOptions{Formats: []string{"markdown"}, NoValidate: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !report.Rotation.OutputMoved {
		t.Error("previous output not moved")
	}
	if _, err := os.Stat(filepath.Join(p.paths.Backup, "old.epub")); err != nil {
		t.Errorf("backup missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(p.paths.Output, "testbook-ebook.md")); err != nil {
		t.Errorf("new artifact missing: %v", err)
	}
}

// ---------------------------------------------------------------------------
// ValidationRun
// ---------------------------------------------------------------------------

func TestValidationRun_NilSafe(t *testing.T) {
	t.Parallel()

	var run *ValidationRun
	if got := run.Wait(); got != nil {
		t.Errorf("nil Wait() = %v", got)
	}
}

func TestValidationRun_WaitTwice(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	md := filepath.Join(dir, "book.md")
	mustWrite(t, md, "# Book\n")

	var out bytes.Buffer
	exp := NewExporter(Paths{}, WithStatus(logging.NewStatus(&out, nil, false)),
		WithValidator(validate.New(&mockRunner{}, validate.WithLookPath(pandocOnly))))
	run := exp.scheduleValidation(context.Background(), []Artifact{{Format: "markdown", Path: md}})

	first := run.Wait()
	second := run.Wait()
	if len(first) != 1 || !first[0].OK() {
		t.Fatalf("results = %+v", first)
	}
	if len(second) != 1 {
		t.Errorf("second Wait() = %+v", second)
	}
	if got := strings.Count(out.String(), "MARKDOWN validation passed"); got != 1 {
		t.Errorf("results printed %d times, want 1", got)
	}
}

// ---------------------------------------------------------------------------
// ConvertImagePaths
// ---------------------------------------------------------------------------

func TestConvertImagePaths(t *testing.T) {
	t.Parallel()

	p := newProject(t)
	exp, _ := newTestExporter(p, &mockRunner{})
	abs := filepath.Join(p.paths.Assets, "img.png")

	stats, err := exp.ConvertImagePaths(pipeline.ToAbsolute)
	if err != nil {
		t.Fatalf("to absolute: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("got %d stats, want one per rewriter", len(stats))
	}
	if got := mustRead(t, p.chapter); !strings.Contains(got, "![Figure]("+abs+")") {
		t.Errorf("chapter not absolutized:\n%s", got)
	}

	if _, err := exp.ConvertImagePaths(pipeline.ToRelative); err != nil {
		t.Fatalf("to relative: %v", err)
	}
	if got := mustRead(t, p.chapter); got != fixtureChapter {
		t.Errorf("round trip changed the chapter:\n%s", got)
	}

	t.Run("lock held", func(t *testing.T) {
		release, err := AcquireLock(p.paths.Lock)
		if err != nil {
			t.Fatalf("AcquireLock: %v", err)
		}
		defer release()

		if _, err := exp.ConvertImagePaths(pipeline.ToAbsolute); !errors.Is(err, ErrProjectLocked) {
			t.Errorf("expected ErrProjectLocked, got %v", err)
		}
	})
}
