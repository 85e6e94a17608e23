package bookexport

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-bookexport/internal/config"
	"github.com/alnah/go-bookexport/internal/fileutil"
	"github.com/alnah/go-bookexport/internal/logging"
	"github.com/alnah/go-bookexport/internal/pipeline"
	"github.com/alnah/go-bookexport/internal/validate"
)

// Exporter runs the export pipeline on one book project.
// Create with NewExporter and call Export once per build.
type Exporter struct {
	paths     Paths
	runner    CommandRunner
	status    *logging.Status
	runLog    *logging.RunLog
	validator *validate.Validator
	lookPath  func(string) (string, error)
	now       func() time.Time

	timeout        time.Duration // per Pandoc run, zero = none
	binary         string
	extraArgs      []string
	pdf            PDFSettings
	sections       config.SectionsConfig
	formats        []string
	markdownExt    string
	coverPath      string
	forceEPUB2     bool
	minCoverHeight int
	tocMode        string
	tocExt         string
	preview        config.PreviewConfig
	placeholder    string // date value of generated metadata
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithRunner sets the runner used for Pandoc and the validators.
func WithRunner(r CommandRunner) Option {
	return func(e *Exporter) { e.runner = r }
}

// WithStatus sets the status line printer.
func WithStatus(s *logging.Status) Option {
	return func(e *Exporter) { e.status = s }
}

// WithRunLog sets the run log receiving command sections and tool output.
func WithRunLog(l *logging.RunLog) Option {
	return func(e *Exporter) { e.runLog = l }
}

// WithTimeout bounds each Pandoc run. Zero disables the timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Exporter) { e.timeout = d }
}

// WithLookPath replaces exec.LookPath for the Pandoc preflight check.
func WithLookPath(fn func(string) (string, error)) Option {
	return func(e *Exporter) { e.lookPath = fn }
}

// WithClock sets the time source used for placeholder metadata and auto
// dates.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// WithValidator sets the artifact validator.
func WithValidator(v *validate.Validator) Option {
	return func(e *Exporter) { e.validator = v }
}

// WithConfig applies the Pandoc, PDF, EPUB, TOC, section and preview
// settings of cfg. Paths are resolved separately with NewPaths.
func WithConfig(cfg *config.Config) Option {
	return func(e *Exporter) {
		if cfg == nil {
			return
		}
		e.timeout = cfg.Export.TimeoutDuration()
		e.binary = cfg.Pandoc.Binary
		e.extraArgs = append([]string(nil), cfg.Pandoc.ExtraArgs...)
		e.pdf = PDFSettings{
			Engine:   cfg.PDF.Engine,
			MainFont: cfg.PDF.MainFont,
			MonoFont: cfg.PDF.MonoFont,
		}
		e.sections = cfg.Sections
		e.formats = append([]string(nil), cfg.Export.Formats...)
		e.markdownExt = cfg.Export.MarkdownExt
		e.coverPath = cfg.EPUB.Cover
		e.forceEPUB2 = cfg.EPUB.ForceEPUB2
		e.minCoverHeight = cfg.EPUB.MinCoverHeight
		e.tocMode = cfg.TOC.Mode
		e.tocExt = cfg.TOC.Ext
		e.preview = cfg.Preview
		e.placeholder = cfg.Metadata.PlaceholderDate
	}
}

// NewExporter creates an Exporter for the project laid out by paths.
func NewExporter(paths Paths, opts ...Option) *Exporter {
	def := config.DefaultConfig()
	e := &Exporter{
		paths:          paths,
		lookPath:       exec.LookPath,
		now:            time.Now,
		binary:         def.Pandoc.Binary,
		pdf:            DefaultPDFSettings(),
		formats:        FormatNames(),
		markdownExt:    DefaultMarkdownExt,
		minCoverHeight: validate.DefaultMinCoverHeight,
		tocMode:        def.TOC.Mode,
		tocExt:         def.TOC.Ext,
		preview:        def.Preview,
		placeholder:    def.Metadata.PlaceholderDate,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.runLog == nil {
		e.runLog = logging.Discard()
	}
	if e.status == nil {
		e.status = logging.NopStatus()
	}
	if e.runner == nil {
		e.runner = &ExecRunner{Log: e.runLog}
	}
	if e.validator == nil {
		e.validator = validate.New(e.runner,
			validate.WithLookPath(e.lookPath),
			validate.WithMinCoverHeight(e.minCoverHeight),
		)
	}
	return e
}

// Paths returns the project layout.
func (e *Exporter) Paths() Paths {
	return e.paths
}

// Artifact is one file produced by Pandoc.
type Artifact struct {
	Format string
	Path   string
}

// Report describes a finished (or aborted) export.
type Report struct {
	Basename   string
	Lang       string
	BookType   BookType
	Artifacts  []Artifact
	Skipped    []string // formats not built: unknown names or no input
	Rewrites   []pipeline.RewriteStats
	TOCChanged bool
	Rotation   OutputRotation
	DryRun     bool
	Commands   [][]string
	Duration   time.Duration
	Validation *ValidationRun // nil when validation was not scheduled
}

// Export runs the pipeline: lock, metadata and language, TOC, absolute
// image paths, output rotation, one Pandoc run per format, relative image
// paths, background validation. A Pandoc failure stops the run; the
// manuscript is restored and the temporary metadata removed regardless.
func (e *Exporter) Export(ctx context.Context, opts ExportOptions) (report *Report, err error) {
	start := time.Now()
	report = &Report{DryRun: opts.DryRun}
	defer func() { report.Duration = time.Since(start) }()

	bookType, err := ParseBookType(string(opts.BookType))
	if err != nil {
		return report, err
	}
	report.BookType = bookType

	formats, err := e.resolveFormats(opts.Formats, report)
	if err != nil {
		return report, err
	}

	e.runLog.Section(fmt.Sprintf("export %s (%s)", e.paths.Root, bookType))

	if !opts.DryRun {
		if _, err := e.lookPath(e.binary); err != nil {
			return report, fmt.Errorf("%w: %s", ErrPandocNotFound, e.binary)
		}
		release, err := AcquireLock(e.paths.Lock)
		if err != nil {
			return report, err
		}
		defer release()
	}

	metaFile, err := e.metadataFile(opts.DryRun)
	if err != nil {
		return report, err
	}
	defer func() {
		if !metaFile.Temp {
			return
		}
		if rmErr := metaFile.Remove(); rmErr != nil {
			e.status.Printf(logging.KindWarn, "Could not delete temporary metadata file %s: %v", metaFile.Path, rmErr)
			return
		}
		e.status.Printf(logging.KindDelete, "Deleted temporary metadata file")
	}()

	report.Lang = e.resolveLanguage(opts.Lang)
	date := e.resolveDate(metaFile)

	if err := e.normalizeTOC(opts, report); err != nil {
		return report, err
	}

	// Step 1: absolute image paths, restored by the deferred final step.
	restored := true
	restore := func() error {
		if restored {
			return nil
		}
		restored = true
		e.status.Printf(logging.KindInfo, "Final step: restoring relative image paths")
		return e.rewriteImages(pipeline.ToRelative, report)
	}
	defer func() {
		if rerr := restore(); rerr != nil {
			e.status.Printf(logging.KindError, "Restoring relative image paths failed: %v", rerr)
			if err == nil {
				err = rerr
			}
		}
	}()

	switch {
	case opts.PathMode != PathModeRewrite:
		e.status.Printf(logging.KindSkip, "Skipping Step 1 (%s).", opts.PathMode)
	case opts.DryRun:
		e.status.Printf(logging.KindInfo, "[dry-run] Would convert image paths to absolute in %s", e.paths.Manuscript)
	default:
		e.status.Printf(logging.KindInfo, "Step 1: converting image paths to absolute")
		restored = false
		if err := e.rewriteImages(pipeline.ToAbsolute, report); err != nil {
			if errors.Is(err, pipeline.ErrInvalidEncoding) {
				return report, err
			}
			e.status.Printf(logging.KindWarn, "Image path conversion failed, continuing: %v", err)
		}
	}

	if !opts.DryRun {
		rot, err := PrepareOutputFolder(e.paths.Output, e.paths.Backup)
		if err != nil {
			return report, err
		}
		report.Rotation = rot
		if rot.BackupDeleted {
			e.status.Printf(logging.KindDelete, "Deleted old backup %s", e.paths.Backup)
		}
		if rot.OutputMoved {
			e.status.Printf(logging.KindInfo, "Moved previous output to %s", e.paths.Backup)
		}
	}

	basename, err := e.outputBasename(opts, bookType)
	if err != nil {
		return report, err
	}
	report.Basename = basename
	e.status.Printf(logging.KindBook, "Output file base name set to: %s", basename)
	e.status.Printf(logging.KindLang, "Using language: '%s'", report.Lang)

	order := opts.SectionOrder
	if len(order) == 0 {
		order = e.sections.Order(string(bookType))
	}
	if len(order) == 0 {
		order = DefaultSectionOrder()
	}
	files, err := CollectMarkdownFiles(e.paths.Manuscript, order)
	if err != nil {
		return report, err
	}

	cover := e.resolveCover(opts, formats)

	for _, f := range formats {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if len(files) == 0 {
			e.status.Printf(logging.KindWarn, "%v for %s in %s; skipping.", ErrNoMarkdownFiles, f.Name, e.paths.Manuscript)
			report.Skipped = append(report.Skipped, f.Name)
			continue
		}

		job := FormatJob{
			Format:       f.Name,
			OutputPath:   filepath.Join(e.paths.Output, basename+"."+ResolveExtension(f.Name, e.markdownExtFor(opts))),
			Files:        files,
			AssetsDir:    e.paths.Assets,
			MetadataFile: metaFile.Path,
			Date:         date,
			Lang:         report.Lang,
			ForceEPUB2:   opts.ForceEPUB2 || e.forceEPUB2,
			CoverPath:    cover,
			PDF:          e.pdf,
			ExtraArgs:    e.extraArgs,
			Binary:       e.binary,
		}
		argv := BuildPandocArgs(job)
		report.Commands = append(report.Commands, argv)

		if opts.DryRun {
			e.status.Printf(logging.KindInfo, "[dry-run] %s", strings.Join(argv, " "))
			continue
		}

		e.status.Printf(logging.KindInfo, "Generating %s...", strings.ToUpper(f.Name))
		if err := e.runPandoc(ctx, f.Name, argv); err != nil {
			e.status.Printf(logging.KindError, "%s generation failed", strings.ToUpper(f.Name))
			return report, err
		}
		e.status.Printf(logging.KindSuccess, "Successfully generated: %s", job.OutputPath)
		report.Artifacts = append(report.Artifacts, Artifact{Format: f.Name, Path: job.OutputPath})
	}

	if err := restore(); err != nil {
		return report, err
	}

	if opts.DryRun {
		e.status.Printf(logging.KindDone, "Dry run complete: %d commands", len(report.Commands))
		return report, nil
	}

	if !opts.NoValidate {
		report.Validation = e.scheduleValidation(ctx, report.Artifacts)
	}

	e.status.Printf(logging.KindDone, "Export complete: %d of %d formats built", len(report.Artifacts), len(formats))
	e.status.Printf(logging.KindOutput, "Output folder: %s", e.paths.Output)
	if path := e.runLog.Path(); path != "" {
		e.status.Printf(logging.KindLog, "Log file: %s", path)
	}
	return report, nil
}

// AcquireLock takes the project run lock without blocking. The lock file
// is left in place; release only unlocks it.
func AcquireLock(lockPath string) (release func(), err error) {
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring lock %s: %w", lockPath, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectLocked, lockPath)
	}
	return func() { _ = fl.Unlock() }, nil
}

// ConvertImagePaths runs both image rewriters over the manuscript in one
// direction, holding the project lock.
func (e *Exporter) ConvertImagePaths(direction pipeline.Direction) ([]pipeline.RewriteStats, error) {
	release, err := AcquireLock(e.paths.Lock)
	if err != nil {
		return nil, err
	}
	defer release()

	e.runLog.Section(fmt.Sprintf("paths %s %s", direction, e.paths.Root))
	report := &Report{}
	err = e.rewriteImages(direction, report)
	return report.Rewrites, err
}

// resolveFormats keeps the known formats in request order and reports
// unknown ones as skipped. nil requests the configured formats.
func (e *Exporter) resolveFormats(requested []string, report *Report) ([]Format, error) {
	if requested == nil {
		requested = e.formats
	}
	var formats []Format
	seen := make(map[string]bool)
	for _, name := range requested {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		f, ok := LookupFormat(name)
		if !ok {
			e.status.Printf(logging.KindWarn, "Unknown format '%s'; skipping (valid: %s).", name, strings.Join(FormatNames(), ", "))
			report.Skipped = append(report.Skipped, name)
			continue
		}
		formats = append(formats, f)
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidFormatList, strings.Join(requested, ","))
	}
	return formats, nil
}

// metadataFile returns the metadata file to pass to Pandoc, generating a
// placeholder when the project has none. Dry runs never write it.
func (e *Exporter) metadataFile(dryRun bool) (MetadataFile, error) {
	if fileutil.FileExists(e.paths.Metadata) {
		return MetadataFile{Path: e.paths.Metadata}, nil
	}
	if dryRun {
		e.status.Printf(logging.KindWarn, "No metadata file at %s; a placeholder would be generated.", e.paths.Metadata)
		return MetadataFile{Path: e.paths.Metadata}, nil
	}
	mf, err := EnsureMetadataFile(e.paths.Metadata, e.placeholder, e.now())
	if err != nil {
		return MetadataFile{}, err
	}
	e.status.Printf(logging.KindWarn, "No metadata file at %s; using placeholder %s", e.paths.Metadata, mf.Path)
	return mf, nil
}

// resolveDate resolves an auto date of the project metadata file. Errors
// leave the date to Pandoc as written.
func (e *Exporter) resolveDate(metaFile MetadataFile) string {
	if metaFile.Temp {
		return ""
	}
	date, err := MetadataDate(metaFile.Path, e.now())
	if err != nil {
		e.status.Printf(logging.KindWarn, "Could not resolve metadata date: %v", err)
		return ""
	}
	if date != "" {
		e.status.Printf(logging.KindInfo, "Metadata date resolved to '%s'", date)
	}
	return date
}

func (e *Exporter) resolveLanguage(explicit string) string {
	metaLang, err := MetadataLanguage(e.paths.Metadata)
	if err != nil {
		e.status.Printf(logging.KindWarn, "Could not read language from metadata: %v", err)
	}
	lang, mismatch := ResolveLanguage(explicit, metaLang)
	if mismatch {
		e.status.Printf(logging.KindWarn, "Language mismatch: --lang '%s' overrides metadata language '%s'.", explicit, metaLang)
	}
	canonical, err := CanonicalLanguage(lang)
	if err != nil {
		e.status.Printf(logging.KindWarn, "%v; passing it to Pandoc unchanged.", err)
		return lang
	}
	return canonical
}

// normalizeTOC is best effort: only invalid encoding stops the export.
func (e *Exporter) normalizeTOC(opts ExportOptions, report *Report) error {
	mode := opts.TOCMode
	if mode == "" {
		mode = e.tocMode
	}
	ext := opts.TOCExt
	if ext == "" {
		ext = e.tocExt
	}

	if opts.DryRun {
		e.status.Printf(logging.KindInfo, "[dry-run] Would normalize TOC %s (%s)", e.paths.TOC, mode)
		return nil
	}

	changed, err := pipeline.NormalizeTOCFile(e.paths.TOC, mode, ext)
	switch {
	case errors.Is(err, pipeline.ErrTOCNotFound):
		e.status.Printf(logging.KindInfo, "No TOC file at %s; skipping TOC normalization.", e.paths.TOC)
	case errors.Is(err, pipeline.ErrInvalidEncoding):
		return err
	case err != nil:
		e.status.Printf(logging.KindWarn, "TOC normalization failed, continuing: %v", err)
	case changed:
		report.TOCChanged = true
		e.status.Printf(logging.KindSuccess, "Normalized TOC links (%s)", mode)
	default:
		e.status.Printf(logging.KindInfo, "TOC links already normalized")
	}
	return nil
}

// rewriteImages runs the Markdown image rewriter then the <img> tag
// rewriter over the manuscript.
func (e *Exporter) rewriteImages(direction pipeline.Direction, report *Report) error {
	rewriters := []pipeline.TextRewriter{
		pipeline.NewPathRewriter(direction, e.paths.Assets),
		pipeline.NewImgTagRewriter(direction, e.paths.Assets),
	}
	for _, rw := range rewriters {
		stats, err := pipeline.RewriteTree(e.paths.RewriteDirs(), rw)
		report.Rewrites = append(report.Rewrites, stats)
		for _, dir := range stats.SkippedDirs {
			e.status.Printf(logging.KindWarn, "Directory not found, skipping: %s", dir)
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", rw.Name(), direction, err)
		}
		e.status.Printf(logging.KindSuccess, "%s %s: %d converted in %d of %d files",
			rw.Name(), direction, stats.ItemsConverted, stats.FilesChanged, stats.FilesScanned)
		for _, u := range stats.Unrestorable {
			e.status.Printf(logging.KindWarn, "Image target '%s' in %s will not be restored as written", u.Target, e.relToRoot(u.File))
		}
	}
	return nil
}

func (e *Exporter) relToRoot(path string) string {
	if rel, err := filepath.Rel(e.paths.Root, path); err == nil {
		return rel
	}
	return path
}

func (e *Exporter) outputBasename(opts ExportOptions, bookType BookType) (string, error) {
	for _, name := range []string{opts.OutputName, opts.Preset} {
		if name == "" {
			continue
		}
		if err := ValidateBasename(name); err != nil {
			return "", err
		}
	}

	project := DefaultProjectName
	if opts.OutputName == "" && opts.Preset == "" {
		name, err := ProjectName(e.paths.Pyproject)
		if err != nil {
			e.status.Printf(logging.KindWarn, "%v; using '%s'.", err, name)
		}
		project = name
	}
	return OutputBasename(project, opts.OutputName, opts.Preset, bookType), nil
}

func (e *Exporter) markdownExtFor(opts ExportOptions) string {
	if opts.MarkdownExt != "" {
		return strings.TrimPrefix(opts.MarkdownExt, ".")
	}
	return e.markdownExt
}

// resolveCover returns the absolute EPUB cover path, or "" when no EPUB is
// built, none is configured, or the file is missing.
func (e *Exporter) resolveCover(opts ExportOptions, formats []Format) string {
	cover := opts.CoverPath
	if cover == "" {
		cover = e.coverPath
	}
	if cover == "" || !hasFormat(formats, "epub") {
		return ""
	}
	if !filepath.IsAbs(cover) {
		cover = filepath.Join(e.paths.Root, cover)
	}
	if !fileutil.FileExists(cover) {
		e.status.Printf(logging.KindWarn, "Cover image not found: %s; building EPUB without cover.", cover)
		return ""
	}

	size, err := validate.CoverSize(cover)
	if err != nil {
		e.status.Printf(logging.KindWarn, "Could not read cover image %s: %v", cover, err)
		return cover
	}
	if msg := validate.CoverWarning(size, e.minCoverHeight); msg != "" {
		e.status.Printf(logging.KindWarn, "%s", msg)
	}
	return cover
}

func hasFormat(formats []Format, name string) bool {
	for _, f := range formats {
		if f.Name == name {
			return true
		}
	}
	return false
}

func (e *Exporter) runPandoc(ctx context.Context, format string, argv []string) error {
	e.runLog.Section(strings.Join(argv, " "))

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	_, stderr, err := e.runner.Run(runCtx, argv[0], argv[1:]...)
	if err != nil {
		return &PandocError{Format: format, Args: argv, Stderr: stderr, Err: err}
	}
	return nil
}

// ValidationRun is the handle on background artifact validation.
type ValidationRun struct {
	group   errgroup.Group
	results []validate.Result
	status  *logging.Status
	print   sync.Once
}

func (e *Exporter) scheduleValidation(ctx context.Context, artifacts []Artifact) *ValidationRun {
	run := &ValidationRun{
		results: make([]validate.Result, len(artifacts)),
		status:  e.status,
	}
	for i, a := range artifacts {
		e.status.Printf(logging.KindValidate, "%s generated. Validation running in background...", strings.ToUpper(a.Format))
		run.group.Go(func() error {
			run.results[i] = e.validator.Validate(ctx, a.Format, a.Path)
			return nil
		})
	}
	return run
}

// Wait blocks until every validation finished and returns the results in
// artifact order. The first call prints them. Safe on a nil receiver.
func (v *ValidationRun) Wait() []validate.Result {
	if v == nil {
		return nil
	}
	_ = v.group.Wait()
	v.print.Do(func() {
		for _, r := range v.results {
			PrintValidationResult(v.status, r)
		}
	})
	return v.results
}

// PrintValidationResult prints one status line for r, followed by its issues
// and warnings.
func PrintValidationResult(s *logging.Status, r validate.Result) {
	name := strings.ToUpper(r.Format)
	if r.OK() {
		s.Printf(logging.KindSuccess, "%s validation passed: %s (%s)", name, filepath.Base(r.Path), r.Summary)
	} else {
		s.Printf(logging.KindWarn, "%s validation failed (%s): %s", name, r.Code, r.Summary)
		for _, issue := range r.Issues {
			s.Printf(logging.KindWarn, "  %s", issue)
		}
	}
	for _, w := range r.Warnings {
		s.Printf(logging.KindWarn, "%s: %s", name, w)
	}
}
