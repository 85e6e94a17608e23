package validate

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alnah/go-bookexport/internal/fileutil"
)

const epubMimetype = "application/epub+zip"

var (
	ErrMimetypeNotFound  = errors.New("mimetype file not found")
	ErrMimetypeNotFirst  = errors.New("mimetype is not the first archive entry")
	ErrInvalidMimetype   = errors.New("invalid mimetype: must be 'application/epub+zip'")
	ErrContainerNotFound = errors.New("META-INF/container.xml not found")
	ErrOPFPathNotFound   = errors.New("OPF path not found in container.xml")
)

// EPUB validates an EPUB file: archive structure, image references, cover
// size, then epubcheck when available.
func (v *Validator) EPUB(ctx context.Context, epubPath string) Result {
	r := Result{Format: "epub", Path: epubPath}
	if !checkExists(&r) {
		return r
	}

	v.inspectEPUB(&r)

	if ctx.Err() != nil {
		r.fail(CodeIssues, "validation cancelled: %v", ctx.Err())
		return r
	}

	out := v.runTool(ctx, &r, v.epubcheckTimeout, "epubcheck", epubPath)
	if out.failed {
		r.fail(CodeIssues, "epubcheck found issues")
		r.Issues = append(r.Issues, outputLines(out.stdout, out.stderr)...)
	}

	switch {
	case r.OK() && out.ran:
		r.Summary = "epubcheck: valid"
	case r.OK():
		r.Summary = "structure valid"
	default:
		r.Summary = fmt.Sprintf("%d issue(s)", len(r.Issues))
	}
	return r
}

// inspectEPUB runs the in-process checks and records problems on r.
func (v *Validator) inspectEPUB(r *Result) {
	zr, err := zip.OpenReader(r.Path)
	if err != nil {
		r.fail(CodeIssues, "not a zip archive: %v", err)
		return
	}
	defer func() { _ = zr.Close() }()

	arc := newArchive(zr.File)

	if err := arc.checkMimetype(zr.File); err != nil {
		r.fail(CodeIssues, "%v", err)
	}

	opfPath, err := arc.opfPath()
	if err != nil {
		r.fail(CodeIssues, "%v", err)
		return
	}

	pkg, err := arc.readPackage(opfPath)
	if err != nil {
		r.fail(CodeIssues, "%v", err)
		return
	}

	for _, issue := range arc.checkImages(pkg, opfPath) {
		r.fail(CodeIssues, "%s", issue)
	}

	if v.minCoverHeight > 0 {
		if href := pkg.coverHref(); href != "" {
			v.checkEPUBCover(r, arc, resolveHref(opfPath, href))
		} else {
			r.warn("no cover image declared")
		}
	}
}

func (v *Validator) checkEPUBCover(r *Result, arc *archive, name string) {
	data, err := arc.read(name)
	if err != nil {
		r.fail(CodeIssues, "cover image %s: %v", name, err)
		return
	}
	size, err := DecodeCoverSize(bytes.NewReader(data))
	if err != nil {
		r.fail(CodeIssues, "cover image %s: %v", name, err)
		return
	}
	if w := CoverWarning(size, v.minCoverHeight); w != "" {
		r.warn("%s", w)
	}
}

// archive indexes zip entries by normalized name.
type archive struct {
	files map[string]*zip.File
}

func newArchive(files []*zip.File) *archive {
	a := &archive{files: make(map[string]*zip.File, len(files))}
	for _, f := range files {
		a.files[strings.TrimPrefix(f.Name, "./")] = f
	}
	return a
}

func (a *archive) read(name string) ([]byte, error) {
	f, ok := a.files[name]
	if !ok {
		return nil, fmt.Errorf("file not found: %s", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

func (a *archive) checkMimetype(ordered []*zip.File) error {
	if _, ok := a.files["mimetype"]; !ok {
		return ErrMimetypeNotFound
	}
	if len(ordered) == 0 || ordered[0].Name != "mimetype" {
		return ErrMimetypeNotFirst
	}
	content, err := a.read("mimetype")
	if err != nil {
		return err
	}
	if string(content) != epubMimetype {
		return ErrInvalidMimetype
	}
	return nil
}

type container struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

func (a *archive) opfPath() (string, error) {
	content, err := a.read("META-INF/container.xml")
	if err != nil {
		return "", ErrContainerNotFound
	}
	var c container
	if err := xml.Unmarshal(content, &c); err != nil {
		return "", fmt.Errorf("parse container.xml: %w", err)
	}
	for _, rf := range c.Rootfiles.Rootfile {
		if rf.FullPath != "" && (rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "") {
			return strings.TrimPrefix(rf.FullPath, "./"), nil
		}
	}
	return "", ErrOPFPathNotFound
}

type manifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type packageDoc struct {
	Metadata struct {
		Meta []struct {
			Name    string `xml:"name,attr"`
			Content string `xml:"content,attr"`
		} `xml:"meta"`
	} `xml:"metadata"`
	Manifest struct {
		Items []manifestItem `xml:"item"`
	} `xml:"manifest"`
}

func (a *archive) readPackage(opfPath string) (*packageDoc, error) {
	content, err := a.read(opfPath)
	if err != nil {
		return nil, fmt.Errorf("package document: %w", err)
	}
	var pkg packageDoc
	if err := xml.Unmarshal(content, &pkg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", opfPath, err)
	}
	return &pkg, nil
}

// coverHref finds the cover image: EPUB 3 cover-image property first, then
// the EPUB 2 <meta name="cover">.
func (p *packageDoc) coverHref() string {
	for _, item := range p.Manifest.Items {
		if !strings.HasPrefix(item.MediaType, "image/") {
			continue
		}
		for _, prop := range strings.Fields(item.Properties) {
			if prop == "cover-image" {
				return item.Href
			}
		}
	}
	for _, m := range p.Metadata.Meta {
		if m.Name != "cover" {
			continue
		}
		for _, item := range p.Manifest.Items {
			if item.ID == m.Content && strings.HasPrefix(item.MediaType, "image/") {
				return item.Href
			}
		}
	}
	return ""
}

// checkImages parses every XHTML content document and reports img[src]
// values that do not resolve to an archive entry.
func (a *archive) checkImages(pkg *packageDoc, opfPath string) []string {
	var issues []string
	for _, item := range pkg.Manifest.Items {
		if item.MediaType != "application/xhtml+xml" {
			continue
		}
		docPath := resolveHref(opfPath, item.Href)
		content, err := a.read(docPath)
		if err != nil {
			issues = append(issues, fmt.Sprintf("manifest item %s: %v", item.ID, err))
			continue
		}
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
		if err != nil {
			issues = append(issues, fmt.Sprintf("parse %s: %v", docPath, err))
			continue
		}
		doc.Find("img[src]").Each(func(_ int, s *goquery.Selection) {
			src, _ := s.Attr("src")
			if src == "" || strings.HasPrefix(src, "data:") || fileutil.IsURLLike(src) {
				return
			}
			target := resolveHref(docPath, src)
			if _, ok := a.files[target]; !ok {
				issues = append(issues, fmt.Sprintf("%s: image %q not in archive", docPath, src))
			}
		})
	}
	sort.Strings(issues)
	return issues
}

// resolveHref resolves href relative to the archive entry base.
func resolveHref(base, href string) string {
	if i := strings.IndexAny(href, "#?"); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return path.Clean(path.Join(path.Dir(base), href))
}
