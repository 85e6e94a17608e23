package pipeline

import (
	"regexp"
	"sort"
	"strings"
)

// imageRef locates one Markdown image inside a document. Offsets are byte
// positions; [targetStart, targetEnd) excludes angle brackets and title.
type imageRef struct {
	start, end             int
	targetStart, targetEnd int
	angle                  bool
	label                  string // reference label, empty for inline images
}

// edit replaces text[start:end] with repl.
type edit struct {
	start, end int
	repl       string
}

// refDefinitionPattern matches a link reference definition line:
// up to three spaces, [label]:, then the destination.
var refDefinitionPattern = regexp.MustCompile(`(?m)^ {0,3}\[((?:[^\]\\]|\\.)+)\]:[ \t]*(<[^>\n]*>|[^\s<]\S*)`)

// PathRewriter rewrites Markdown image targets between relative and absolute
// form. Inline images (![alt](target "title"), ![alt](<target>)) and
// reference-style images (![alt][id], ![id][], ![id]) are recognised; for
// the latter the matching [id]: definition is rewritten. Code blocks and
// inline code are left alone.
type PathRewriter struct {
	conv targetConverter
}

// NewPathRewriter creates a PathRewriter. assetsDir is required for
// ToRelative; for ToAbsolute it is optional and only used to find targets
// that will not be restored.
func NewPathRewriter(direction Direction, assetsDir string) *PathRewriter {
	return &PathRewriter{conv: newTargetConverter(direction, assetsDir)}
}

// Name identifies the rewriter in logs.
func (r *PathRewriter) Name() string { return "markdown-images" }

// RewriteText rewrites every eligible image in text. fileDir is the
// directory of the file the text came from; relative targets resolve
// against it. Returns the new text and the number of converted targets.
func (r *PathRewriter) RewriteText(text, fileDir string) (string, int) {
	out, n, _ := r.rewriteTracked(text, fileDir)
	return out, n
}

// rewriteTracked is RewriteText that also returns the original targets
// a ToRelative pass will not restore as written.
func (r *PathRewriter) rewriteTracked(text, fileDir string) (string, int, []string) {
	protected := findProtectedRegions([]byte(text))
	images := scanImages(text, protected)
	if len(images) == 0 {
		return text, 0, nil
	}

	var edits []edit
	var lost []string
	labels := make(map[string]bool)
	for _, img := range images {
		if img.label != "" {
			labels[normalizeLabel(img.label)] = true
			continue
		}
		if img.targetEnd <= img.targetStart || protected.overlaps(img.targetStart, img.targetEnd) {
			continue
		}
		target := text[img.targetStart:img.targetEnd]
		if newTarget, ok := r.conv.convert(target, fileDir); ok && newTarget != target {
			edits = append(edits, edit{start: img.targetStart, end: img.targetEnd, repl: newTarget})
			if r.conv.unrestorable(target, newTarget, fileDir) {
				lost = append(lost, target)
			}
		}
	}

	if len(labels) > 0 {
		defEdits, defLost := r.definitionEdits(text, fileDir, labels, protected)
		edits = append(edits, defEdits...)
		lost = append(lost, defLost...)
	}

	return applyEdits(text, edits), len(edits), lost
}

// definitionEdits rewrites destinations of reference definitions whose
// label is used by at least one image.
func (r *PathRewriter) definitionEdits(text, fileDir string, labels map[string]bool, protected protectedRegions) ([]edit, []string) {
	var edits []edit
	var lost []string
	for _, m := range refDefinitionPattern.FindAllStringSubmatchIndex(text, -1) {
		if _, inCode := protected.regionAt(m[0]); inCode {
			continue
		}
		if !labels[normalizeLabel(text[m[2]:m[3]])] {
			continue
		}

		start, end := m[4], m[5]
		if strings.HasPrefix(text[start:end], "<") {
			start, end = start+1, end-1
		}
		target := text[start:end]
		if newTarget, ok := r.conv.convert(target, fileDir); ok && newTarget != target {
			edits = append(edits, edit{start: start, end: end, repl: newTarget})
			if r.conv.unrestorable(target, newTarget, fileDir) {
				lost = append(lost, target)
			}
		}
	}
	return edits, lost
}

// scanImages finds every Markdown image outside protected regions.
func scanImages(text string, protected protectedRegions) []imageRef {
	var refs []imageRef
	for i := 0; i < len(text); {
		if region, ok := protected.regionAt(i); ok {
			i = region.end
			continue
		}
		switch {
		case text[i] == '\\':
			i += 2
		case strings.HasPrefix(text[i:], "!["):
			if img, ok := scanImage(text, i); ok {
				refs = append(refs, img)
				i = img.end
				continue
			}
			i += 2
		default:
			i++
		}
	}
	return refs
}

// scanImage parses an image starting at text[i:] == "![". It tracks bracket
// depth in the alt text, paren depth in bare targets, angle brackets and
// quoted titles, and honours backslash escapes.
func scanImage(text string, i int) (imageRef, bool) {
	altEnd, ok := scanAlt(text, i+2)
	if !ok {
		return imageRef{}, false
	}
	alt := text[i+2 : altEnd]
	next := altEnd + 1

	if next < len(text) && text[next] == '(' {
		return scanInlineDestination(text, i, next+1)
	}

	// Reference-style: ![alt][id], ![alt][] or ![alt]
	img := imageRef{start: i, end: next, label: alt}
	if next < len(text) && text[next] == '[' {
		closeIdx := strings.IndexAny(text[next+1:], "[]\n")
		if closeIdx < 0 || text[next+1+closeIdx] != ']' {
			return img, strings.TrimSpace(alt) != ""
		}
		if id := text[next+1 : next+1+closeIdx]; strings.TrimSpace(id) != "" {
			img.label = id
		}
		img.end = next + 1 + closeIdx + 1
	}
	if strings.TrimSpace(img.label) == "" {
		return imageRef{}, false
	}
	return img, true
}

// scanAlt returns the index of the ']' closing the alt text opened before
// pos. A blank line ends the paragraph and fails the scan.
func scanAlt(text string, pos int) (int, bool) {
	depth := 1
	for j := pos; j < len(text); j++ {
		switch text[j] {
		case '\\':
			j++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return j, true
			}
		case '\n':
			if isBlankLineAt(text, j+1) {
				return 0, false
			}
		}
	}
	return 0, false
}

// scanInlineDestination parses "target "title")" starting right after "(".
func scanInlineDestination(text string, start, pos int) (imageRef, bool) {
	img := imageRef{start: start}
	p := skipSpaces(text, pos)
	if p >= len(text) {
		return imageRef{}, false
	}

	if text[p] == '<' {
		q := p + 1
		for ; q < len(text); q++ {
			c := text[q]
			if c == '\\' {
				q++
				continue
			}
			if c == '\n' || c == '<' {
				return imageRef{}, false
			}
			if c == '>' {
				break
			}
		}
		if q >= len(text) {
			return imageRef{}, false
		}
		img.angle = true
		img.targetStart, img.targetEnd = p+1, q

		closeParen, ok := scanToCloseParen(text, q+1)
		if !ok {
			return imageRef{}, false
		}
		img.end = closeParen + 1
		return img, true
	}

	closeParen, ok := scanToCloseParen(text, p)
	if !ok {
		return imageRef{}, false
	}
	img.targetStart = p
	img.targetEnd = p + len(splitTitle(text[p:closeParen]))
	img.end = closeParen + 1
	return img, true
}

// scanToCloseParen finds the ')' that closes the destination, skipping
// nested parens, escapes and quoted titles that follow whitespace. A
// newline outside a title fails the scan.
func scanToCloseParen(text string, pos int) (int, bool) {
	depth := 0
	var quote byte
	for q := pos; q < len(text); q++ {
		c := text[q]
		if quote != 0 {
			switch c {
			case '\\':
				q++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\n':
			return 0, false
		case '\\':
			q++
		case '"', '\'':
			if q > pos && isSpace(text[q-1]) {
				quote = c
			}
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return q, true
			}
			depth--
		}
	}
	return 0, false
}

// splitTitle strips an optional trailing ` "title"` or ` 'title'` and
// surrounding whitespace, returning the bare target.
func splitTitle(dest string) string {
	trimmed := strings.TrimRight(dest, " \t")
	if n := len(trimmed); n >= 2 {
		if q := trimmed[n-1]; q == '"' || q == '\'' {
			for s := n - 2; s > 0; s-- {
				if trimmed[s] == q && isSpace(trimmed[s-1]) {
					return strings.TrimRight(trimmed[:s], " \t")
				}
			}
		}
	}
	return trimmed
}

// applyEdits applies non-overlapping edits in offset order.
func applyEdits(text string, edits []edit) string {
	if len(edits) == 0 {
		return text
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, e := range edits {
		if e.start < last {
			continue
		}
		b.WriteString(text[last:e.start])
		b.WriteString(e.repl)
		last = e.end
	}
	b.WriteString(text[last:])
	return b.String()
}

// normalizeLabel folds case and collapses whitespace, as Markdown
// reference matching does.
func normalizeLabel(label string) string {
	return strings.ToLower(strings.Join(strings.Fields(label), " "))
}

func skipSpaces(text string, pos int) int {
	for pos < len(text) && isSpace(text[pos]) {
		pos++
	}
	return pos
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

// isBlankLineAt reports whether the line starting at pos holds only spaces.
func isBlankLineAt(text string, pos int) bool {
	for ; pos < len(text); pos++ {
		switch text[pos] {
		case ' ', '\t', '\r':
		case '\n':
			return true
		default:
			return false
		}
	}
	return true
}
