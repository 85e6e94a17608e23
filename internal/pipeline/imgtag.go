package pipeline

import (
	"sort"
	"strings"
)

// imgTag locates a raw <img ...> tag in a text: the whole tag and its
// attribute text.
type imgTag struct {
	start, end         int
	attrStart, attrEnd int
}

// imgAttr is one parsed attribute. Valueless attributes (e.g. "hidden")
// have hasValue false.
type imgAttr struct {
	name     string
	value    string
	hasValue bool
}

// ImgTagRewriter rewrites the src attribute of raw HTML <img> tags embedded
// in Markdown. Tags whose src is converted are re-serialized in a stable
// form: src first, alt second, remaining attributes sorted by name, values
// double-quoted. Other tags are left byte-identical.
type ImgTagRewriter struct {
	conv targetConverter
}

// NewImgTagRewriter creates an ImgTagRewriter. assetsDir is required for
// ToRelative; for ToAbsolute it only serves to find targets that will not
// be restored.
func NewImgTagRewriter(direction Direction, assetsDir string) *ImgTagRewriter {
	return &ImgTagRewriter{conv: newTargetConverter(direction, assetsDir)}
}

// Name identifies the rewriter in logs.
func (r *ImgTagRewriter) Name() string { return "img-tags" }

// RewriteText rewrites every eligible <img> tag outside code regions.
// Returns the new text and the number of converted tags.
func (r *ImgTagRewriter) RewriteText(text, fileDir string) (string, int) {
	out, n, _ := r.rewriteTracked(text, fileDir)
	return out, n
}

func (r *ImgTagRewriter) rewriteTracked(text, fileDir string) (string, int, []string) {
	tags := findImgTags(text)
	if len(tags) == 0 {
		return text, 0, nil
	}
	protected := findProtectedRegions([]byte(text))

	var edits []edit
	var lost []string
	for _, tag := range tags {
		if protected.overlaps(tag.start, tag.end) {
			continue
		}
		raw := text[tag.attrStart:tag.attrEnd]
		attrs := parseImgAttributes(raw)

		src, ok := attrs["src"]
		if !ok || !src.hasValue {
			continue
		}
		newSrc, ok := r.conv.convert(src.value, fileDir)
		if !ok || newSrc == src.value {
			continue
		}
		if r.conv.unrestorable(src.value, newSrc, fileDir) {
			lost = append(lost, src.value)
		}
		src.value = newSrc
		attrs["src"] = src

		edits = append(edits, edit{
			start: tag.start,
			end:   tag.end,
			repl:  buildImgTag(attrs, isSelfClosing(raw)),
		})
	}

	return applyEdits(text, edits), len(edits), lost
}

// findImgTags scans text for <img> tags, case-insensitively. A tag ends at
// the first '>' outside a quoted attribute value. When a quote is never
// closed the tag ends at the first '>'.
func findImgTags(text string) []imgTag {
	var tags []imgTag
	i := 0
	for i < len(text) {
		k := strings.IndexByte(text[i:], '<')
		if k < 0 {
			break
		}
		start := i + k
		i = start + 1
		if !hasImgName(text, start+1) {
			continue
		}
		attrStart := start + len("<img")
		end := imgTagEnd(text, attrStart)
		if end < 0 {
			continue
		}
		tags = append(tags, imgTag{start: start, end: end + 1, attrStart: attrStart, attrEnd: end})
		i = end + 1
	}
	return tags
}

func hasImgName(s string, i int) bool {
	if len(s)-i < 3 || !strings.EqualFold(s[i:i+3], "img") {
		return false
	}
	return i+3 == len(s) || !isWordByte(s[i+3])
}

// imgTagEnd returns the index of the '>' closing the tag whose attribute
// text starts at i, or -1.
func imgTagEnd(s string, i int) int {
	from := i
	afterEq := false
	for i < len(s) {
		c := s[i]
		switch {
		case c == '>':
			return i
		case c == '=':
			afterEq = true
			i++
			continue
		case isHTMLSpace(c):
			i++
			continue
		case afterEq && (c == '"' || c == '\''):
			_, next, closed := quotedValue(s, i)
			if !closed {
				return firstTagClose(s, from)
			}
			i = next
		default:
			i++
		}
		afterEq = false
	}
	return -1
}

func firstTagClose(s string, from int) int {
	if k := strings.IndexByte(s[from:], '>'); k >= 0 {
		return from + k
	}
	return -1
}

// quotedValue reads the quoted value starting at s[j], which must be a
// quote. next is the index after the closing quote. An unclosed value
// runs to the end of s.
func quotedValue(s string, j int) (value string, next int, closed bool) {
	q := s[j]
	end := strings.IndexByte(s[j+1:], q)
	if end < 0 {
		return s[j+1:], len(s), false
	}
	return s[j+1 : j+1+end], j + 1 + end + 1, true
}

// parseImgAttributes parses the attribute text of an <img> tag. Names are
// lowercased and the last duplicate wins. Double-quoted, single-quoted,
// unquoted and valueless attributes are accepted.
func parseImgAttributes(s string) map[string]imgAttr {
	attrs := make(map[string]imgAttr)
	i := 0
	for i < len(s) {
		for i < len(s) && (isHTMLSpace(s[i]) || s[i] == '/') {
			i++
		}
		start := i
		for i < len(s) && !isHTMLSpace(s[i]) && s[i] != '=' && s[i] != '/' {
			i++
		}
		if start == i {
			i++
			continue
		}
		attr := imgAttr{name: strings.ToLower(s[start:i])}

		j := i
		for j < len(s) && isHTMLSpace(s[j]) {
			j++
		}
		if j < len(s) && s[j] == '=' {
			j++
			for j < len(s) && isHTMLSpace(s[j]) {
				j++
			}
			attr.hasValue = true
			switch {
			case j < len(s) && (s[j] == '"' || s[j] == '\''):
				attr.value, j, _ = quotedValue(s, j)
			default:
				vs := j
				for j < len(s) && !isHTMLSpace(s[j]) {
					j++
				}
				attr.value = strings.TrimSuffix(s[vs:j], "/")
			}
			i = j
		}
		attrs[attr.name] = attr
	}
	return attrs
}

// buildImgTag serializes attributes in normalized order.
func buildImgTag(attrs map[string]imgAttr, selfClosing bool) string {
	var names []string
	for name := range attrs {
		if name != "src" && name != "alt" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, first := range []string{"alt", "src"} {
		if _, ok := attrs[first]; ok {
			names = append([]string{first}, names...)
		}
	}

	var b strings.Builder
	b.WriteString("<img")
	for _, name := range names {
		a := attrs[name]
		b.WriteByte(' ')
		b.WriteString(name)
		if a.hasValue {
			b.WriteString(`="`)
			b.WriteString(strings.ReplaceAll(a.value, `"`, "&quot;"))
			b.WriteByte('"')
		}
	}
	if selfClosing {
		b.WriteString(" /")
	}
	b.WriteByte('>')
	return b.String()
}

func isSelfClosing(raw string) bool {
	return strings.HasSuffix(strings.TrimRight(raw, " \t\r\n"), "/")
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isHTMLSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
