package pipeline

import (
	"sort"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// span is a half-open byte range [start, end) within a document.
type span struct {
	start, end int
}

// protectedRegions holds the sorted, merged code regions of a document.
// Rewriters never modify bytes inside them.
type protectedRegions []span

// codeParser is a plain CommonMark parser; extensions do not change where
// code regions start and end.
var codeParser = goldmark.New().Parser()

// findProtectedRegions locates fenced code blocks, indented code blocks and
// inline code spans using the goldmark CommonMark parser.
func findProtectedRegions(src []byte) protectedRegions {
	doc := codeParser.Parse(text.NewReader(src))

	var spans []span
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if s, ok := linesSpan(node.Lines()); ok {
				spans = append(spans, s)
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			if s, ok := codeSpanSpan(node); ok {
				spans = append(spans, s)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return mergeSpans(spans)
}

// linesSpan covers every content line of a block.
func linesSpan(lines *text.Segments) (span, bool) {
	if lines == nil || lines.Len() == 0 {
		return span{}, false
	}
	first := lines.At(0)
	last := lines.At(lines.Len() - 1)
	return span{start: first.Start, end: last.Stop}, true
}

// codeSpanSpan covers the text children of an inline code span.
func codeSpanSpan(n ast.Node) (span, bool) {
	s := span{start: -1}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		t, ok := c.(*ast.Text)
		if !ok {
			continue
		}
		if s.start < 0 || t.Segment.Start < s.start {
			s.start = t.Segment.Start
		}
		if t.Segment.Stop > s.end {
			s.end = t.Segment.Stop
		}
	}
	return s, s.start >= 0 && s.end > s.start
}

func mergeSpans(spans []span) protectedRegions {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	merged := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

// regionAt returns the region containing pos, if any.
func (p protectedRegions) regionAt(pos int) (span, bool) {
	i := sort.Search(len(p), func(i int) bool { return p[i].end > pos })
	if i < len(p) && p[i].start <= pos {
		return p[i], true
	}
	return span{}, false
}

// overlaps reports whether [start, end) intersects any region.
func (p protectedRegions) overlaps(start, end int) bool {
	i := sort.Search(len(p), func(i int) bool { return p[i].end > start })
	return i < len(p) && p[i].start < end
}
