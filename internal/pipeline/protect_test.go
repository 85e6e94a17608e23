package pipeline

import (
	"strings"
	"testing"
)

func TestFindProtectedRegions(t *testing.T) {
	t.Parallel()

	src := "Intro `code` text.\n\n```go\nfenced\n```\n\n    indented\n\nOutro\n"
	regions := findProtectedRegions([]byte(src))

	tests := []struct {
		name      string
		needle    string
		protected bool
	}{
		{name: "inline code", needle: "code", protected: true},
		{name: "fenced body", needle: "fenced", protected: true},
		{name: "indented body", needle: "indented", protected: true},
		{name: "paragraph text", needle: "Intro", protected: false},
		{name: "after code", needle: "Outro", protected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pos := strings.Index(src, tt.needle)
			if _, got := regions.regionAt(pos); got != tt.protected {
				t.Errorf("regionAt(%q) = %v, want %v", tt.needle, got, tt.protected)
			}
		})
	}
}

func TestProtectedRegions_Overlaps(t *testing.T) {
	t.Parallel()

	regions := protectedRegions{{start: 10, end: 20}, {start: 30, end: 40}}

	tests := []struct {
		start, end int
		want       bool
	}{
		{0, 10, false},
		{5, 11, true},
		{19, 25, true},
		{20, 30, false},
		{35, 50, true},
		{40, 45, false},
	}

	for _, tt := range tests {
		if got := regions.overlaps(tt.start, tt.end); got != tt.want {
			t.Errorf("overlaps(%d, %d) = %v, want %v", tt.start, tt.end, got, tt.want)
		}
	}
}

func TestMergeSpans(t *testing.T) {
	t.Parallel()

	got := mergeSpans([]span{{start: 5, end: 8}, {start: 0, end: 3}, {start: 2, end: 6}, {start: 10, end: 12}})
	want := protectedRegions{{start: 0, end: 8}, {start: 10, end: 12}}

	if len(got) != len(want) {
		t.Fatalf("mergeSpans() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("span %d = %v, want %v", i, got[i], want[i])
		}
	}
}
