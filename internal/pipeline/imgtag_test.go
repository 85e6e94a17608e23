package pipeline

// Notes:
// - Converted tags are compared byte-for-byte to pin the normalized
//   attribute order; unconverted tags must come back untouched

import (
	"slices"
	"testing"
)

func TestImgTagRewriter_ToAbsolute(t *testing.T) {
	t.Parallel()

	f := newBookFixture(t)
	img := f.asset("img.png")

	tests := []struct {
		name      string
		input     string
		want      string
		wantCount int
	}{
		{
			name:      "src converted",
			input:     `<img src="../../assets/img.png" alt="x">`,
			want:      `<img src="` + img + `" alt="x">`,
			wantCount: 1,
		},
		{
			name:      "attributes reordered and self-closing kept",
			input:     `<img width="50" alt="x" src="../../assets/img.png"/>`,
			want:      `<img src="` + img + `" alt="x" width="50" />`,
			wantCount: 1,
		},
		{
			name:      "single quotes and uppercase normalized",
			input:     `<IMG SRC='../../assets/img.png' Class=wide>`,
			want:      `<img src="` + img + `" class="wide">`,
			wantCount: 1,
		},
		{
			name:      "valueless attribute kept",
			input:     `<img src="../../assets/img.png" hidden>`,
			want:      `<img src="` + img + `" hidden>`,
			wantCount: 1,
		},
		{
			name:      "quote in value escaped",
			input:     `<img alt='say "hi"' src="../../assets/img.png">`,
			want:      `<img src="` + img + `" alt="say &quot;hi&quot;">`,
			wantCount: 1,
		},
		{
			name:      "closing bracket inside quoted value",
			input:     `<img alt="a > b" src="../../assets/img.png">`,
			want:      `<img src="` + img + `" alt="a > b">`,
			wantCount: 1,
		},
		{
			name:      "closing bracket inside single-quoted value",
			input:     `<img title='x>y' src = '../../assets/img.png' >`,
			want:      `<img src="` + img + `" title="x>y">`,
			wantCount: 1,
		},
		{
			name:  "URL src untouched",
			input: `<IMG SRC="https://x/a.png" WIDTH=5>`,
			want:  `<IMG SRC="https://x/a.png" WIDTH=5>`,
		},
		{
			name:  "missing file untouched",
			input: `<img  src="nope.png"  alt=x >`,
			want:  `<img  src="nope.png"  alt=x >`,
		},
		{
			name:  "no src untouched",
			input: `<img alt="x">`,
			want:  `<img alt="x">`,
		},
		{
			name:  "inside fenced code untouched",
			input: "```html\n<img src=\"../../assets/img.png\">\n```\n",
			want:  "```html\n<img src=\"../../assets/img.png\">\n```\n",
		},
		{
			name:  "inside inline code untouched",
			input: "Write `<img src=\"../../assets/img.png\">` here.",
			want:  "Write `<img src=\"../../assets/img.png\">` here.",
		},
		{
			name:      "inline html in paragraph",
			input:     `Logo: <img src="../../assets/img.png"> done`,
			want:      `Logo: <img src="` + img + `"> done`,
			wantCount: 1,
		},
	}

	rw := NewImgTagRewriter(ToAbsolute, "")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, count := rw.RewriteText(tt.input, f.chapters)
			if got != tt.want {
				t.Errorf("RewriteText() =\n%q\nwant\n%q", got, tt.want)
			}
			if count != tt.wantCount {
				t.Errorf("RewriteText() count = %d, want %d", count, tt.wantCount)
			}
		})
	}
}

func TestImgTagRewriter_ToRelative(t *testing.T) {
	t.Parallel()

	f := newBookFixture(t)

	input := `<img src="` + f.asset("img.png") + `" alt="x" />`
	want := `<img src="../../assets/img.png" alt="x" />`

	got, count := NewImgTagRewriter(ToRelative, f.assets).RewriteText(input, f.chapters)
	if got != want || count != 1 {
		t.Errorf("RewriteText() = %q (%d), want %q (1)", got, count, want)
	}
}

func TestFindImgTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "plain", input: `a <img src="x.png"> b`, want: []string{`<img src="x.png">`}},
		{name: "quoted bracket", input: `<img alt="a > b" src="x.png">`, want: []string{`<img alt="a > b" src="x.png">`}},
		{name: "uppercase", input: `<IMG SRC=x.png>`, want: []string{`<IMG SRC=x.png>`}},
		{name: "two tags", input: `<img src=a><img src='b'>`, want: []string{`<img src=a>`, `<img src='b'>`}},
		{name: "unclosed quote ends at first bracket", input: `<img src="x.png> tail`, want: []string{`<img src="x.png>`}},
		{name: "other tag", input: `<imgx src="x.png"> <image src="y">`, want: nil},
		{name: "never closed", input: `<img src="x.png"`, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got []string
			for _, tag := range findImgTags(tt.input) {
				got = append(got, tt.input[tag.start:tag.end])
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("findImgTags() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseImgAttributes(t *testing.T) {
	t.Parallel()

	attrs := parseImgAttributes(` src="a.png" SRC='b.png' data-x = 1 hidden /`)

	if got := attrs["src"]; got.value != "b.png" || !got.hasValue {
		t.Errorf("src = %+v, want last duplicate b.png", got)
	}
	if got := attrs["data-x"]; got.value != "1" {
		t.Errorf("data-x = %+v, want 1", got)
	}
	if got, ok := attrs["hidden"]; !ok || got.hasValue {
		t.Errorf("hidden = %+v (present %v), want valueless", got, ok)
	}
	if len(attrs) != 3 {
		t.Errorf("parsed %d attributes, want 3: %+v", len(attrs), attrs)
	}
}
