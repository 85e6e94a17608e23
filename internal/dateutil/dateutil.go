// Package dateutil resolves "auto" date values in book metadata.
//
// A date value is either a fixed string, kept as written, or "auto" /
// "auto:LAYOUT", replaced by the export date. LAYOUT is a preset name or a
// layout built from the tokens YYYY, YY, MMMM, MMM, MM, M, DD and D.
package dateutil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDateFormat indicates an invalid auto date or layout.
var ErrInvalidDateFormat = errors.New("invalid date format")

const (
	// DefaultLayout applies to a bare "auto".
	DefaultLayout = "YYYY-MM-DD"
	// PlaceholderDate is written into generated metadata: the year, as a
	// copyright line expects.
	PlaceholderDate = "auto:year"

	autoKeyword     = "auto"
	maxLayoutLength = 50
)

// Presets are the layout names accepted after "auto:".
var Presets = map[string]string{
	"iso":      "YYYY-MM-DD",
	"european": "DD/MM/YYYY",
	"us":       "MM/DD/YYYY",
	"long":     "MMMM D, YYYY",
	"year":     "YYYY",
}

// tokenLayouts maps a token letter to the Go layout of each run length it
// supports, longest first.
var tokenLayouts = map[byte][]struct {
	n      int
	layout string
}{
	'Y': {{4, "2006"}, {2, "06"}},
	'M': {{4, "January"}, {3, "Jan"}, {2, "01"}, {1, "1"}},
	'D': {{2, "02"}, {1, "2"}},
}

// segment is one piece of a Layout: a token rendered through layout, or
// literal text when layout is empty.
type segment struct {
	literal string
	layout  string
}

// Layout is a parsed date layout.
type Layout struct {
	source string
	segs   []segment
}

// ParseLayout parses a token layout. Text in brackets is literal ("[Day] D"
// renders "Day 7"); any other non-token character is kept as is.
func ParseLayout(s string) (Layout, error) {
	if s == "" {
		return Layout{}, fmt.Errorf("%w: layout cannot be empty", ErrInvalidDateFormat)
	}
	if len(s) > maxLayoutLength {
		return Layout{}, fmt.Errorf("%w: layout exceeds %d characters", ErrInvalidDateFormat, maxLayoutLength)
	}

	l := Layout{source: s}
	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			l.segs = append(l.segs, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(s); {
		c := s[i]
		if c == '[' {
			end := strings.IndexByte(s[i+1:], ']')
			if end < 0 {
				return Layout{}, fmt.Errorf("%w: unclosed bracket at position %d", ErrInvalidDateFormat, i)
			}
			lit.WriteString(s[i+1 : i+1+end])
			i += end + 2
			continue
		}

		sizes, ok := tokenLayouts[c]
		if !ok {
			lit.WriteByte(c)
			i++
			continue
		}
		run := 1
		for i+run < len(s) && s[i+run] == c {
			run++
		}
		i += run
		// A run longer than any token splits greedily: "MMMMM" is MMMM then M.
		for run > 0 {
			matched := false
			for _, sz := range sizes {
				if sz.n <= run {
					flush()
					l.segs = append(l.segs, segment{layout: sz.layout})
					run -= sz.n
					matched = true
					break
				}
			}
			if !matched {
				lit.WriteString(strings.Repeat(string(c), run))
				run = 0
			}
		}
	}
	flush()
	return l, nil
}

// Format renders t. Literal text is never interpreted as a Go layout.
func (l Layout) Format(t time.Time) string {
	var b strings.Builder
	for _, s := range l.segs {
		if s.layout == "" {
			b.WriteString(s.literal)
			continue
		}
		b.WriteString(t.Format(s.layout))
	}
	return b.String()
}

// String returns the layout as written.
func (l Layout) String() string { return l.source }

// IsAuto reports whether value asks for a generated date.
func IsAuto(value string) bool {
	v := strings.ToLower(strings.TrimSpace(value))
	return v == autoKeyword || strings.HasPrefix(v, autoKeyword+":")
}

// autoLayout returns the layout of an auto value. ok is false for fixed
// dates.
func autoLayout(value string) (l Layout, ok bool, err error) {
	v := strings.TrimSpace(value)
	lower := strings.ToLower(v)
	switch {
	case lower == autoKeyword:
		l, err = ParseLayout(DefaultLayout)
		return l, true, err
	case !strings.HasPrefix(lower, autoKeyword+":"):
		return Layout{}, false, nil
	}

	layout := v[len(autoKeyword)+1:]
	if layout == "" {
		return Layout{}, true, fmt.Errorf("%w: layout cannot be empty after %q", ErrInvalidDateFormat, autoKeyword+":")
	}
	if preset, found := Presets[strings.ToLower(layout)]; found {
		layout = preset
	}
	l, err = ParseLayout(layout)
	return l, true, err
}

// Resolve returns the date value stands for at now. Fixed dates are
// returned unchanged.
func Resolve(value string, now time.Time) (string, error) {
	l, ok, err := autoLayout(value)
	if err != nil {
		return "", err
	}
	if !ok {
		return value, nil
	}
	return l.Format(now), nil
}

// Validate checks that an auto value has a valid layout. Fixed dates are
// always valid.
func Validate(value string) error {
	_, _, err := autoLayout(value)
	return err
}
