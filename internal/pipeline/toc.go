package pipeline

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/alnah/go-bookexport/internal/fileutil"
)

// TOC normalization modes.
const (
	TOCModeStripToAnchors = "strip-to-anchors"
	TOCModeReplaceExt     = "replace-ext"
)

// Sentinel errors for TOC normalization.
var (
	ErrTOCNotFound    = errors.New("TOC file not found")
	ErrInvalidTOCMode = errors.New("invalid TOC mode")
)

var (
	// (chapters/01.md#intro) -> (#intro)
	tocFileAnchorPattern = regexp.MustCompile(`\((?:[^)\s]+)\.(?:md|gfm|markdown)(#[^)]+)\)`)
	tocLinkTargetPattern = regexp.MustCompile(`\(([^)]+)\)`)
	tocExtPattern        = regexp.MustCompile(`\.(?:md|gfm|markdown)(#|$)`)
)

// StripToAnchors turns links to Markdown files with a fragment into pure
// fragment links, so a single-file export keeps working TOC links.
// Pure anchors are unchanged.
func StripToAnchors(text string) string {
	return tocFileAnchorPattern.ReplaceAllString(text, "(${1})")
}

// ReplaceExtension swaps .md, .gfm and .markdown inside link targets for
// .ext, where the extension ends the target or precedes a fragment. Free
// text and pure anchors are unchanged.
func ReplaceExtension(text, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	return tocLinkTargetPattern.ReplaceAllStringFunc(text, func(m string) string {
		inner := m[1 : len(m)-1]
		if strings.HasPrefix(inner, "#") {
			return m
		}
		return "(" + tocExtPattern.ReplaceAllString(inner, "."+ext+"${1}") + ")"
	})
}

// NormalizeTOC applies mode to text. ext is used by TOCModeReplaceExt.
func NormalizeTOC(text, mode, ext string) (string, error) {
	switch mode {
	case TOCModeStripToAnchors, "":
		return StripToAnchors(text), nil
	case TOCModeReplaceExt:
		if err := fileutil.ValidateExtension(strings.TrimPrefix(ext, ".")); err != nil {
			return "", fmt.Errorf("toc extension: %w", err)
		}
		return ReplaceExtension(text, ext), nil
	default:
		return "", fmt.Errorf("%w: %q (must be %s or %s)", ErrInvalidTOCMode, mode, TOCModeStripToAnchors, TOCModeReplaceExt)
	}
}

// NormalizeTOCFile normalizes the TOC file at path in place and reports
// whether it changed. A missing file yields ErrTOCNotFound.
func NormalizeTOCFile(path, mode, ext string) (bool, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is the project TOC file
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("%w: %s", ErrTOCNotFound, path)
		}
		return false, fmt.Errorf("reading TOC: %w", err)
	}
	if !utf8.Valid(data) {
		return false, fmt.Errorf("%w: %s", ErrInvalidEncoding, path)
	}

	original := string(data)
	updated, err := NormalizeTOC(original, mode, ext)
	if err != nil {
		return false, err
	}
	if updated == original {
		return false, nil
	}
	if err := fileutil.WriteFileAtomic(path, []byte(updated)); err != nil {
		return false, fmt.Errorf("writing TOC: %w", err)
	}
	return true, nil
}
