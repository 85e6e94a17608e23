package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/alnah/go-bookexport/internal/fileutil"
)

// Direction selects which way image targets are rewritten.
type Direction int

const (
	// ToAbsolute turns relative targets that resolve to existing files into
	// absolute filesystem paths.
	ToAbsolute Direction = iota
	// ToRelative turns absolute targets inside the assets directory back into
	// paths relative to the containing file.
	ToRelative
)

// String implements fmt.Stringer.
func (d Direction) String() string {
	if d == ToRelative {
		return "to-relative"
	}
	return "to-absolute"
}

// targetConverter applies the absolute/relative policy shared by the
// Markdown and <img> rewriters.
type targetConverter struct {
	direction Direction
	assetsDir string // resolved
}

func newTargetConverter(direction Direction, assetsDir string) targetConverter {
	c := targetConverter{direction: direction}
	if assetsDir != "" {
		c.assetsDir = fileutil.ResolvePath(assetsDir)
	}
	return c
}

// convert returns the rewritten target and true, or the input and false
// when the target must stay untouched.
func (c targetConverter) convert(target, fileDir string) (string, bool) {
	if target == "" || strings.HasPrefix(target, "#") {
		return target, false
	}
	if fileutil.IsURLLike(target) && !filepath.IsAbs(target) {
		return target, false
	}
	if c.direction == ToRelative {
		return c.toRelative(target, fileDir)
	}
	return c.toAbsolute(target, fileDir)
}

func (c targetConverter) toAbsolute(target, fileDir string) (string, bool) {
	if isAbsoluteTarget(target) {
		return target, false
	}

	candidate := filepath.Join(fileDir, filepath.FromSlash(target))
	if _, err := os.Stat(candidate); err != nil {
		return target, false
	}
	return fileutil.ResolvePath(candidate), true
}

// unrestorable reports whether a ToAbsolute conversion of target to abs
// will not come back as target from a ToRelative pass: abs lies outside the
// assets directory, or target was not in canonical relative form
// ("./img.png"). Without an assets directory nothing is reported.
func (c targetConverter) unrestorable(target, abs, fileDir string) bool {
	if c.direction != ToAbsolute || c.assetsDir == "" {
		return false
	}
	back, ok := c.relativeFor(abs, fileDir)
	return !ok || back != target
}

func (c targetConverter) toRelative(target, fileDir string) (string, bool) {
	return c.relativeFor(target, fileDir)
}

func (c targetConverter) relativeFor(target, fileDir string) (string, bool) {
	if c.assetsDir == "" || !isAbsoluteTarget(target) {
		return target, false
	}

	resolved := fileutil.ResolvePath(filepath.FromSlash(target))
	if !fileutil.IsPathUnderDir(resolved, c.assetsDir) {
		return target, false
	}

	rel, err := filepath.Rel(fileutil.ResolvePath(fileDir), resolved)
	if err != nil {
		return target, false
	}
	return filepath.ToSlash(rel), true
}

// isAbsoluteTarget accepts OS-absolute paths and slash-rooted paths, which
// Markdown authors use on every platform.
func isAbsoluteTarget(target string) bool {
	return filepath.IsAbs(target) || strings.HasPrefix(target, "/")
}
