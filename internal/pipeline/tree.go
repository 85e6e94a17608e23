package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/alnah/go-bookexport/internal/fileutil"
)

// ErrInvalidEncoding indicates a manuscript file is not valid UTF-8.
var ErrInvalidEncoding = errors.New("file is not valid UTF-8")

// TextRewriter transforms the content of one Markdown file.
type TextRewriter interface {
	Name() string
	RewriteText(text, fileDir string) (string, int)
}

// UnrestorableTarget is a target made absolute that a ToRelative pass will
// not give back as written.
type UnrestorableTarget struct {
	File   string
	Target string
}

// trackingRewriter is a TextRewriter that also reports the targets it
// converts without a way back.
type trackingRewriter interface {
	rewriteTracked(text, fileDir string) (string, int, []string)
}

// RewriteStats summarizes one pass over a manuscript tree.
type RewriteStats struct {
	Rewriter       string
	FilesScanned   int
	FilesChanged   int
	ItemsConverted int
	ChangedFiles   []string
	SkippedDirs    []string // scan directories that do not exist
	Unrestorable   []UnrestorableTarget
}

// RewriteTree applies rw to every .md file under dirs (recursively, in
// sorted order) and writes back only files whose content changed.
// Missing directories are recorded in SkippedDirs. Every file is read and
// checked for valid UTF-8 before any is written, so ErrInvalidEncoding
// leaves the tree untouched.
func RewriteTree(dirs []string, rw TextRewriter) (RewriteStats, error) {
	stats := RewriteStats{Rewriter: rw.Name()}

	var docs []manuscriptFile
	for _, dir := range dirs {
		if !fileutil.DirExists(dir) {
			stats.SkippedDirs = append(stats.SkippedDirs, dir)
			continue
		}

		files, err := fileutil.WalkMarkdownFiles(dir)
		if err != nil {
			return stats, fmt.Errorf("walking %s: %w", dir, err)
		}
		for _, path := range files {
			doc, err := readManuscriptFile(path)
			if err != nil {
				return stats, err
			}
			docs = append(docs, doc)
		}
	}

	for _, doc := range docs {
		stats.FilesScanned++
		var (
			updated   string
			converted int
		)
		if tr, ok := rw.(trackingRewriter); ok {
			var lost []string
			updated, converted, lost = tr.rewriteTracked(doc.text, doc.dir)
			for _, target := range lost {
				stats.Unrestorable = append(stats.Unrestorable, UnrestorableTarget{File: doc.path, Target: target})
			}
		} else {
			updated, converted = rw.RewriteText(doc.text, doc.dir)
		}
		stats.ItemsConverted += converted
		if updated == doc.text {
			continue
		}
		if err := fileutil.WriteFileAtomic(doc.path, []byte(updated)); err != nil {
			return stats, fmt.Errorf("writing %s: %w", doc.path, err)
		}
		stats.FilesChanged++
		stats.ChangedFiles = append(stats.ChangedFiles, doc.path)
	}

	return stats, nil
}

// manuscriptFile is a Markdown file loaded for rewriting.
type manuscriptFile struct {
	path string
	dir  string // absolute directory, base for relative targets
	text string
}

func readManuscriptFile(path string) (manuscriptFile, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from walking the manuscript tree
	if err != nil {
		return manuscriptFile{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return manuscriptFile{}, fmt.Errorf("%w: %s", ErrInvalidEncoding, path)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return manuscriptFile{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	return manuscriptFile{path: path, dir: filepath.Dir(absPath), text: string(data)}, nil
}
