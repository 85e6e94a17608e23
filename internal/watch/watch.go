// Package watch runs a callback when files under a set of directories change.
// Events are debounced, and events caused by the callback itself are dropped.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Default timings.
const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultSettle   = 500 * time.Millisecond
)

// ErrNoDirectories is returned when none of the watched directories exist.
var ErrNoDirectories = errors.New("no directory to watch")

// Options configures Run.
type Options struct {
	// Debounce is the quiet period after the last event before the
	// callback runs.
	Debounce time.Duration
	// Settle is how long after the callback returns events are dropped,
	// so the callback's own writes do not trigger it again.
	Settle time.Duration
	// Ignore reports paths whose events are dropped. Hidden files and
	// editor temp files are always ignored.
	Ignore func(path string) bool
	Logger *slog.Logger
}

// Func is called with the sorted set of changed paths.
type Func func(ctx context.Context, changed []string)

// Run watches dirs recursively until ctx is cancelled. Missing directories
// are skipped; new directories are added as they appear.
func Run(ctx context.Context, dirs []string, opts Options, fn Func) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	watched := 0
	for _, dir := range dirs {
		if info, statErr := os.Stat(dir); statErr != nil || !info.IsDir() {
			logger.Warn("watch: directory not found", slog.String("path", dir))
			continue
		}
		if err := addDirsRecursive(w, dir); err != nil {
			return err
		}
		watched++
	}
	if watched == 0 {
		return ErrNoDirectories
	}
	logger.Info("watch: started", slog.Any("dirs", dirs))

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pending := make(map[string]bool)
	var quietUntil time.Time

	schedule := func() {
		if debounceTimer == nil {
			debounceTimer = time.NewTimer(opts.Debounce)
			debounceCh = debounceTimer.C
		} else {
			debounceTimer.Reset(opts.Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			logger.Info("watch: stopped")
			return nil

		case <-debounceCh:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			slices.Sort(changed)
			clear(pending)

			fn(ctx, changed)
			quietUntil = time.Now().Add(opts.Settle)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if time.Now().Before(quietUntil) {
				logger.Debug("watch: dropped own event", slog.String("path", ev.Name))
				continue
			}
			if ev.Op == fsnotify.Chmod || ignored(ev.Name, opts.Ignore) {
				continue
			}

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := addDirsRecursive(w, ev.Name); addErr != nil {
						logger.Warn("watch: add new dir failed",
							slog.String("path", ev.Name),
							slog.String("error", addErr.Error()))
					}
				}
			}

			logger.Debug("watch: event", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			pending[ev.Name] = true
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watch: error", slog.String("error", watchErr.Error()))
		}
	}
}

func ignored(path string, ignore func(string) bool) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".tmp") {
		return true
	}
	return ignore != nil && ignore(path)
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}
