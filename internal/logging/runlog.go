package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunLog is an append-only log file shared by the structured logger and the
// stdout/stderr of external tools. Writes are serialized.
type RunLog struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	path   string
	runID  string
	logger *slog.Logger
}

// Open opens (or creates) the log file at path in append mode and starts a
// new run with a fresh run ID.
func Open(path string, level slog.Level) (*RunLog, error) {
	if err := ensureLogDir(path); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664) // #nosec G302 G304 -- project log
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return newRunLog(file, file, path, level), nil
}

// NewWriterLog builds a RunLog on top of an arbitrary writer, for tests and
// dry runs. Close does not close w.
func NewWriterLog(w io.Writer, level slog.Level) *RunLog {
	return newRunLog(w, nil, "", level)
}

// Discard returns a RunLog that drops everything.
func Discard() *RunLog {
	return NewWriterLog(io.Discard, slog.LevelError+1)
}

func newRunLog(w io.Writer, closer io.Closer, path string, level slog.Level) *RunLog {
	l := &RunLog{
		w:      w,
		closer: closer,
		path:   path,
		runID:  uuid.NewString(),
	}
	handler := slog.NewTextHandler(l, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, attr slog.Attr) slog.Attr {
			if attr.Key == slog.TimeKey && attr.Value.Kind() == slog.KindTime {
				attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
			}
			return attr
		},
	})
	l.logger = slog.New(handler).With("run_id", l.runID)
	return l
}

// Write appends p to the log. It satisfies io.Writer so it can be handed to
// exec.Cmd as Stdout and Stderr.
func (l *RunLog) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// Section writes a banner line before the raw output of a command, so the
// subprocess chatter can be told apart in the file.
func (l *RunLog) Section(title string) {
	_, _ = fmt.Fprintf(l, "---- %s [%s] ----\n", strings.TrimSpace(title), l.runID)
}

// Logger returns the structured logger writing into this log.
func (l *RunLog) Logger() *slog.Logger {
	return l.logger
}

// RunID returns the identifier attached to every record of this run.
func (l *RunLog) RunID() string {
	return l.runID
}

// Path returns the log file path, empty for writer-backed logs.
func (l *RunLog) Path() string {
	return l.path
}

// Close closes the underlying file, if any.
func (l *RunLog) Close() error {
	if l.closer == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	err := l.closer.Close()
	l.closer = nil
	return err
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// NewNop returns a logger that discards all records.
func NewNop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// ParseLevel maps a level name to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
