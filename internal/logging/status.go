package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
)

// Kind classifies a status line.
type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindWarn
	KindSkip
	KindError
	KindValidate
	KindBook
	KindLang
	KindDelete
	KindDone
	KindOutput
	KindLog
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

// Emoji returns the marker printed in front of a status line.
func (k Kind) Emoji() string {
	switch k {
	case KindSuccess:
		return "✅"
	case KindWarn:
		return "⚠️ "
	case KindSkip:
		return "⏭️ "
	case KindError:
		return "❌"
	case KindValidate:
		return "🧩"
	case KindBook:
		return "📘"
	case KindLang:
		return "🌐"
	case KindDelete:
		return "🗑️ "
	case KindDone:
		return "🚀"
	case KindOutput:
		return "📁"
	case KindLog:
		return "📄"
	default:
		return "ℹ️ "
	}
}

func (k Kind) level() slog.Level {
	switch k {
	case KindWarn:
		return slog.LevelWarn
	case KindError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (k Kind) color() string {
	switch k {
	case KindSuccess:
		return ansiGreen
	case KindWarn:
		return ansiYellow
	case KindError:
		return ansiRed
	case KindSkip, KindInfo:
		return ansiBlue
	default:
		return ""
	}
}

// Status prints one line per pipeline step and mirrors it into a logger.
type Status struct {
	mu       sync.Mutex
	w        io.Writer
	logger   *slog.Logger
	colorize bool
	quiet    bool
}

// NewStatus creates a status printer writing to w. Lines are colored only
// when w is a terminal. In quiet mode only errors are printed; the logger
// still receives every line.
func NewStatus(w io.Writer, logger *slog.Logger, quiet bool) *Status {
	if logger == nil {
		logger = NewNop()
	}
	return &Status{
		w:        w,
		logger:   logger,
		colorize: ShouldColorize(w),
		quiet:    quiet,
	}
}

// NopStatus returns a Status that prints and logs nothing.
func NopStatus() *Status {
	return NewStatus(io.Discard, nil, true)
}

// Printf prints a status line of the given kind.
func (s *Status) Printf(kind Kind, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.logger.Log(context.Background(), kind.level(), msg)

	if s.quiet && kind != KindError {
		return
	}

	line := kind.Emoji() + " " + msg
	if s.colorize {
		if c := kind.color(); c != "" {
			line = c + line + ansiReset
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, line)
}

// Logger returns the logger status lines are mirrored to.
func (s *Status) Logger() *slog.Logger {
	return s.logger
}

// ShouldColorize reports whether w is a terminal.
func ShouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
