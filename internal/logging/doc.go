// Package logging owns the two outputs of an export run: the append-only run
// log (structured slog records interleaved with raw subprocess output) and the
// one-line emoji status shown on the terminal.
//
// Every status line is mirrored into the run log, so export.log alone tells
// the full story of a run.
package logging
