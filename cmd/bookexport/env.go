package main

import (
	"io"
	"os"
	"os/exec"
	"time"

	bookexport "github.com/alnah/go-bookexport"
)

// Environment holds injectable dependencies for testability.
// Includes I/O, time, tool discovery and command execution.
type Environment struct {
	Now      func() time.Time
	Stdout   io.Writer
	Stderr   io.Writer
	LookPath func(string) (string, error)
	// Runner executes Pandoc and the validators. Nil uses an ExecRunner
	// teeing tool output into the run log.
	Runner bookexport.CommandRunner
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Now:      time.Now,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		LookPath: exec.LookPath,
	}
}
