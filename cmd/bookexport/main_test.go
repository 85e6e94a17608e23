package main

// Notes:
// - hasVerboseFlag: only the pre-parse scan used for the maxprocs logger
// - help: every command carries a short description, and --help goes
//   through cobra without running an export
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// ---------------------------------------------------------------------------
// TestHasVerboseFlag - Pre-parse verbose detection
// ---------------------------------------------------------------------------

func TestHasVerboseFlag(t *testing.T) {
	t.Parallel()
	tests := []struct {
		args []string
		want bool
	}{
		{nil, false},
		{[]string{"-v"}, true},
		{[]string{"export", "--verbose"}, true},
		{[]string{"--format", "pdf"}, false},
		{[]string{"--", "-v"}, false},
	}

	for _, tt := range tests {
		if got := hasVerboseFlag(tt.args); got != tt.want {
			t.Errorf("hasVerboseFlag(%v) = %v, want %v", tt.args, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// TestHelp - Command help
// ---------------------------------------------------------------------------

func TestHelp_EveryCommandHasShort(t *testing.T) {
	t.Parallel()

	env, _, _ := testEnv(&mockRunner{})
	rootCmd, _ := newRootCommand(env)

	var walk func(cmd *cobra.Command)
	walk = func(cmd *cobra.Command) {
		if cmd.Short == "" && !cmd.Hidden {
			t.Errorf("command %q has no short description", cmd.CommandPath())
		}
		for _, sub := range cmd.Commands() {
			walk(sub)
		}
	}
	walk(rootCmd)
}

func TestHelp_Output(t *testing.T) {
	t.Parallel()

	runner := &mockRunner{}
	env, stdout, _ := testEnv(runner)

	if err := run(t, env, "--help"); err != nil {
		t.Fatalf("--help error = %v", err)
	}
	out := stdout.String()
	for _, want := range []string{"Exit codes:", "export", "paths", "validate", "--root"} {
		if !strings.Contains(out, want) {
			t.Errorf("root help missing %q", want)
		}
	}
	if runner.count() != 0 {
		t.Error("--help should not run an export")
	}
}
