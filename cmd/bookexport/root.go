package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	bookexport "github.com/alnah/go-bookexport"
)

func newRootCommand(env *Environment) (*cobra.Command, *commandContext) {
	var flags commonFlags
	ctx := newCommandContext(env, &flags)

	rootCmd := &cobra.Command{
		Use:           "bookexport",
		Short:         "Export a Markdown book with Pandoc",
		Long:          rootLong,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
	}
	rootCmd.SetOut(env.Stdout)
	rootCmd.SetErr(env.Stderr)
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", bookexport.ErrUsage, err)
	})

	addCommonFlags(rootCmd.PersistentFlags(), &flags)

	rootCmd.AddCommand(newExportCommand(ctx))
	rootCmd.AddCommand(newPrintCommand(ctx))
	rootCmd.AddCommand(newPathsCommand(ctx))
	rootCmd.AddCommand(newTOCCommand(ctx))
	rootCmd.AddCommand(newValidateCommand(ctx))
	rootCmd.AddCommand(newPreviewCommand(ctx))
	rootCmd.AddCommand(newWatchCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newVersionCommand())
	registerCompletions(rootCmd)

	return rootCmd, ctx
}

// execute runs the command line args (without the program name). Errors
// raised by cobra before a command runs are reported as usage errors.
func execute(ctx context.Context, args []string, env *Environment) error {
	rootCmd, cmdCtx := newRootCommand(env)
	rootCmd.SetArgs(withDefaultCommand(rootCmd, args))

	err := rootCmd.ExecuteContext(ctx)
	if err != nil && !cmdCtx.started && exitCodeFor(err) == ExitGeneral {
		return fmt.Errorf("%w: %w", bookexport.ErrUsage, err)
	}
	return err
}

// passthroughArgs are handled by cobra itself and never mean "export".
var passthroughArgs = map[string]bool{
	"help":             true,
	"-h":               true,
	"--help":           true,
	"--version":        true,
	"completion":       true,
	"__complete":       true,
	"__completeNoDesc": true,
}

// withDefaultCommand prepends "export" when args do not name a subcommand,
// so `bookexport --format pdf` runs an export.
func withDefaultCommand(rootCmd *cobra.Command, args []string) []string {
	if len(args) > 0 && passthroughArgs[args[0]] {
		return args
	}
	if cmd, _, err := rootCmd.Find(args); err == nil && cmd != rootCmd {
		return args
	}
	for _, arg := range args {
		if passthroughArgs[arg] && strings.HasPrefix(arg, "-") {
			return args
		}
	}
	return append([]string{"export"}, args...)
}
