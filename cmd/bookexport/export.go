package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/validate"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Build the book with Pandoc",
		Long:    exportLong,
		Example: exportExample,
		Args:    cobra.NoArgs,
		RunE: ctx.action(func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), ctx, &flags)
		}),
	}

	addExportFlags(cmd.Flags(), &flags)
	cmd.MarkFlagsMutuallyExclusive("skip-images", "keep-relative-paths")
	return cmd
}

// runExport runs one export and waits for the background validation.
func runExport(ctx context.Context, cmdCtx *commandContext, flags *exportFlags) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	opts, err := exportOptions(flags, cmdCtx.envCfg, cfg)
	if err != nil {
		return err
	}
	timeout, hasTimeout, err := parseTimeout(flags.run.timeout)
	if err != nil {
		return err
	}

	var extra []bookexport.Option
	if hasTimeout {
		extra = append(extra, bookexport.WithTimeout(timeout))
	}
	sess, err := cmdCtx.openSession(opts.DryRun, extra...)
	if err != nil {
		return err
	}
	defer sess.Close()

	report, err := sess.exporter.Export(ctx, opts)
	if err != nil {
		return err
	}
	results := report.Validation.Wait()

	if !cmdCtx.flags.quiet && !report.DryRun {
		printSummary(cmdCtx.env.Stdout, report, results)
	}
	return nil
}

// printSummary prints the build summary table.
func printSummary(w io.Writer, report *bookexport.Report, results []validate.Result) {
	if len(report.Artifacts) == 0 && len(report.Skipped) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, renderSummary(report, results))
}
