package main

import (
	"strings"

	"github.com/spf13/cobra"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/logging"
)

// Print build defaults.
const (
	printPreset          = "print-version"
	printDefaultFormat   = "epub"
	printDefaultBookType = bookexport.Paperback
)

// printBookType keeps paperback and hardcover; anything else falls back to
// paperback. The second result reports a fallback.
func printBookType(s string) (bookexport.BookType, bool) {
	switch bt := bookexport.BookType(strings.ToLower(strings.TrimSpace(s))); bt {
	case bookexport.Paperback, bookexport.Hardcover:
		return bt, false
	case "":
		return printDefaultBookType, false
	default:
		return printDefaultBookType, true
	}
}

type printFlags struct {
	bookType string
	format   string
	export   exportFlags
}

func newPrintCommand(ctx *commandContext) *cobra.Command {
	var flags printFlags

	cmd := &cobra.Command{
		Use:   "print",
		Short: "Build the print version (EPUB)",
		Long:  printLong,
		Args:  cobra.NoArgs,
		RunE: ctx.action(func(cmd *cobra.Command, args []string) error {
			bt, fellBack := printBookType(flags.bookType)
			if fellBack {
				status := logging.NewStatus(ctx.env.Stderr, nil, ctx.flags.quiet)
				status.Printf(logging.KindWarn, "Invalid print book type '%s'; using '%s'.", flags.bookType, bt)
			}

			ef := flags.export
			ef.selection.bookType = string(bt)
			ef.selection.formats = flags.format
			if ef.output.outputFile == "" {
				ef.output.outputFile = printPreset
			}
			return runExport(cmd.Context(), ctx, &ef)
		}),
	}

	fs := cmd.Flags()
	fs.StringVarP(&flags.bookType, "book-type", "b", string(printDefaultBookType), "print book type: paperback, hardcover")
	fs.StringVarP(&flags.format, "export-format", "f", printDefaultFormat, "formats to build")
	fs.StringVar(&flags.export.selection.order, "order", "", "comma-separated section order, relative to the manuscript")
	fs.StringVarP(&flags.export.selection.lang, "lang", "l", "", "document language (overrides metadata)")
	addOutputFlags(fs, &flags.export.output)
	addImageFlags(fs, &flags.export.images)
	addRunFlags(fs, &flags.export.run)
	cmd.MarkFlagsMutuallyExclusive("skip-images", "keep-relative-paths")
	return cmd
}
