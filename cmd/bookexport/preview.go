package main

import (
	"fmt"

	"github.com/spf13/cobra"

	bookexport "github.com/alnah/go-bookexport"
)

type previewFlags struct {
	order    string
	bookType string
	lang     string
	style    string
	output   string
	tocTitle string
	tocDepth int
	noTOC    bool
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var flags previewFlags

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Render an HTML preview without Pandoc",
		Long:  previewLong,
		Args:  cobra.NoArgs,
		RunE: ctx.action(func(cmd *cobra.Command, args []string) error {
			opts, err := previewOptions(&flags)
			if err != nil {
				return err
			}

			sess, err := ctx.openSession(false)
			if err != nil {
				return err
			}
			defer sess.Close()

			_, err = sess.exporter.Preview(cmd.Context(), opts)
			return err
		}),
	}

	fs := cmd.Flags()
	fs.StringVar(&flags.order, "order", "", "comma-separated section order, relative to the manuscript")
	fs.StringVarP(&flags.bookType, "book-type", "b", "", "book type selecting the section order")
	fs.StringVarP(&flags.lang, "lang", "l", "", "document language (overrides metadata)")
	fs.StringVar(&flags.style, "style", "", "style name from assets/styles or built-in")
	fs.StringVarP(&flags.output, "output", "o", "", "HTML file, relative to the output directory")
	fs.StringVar(&flags.tocTitle, "toc-title", "", "table of contents heading")
	fs.IntVar(&flags.tocDepth, "toc-depth", 0, "max heading depth in the TOC (1-6)")
	fs.BoolVar(&flags.noTOC, "no-toc", false, "do not insert a table of contents")
	cmd.MarkFlagsMutuallyExclusive("toc-depth", "no-toc")
	return cmd
}

func previewOptions(f *previewFlags) (bookexport.PreviewOptions, error) {
	bt, err := bookexport.ParseBookType(f.bookType)
	if err != nil {
		return bookexport.PreviewOptions{}, err
	}
	if f.tocDepth < 0 || f.tocDepth > 6 {
		return bookexport.PreviewOptions{}, fmt.Errorf("%w: --toc-depth must be between 1 and 6, got %d", bookexport.ErrUsage, f.tocDepth)
	}

	opts := bookexport.PreviewOptions{
		SectionOrder: bookexport.ParseSectionOrder(f.order),
		BookType:     bt,
		Lang:         f.lang,
		Style:        f.style,
		Output:       f.output,
		TOCTitle:     f.tocTitle,
		TOCDepth:     f.tocDepth,
	}
	if f.noTOC {
		opts.TOCDepth = -1
	}
	return opts, nil
}
