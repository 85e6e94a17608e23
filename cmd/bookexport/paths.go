package main

import (
	"github.com/spf13/cobra"

	"github.com/alnah/go-bookexport/internal/pipeline"
)

func newPathsCommand(ctx *commandContext) *cobra.Command {
	var toAbsolute, toRelative bool

	cmd := &cobra.Command{
		Use:   "paths",
		Short: "Rewrite manuscript image paths",
		Long:  pathsLong,
		Args:  cobra.NoArgs,
		RunE: ctx.action(func(cmd *cobra.Command, args []string) error {
			direction := pipeline.ToAbsolute
			if toRelative {
				direction = pipeline.ToRelative
			}

			sess, err := ctx.openSession(false)
			if err != nil {
				return err
			}
			defer sess.Close()

			_, err = sess.exporter.ConvertImagePaths(direction)
			return err
		}),
	}

	cmd.Flags().BoolVar(&toAbsolute, "to-absolute", false, "make image paths absolute")
	cmd.Flags().BoolVar(&toRelative, "to-relative", false, "make image paths relative again")
	cmd.MarkFlagsMutuallyExclusive("to-absolute", "to-relative")
	cmd.MarkFlagsOneRequired("to-absolute", "to-relative")
	return cmd
}
