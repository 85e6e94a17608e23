package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/logging"
	"github.com/alnah/go-bookexport/internal/pipeline"
)

func newTOCCommand(ctx *commandContext) *cobra.Command {
	var mode, ext, tocPath string

	cmd := &cobra.Command{
		Use:   "toc",
		Short: "Normalize the TOC links",
		Long:  tocLong,
		Args:  cobra.NoArgs,
		RunE: ctx.action(func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession(false)
			if err != nil {
				return err
			}
			defer sess.Close()

			if mode == "" {
				mode = sess.cfg.TOC.Mode
			}
			if ext == "" {
				ext = sess.cfg.TOC.Ext
			}
			path := sess.paths.TOC
			if tocPath != "" {
				path = tocPath
				if !filepath.IsAbs(path) {
					path = filepath.Join(sess.paths.Root, path)
				}
			}

			release, err := bookexport.AcquireLock(sess.paths.Lock)
			if err != nil {
				return err
			}
			defer release()

			changed, err := pipeline.NormalizeTOCFile(path, mode, ext)
			if err != nil {
				return err
			}
			if changed {
				sess.status.Printf(logging.KindSuccess, "Normalized TOC links (%s): %s", mode, path)
			} else {
				sess.status.Printf(logging.KindInfo, "TOC links already normalized: %s", path)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&mode, "mode", "", "strip-to-anchors or replace-ext (default from config)")
	cmd.Flags().StringVar(&ext, "ext", "", "link extension for replace-ext (default from config)")
	cmd.Flags().StringVar(&tocPath, "toc", "", "TOC file, relative to the project root")
	return cmd
}
