package main

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/logging"
	"github.com/alnah/go-bookexport/internal/watch"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Export again on every manuscript change",
		Long:  watchLong,
		Args:  cobra.NoArgs,
		RunE: ctx.action(func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd.Context(), ctx, &flags)
		}),
	}

	addExportFlags(cmd.Flags(), &flags)
	cmd.MarkFlagsMutuallyExclusive("skip-images", "keep-relative-paths")
	return cmd
}

// runWatch exports once, then on every change until ctx is canceled.
// Export errors are reported and the watch goes on.
func runWatch(ctx context.Context, cmdCtx *commandContext, flags *exportFlags) error {
	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return err
	}
	// Fail fast on bad flags instead of on every rebuild.
	if _, err := exportOptions(flags, cmdCtx.envCfg, cfg); err != nil {
		return err
	}
	if _, _, err := parseTimeout(flags.run.timeout); err != nil {
		return err
	}
	paths, err := bookexport.NewPaths(cmdCtx.rootDir(), cfg.Paths)
	if err != nil {
		return err
	}

	status := logging.NewStatus(cmdCtx.env.Stdout, nil, cmdCtx.flags.quiet)
	build := func() {
		if err := runExport(ctx, cmdCtx, flags); err != nil && !errors.Is(err, context.Canceled) {
			reportError(cmdCtx.env.Stderr, err)
		}
	}

	build()
	status.Printf(logging.KindInfo, "Watching %s (Ctrl-C to stop)", paths.Root)

	dirs := []string{paths.Manuscript, paths.Assets, filepath.Dir(paths.Metadata)}
	err = watch.Run(ctx, dirs, watch.Options{Ignore: outputIgnore(paths)}, func(ctx context.Context, changed []string) {
		status.Printf(logging.KindInfo, "%d file(s) changed, exporting", len(changed))
		build()
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// outputIgnore drops events under the output and backup directories, which
// may live inside a watched directory.
func outputIgnore(paths bookexport.Paths) func(string) bool {
	prefixes := []string{paths.Output, paths.Backup, paths.Log, paths.Lock}
	return func(path string) bool {
		for _, p := range prefixes {
			if path == p || strings.HasPrefix(path, p+string(filepath.Separator)) {
				return true
			}
		}
		return false
	}
}
