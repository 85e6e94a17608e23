package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/config"
	"github.com/alnah/go-bookexport/internal/fileutil"
	"github.com/alnah/go-bookexport/internal/logging"
	"github.com/alnah/go-bookexport/internal/yamlutil"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, check or create bookexport.yaml",
	}
	cmd.AddCommand(newConfigShowCommand(ctx))
	cmd.AddCommand(newConfigValidateCommand(ctx))
	cmd.AddCommand(newConfigInitCommand(ctx))
	return cmd
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, the config file and BOOKEXPORT_* variables.",
		Args:  cobra.NoArgs,
		RunE: ctx.action(func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			data, err := yamlutil.Marshal(cfg)
			if err != nil {
				return err
			}
			source := ctx.configPath
			if source == "" {
				source = "defaults"
			}
			fmt.Fprintf(ctx.env.Stdout, "# source: %s\n%s", source, data)
			return nil
		}),
	}
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration",
		Args:  cobra.NoArgs,
		RunE: ctx.action(func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			status := logging.NewStatus(ctx.env.Stdout, nil, ctx.flags.quiet)
			if ctx.configPath == "" {
				status.Printf(logging.KindSuccess, "Configuration valid (defaults)")
			} else {
				status.Printf(logging.KindSuccess, "Configuration valid: %s", ctx.configPath)
			}
			return nil
		}),
	}
}

func newConfigInitCommand(ctx *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Write bookexport.yaml with the default settings",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: ctx.action(func(cmd *cobra.Command, args []string) error {
			root := ctx.rootDir()
			if !fileutil.DirExists(root) {
				return fmt.Errorf("%w: %s", bookexport.ErrProjectNotFound, root)
			}
			path := filepath.Join(root, config.ProjectConfigName+".yaml")
			if existing := config.ProjectConfigPath(root); existing != "" && !overwrite {
				return fmt.Errorf("%w: %s already exists (use --overwrite)", bookexport.ErrUsage, existing)
			}

			data, err := yamlutil.Marshal(config.DefaultConfig())
			if err != nil {
				return err
			}
			if err := fileutil.WriteFileAtomic(path, data); err != nil {
				return err
			}
			logging.NewStatus(ctx.env.Stdout, nil, ctx.flags.quiet).
				Printf(logging.KindSuccess, "Wrote %s", path)
			return nil
		}),
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace an existing config file")
	return cmd
}
