package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/logging"
	"github.com/alnah/go-bookexport/internal/validate"
)

// validateTypes maps --type values to validator formats.
var validateTypes = map[string]string{
	"epub":     "epub",
	"pdf":      "pdf",
	"docx":     "docx",
	"md":       "markdown",
	"markdown": "markdown",
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var fileType string
	var requireTools bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate an exported file",
		Long:  validateLong,
		Args:  cobra.ExactArgs(1),
		RunE: ctx.action(func(cmd *cobra.Command, args []string) error {
			path := args[0]
			format, err := validateFormat(path, fileType)
			if err != nil {
				return err
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runner := ctx.env.Runner
			if runner == nil {
				runner = &bookexport.ExecRunner{}
			}
			opts := []validate.Option{
				validate.WithRequireTools(requireTools),
				validate.WithMinCoverHeight(cfg.EPUB.MinCoverHeight),
			}
			if ctx.env.LookPath != nil {
				opts = append(opts, validate.WithLookPath(ctx.env.LookPath))
			}

			result := validate.New(runner, opts...).Validate(cmd.Context(), format, path)
			status := logging.NewStatus(ctx.env.Stdout, nil, ctx.flags.quiet)
			bookexport.PrintValidationResult(status, result)

			if !result.OK() {
				return &exitError{code: int(result.Code)}
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&fileType, "type", "", "file type: epub, pdf, docx, md (default: from extension)")
	cmd.Flags().BoolVar(&requireTools, "require-tools", false, "fail when epubcheck or pdfinfo is missing")
	return cmd
}

// validateFormat resolves the validator format from --type or the extension.
func validateFormat(path, fileType string) (string, error) {
	if fileType != "" {
		format, ok := validateTypes[strings.ToLower(fileType)]
		if !ok {
			return "", fmt.Errorf("%w: unknown type %q (must be epub, pdf, docx or md)", bookexport.ErrUsage, fileType)
		}
		return format, nil
	}
	format, ok := validate.DetectFormat(path)
	if !ok {
		return "", fmt.Errorf("%w: cannot infer the type of %s from %q; use --type", bookexport.ErrUsage, path, filepath.Ext(path))
	}
	return format, nil
}

func validateTypeNames() []string {
	return []string{"epub", "pdf", "docx", "md"}
}
