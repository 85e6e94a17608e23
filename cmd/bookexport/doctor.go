package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/config"
	"github.com/alnah/go-bookexport/internal/fileutil"
)

// doctorResult holds all diagnostic information.
type doctorResult struct {
	Status   string      `json:"status"` // "ready", "warnings", "errors"
	Tools    []toolInfo  `json:"tools"`
	Project  projectInfo `json:"project"`
	Env      envInfo     `json:"environment"`
	System   systemInfo  `json:"system"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

// toolInfo holds one external tool detection result.
type toolInfo struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Found    bool   `json:"found"`
	Path     string `json:"path,omitempty"`
	Version  string `json:"version,omitempty"`
}

// projectInfo holds the project layout checks.
type projectInfo struct {
	Root          string `json:"root"`
	Config        string `json:"config,omitempty"`
	Manuscript    bool   `json:"manuscript"`
	MarkdownFiles int    `json:"markdown_files"`
	Metadata      bool   `json:"metadata"`
	Pyproject     bool   `json:"pyproject"`
	TOC           bool   `json:"toc"`
	Assets        bool   `json:"assets"`
}

// envInfo holds environment detection results.
type envInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
}

// systemInfo holds system check results.
type systemInfo struct {
	TempWritable bool `json:"temp_writable"`
}

const doctorToolTimeout = 5 * time.Second

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "doctor",
		Short:       "Check tools and project layout",
		Long:        doctorLong,
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: ctx.action(func(cmd *cobra.Command, args []string) error {
			result := runDoctor(cmd.Context(), ctx)

			if jsonOutput {
				enc := json.NewEncoder(ctx.env.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return err
				}
			} else {
				printDoctorResult(ctx.env.Stdout, result)
			}

			if result.Status == "errors" {
				return &exitError{code: ExitGeneral}
			}
			return nil
		}),
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print the result as JSON")
	return cmd
}

// runDoctor performs all diagnostic checks. A broken config is reported,
// not returned, so the remaining checks still run on the defaults.
func runDoctor(ctx context.Context, cmdCtx *commandContext) *doctorResult {
	result := &doctorResult{
		Status: "ready",
		Env:    envInfo{OS: runtime.GOOS, Arch: runtime.GOARCH},
	}

	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Config: %v", err))
		cfg = config.DefaultConfig()
	}
	result.Project.Config = cmdCtx.configPath

	checkTools(ctx, cmdCtx.env, cfg, result)
	checkProject(cmdCtx.rootDir(), cfg, result)
	checkEnvironment(result)
	checkSystem(result)

	if len(result.Errors) > 0 {
		result.Status = "errors"
	} else if len(result.Warnings) > 0 {
		result.Status = "warnings"
	}
	return result
}

// checkTools detects Pandoc, the PDF engine and the optional validators.
func checkTools(ctx context.Context, env *Environment, cfg *config.Config, result *doctorResult) {
	lookPath := env.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	runner := env.Runner
	if runner == nil {
		runner = &bookexport.ExecRunner{}
	}

	tools := []struct {
		name     string
		required bool
		args     []string
		missing  string
	}{
		{cfg.Pandoc.Binary, true, []string{"--version"}, "Pandoc not found. Install it from https://pandoc.org/installing.html or set BOOKEXPORT_PANDOC"},
		{cfg.PDF.Engine, false, []string{"--version"}, fmt.Sprintf("PDF engine %s not found; PDF export will fail", cfg.PDF.Engine)},
		{"epubcheck", false, []string{"--version"}, "epubcheck not found; EPUB validation runs the structural checks only"},
		{"pdfinfo", false, []string{"-v"}, "pdfinfo not found; PDF validation checks the header only"},
	}

	for _, tool := range tools {
		info := toolInfo{Name: tool.name, Required: tool.required}
		path, err := lookPath(tool.name)
		if err != nil {
			if tool.required {
				result.Errors = append(result.Errors, tool.missing)
			} else {
				result.Warnings = append(result.Warnings, tool.missing)
			}
			result.Tools = append(result.Tools, info)
			continue
		}
		info.Found = true
		info.Path = path
		info.Version = toolVersion(ctx, runner, path, tool.args...)
		result.Tools = append(result.Tools, info)
	}
}

// toolVersion returns the first non-empty output line, or "".
func toolVersion(ctx context.Context, runner bookexport.CommandRunner, path string, args ...string) string {
	ctx, cancel := context.WithTimeout(ctx, doctorToolTimeout)
	defer cancel()

	stdout, stderr, err := runner.Run(ctx, path, args...)
	if err != nil && stdout == "" && stderr == "" {
		return ""
	}
	// pdfinfo -v prints to stderr.
	for _, out := range []string{stdout, stderr} {
		for _, line := range strings.Split(out, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				return line
			}
		}
	}
	return ""
}

// checkProject verifies the layout an export reads.
func checkProject(root string, cfg *config.Config, result *doctorResult) {
	result.Project.Root = root
	paths, err := bookexport.NewPaths(root, cfg.Paths)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Project root: %v", err))
		return
	}

	result.Project.Manuscript = fileutil.DirExists(paths.Manuscript)
	if !result.Project.Manuscript {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Manuscript directory not found: %s", paths.Manuscript))
	} else {
		files, err := bookexport.CollectMarkdownFiles(paths.Manuscript, bookexport.DefaultSectionOrder())
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Listing manuscript: %v", err))
		}
		result.Project.MarkdownFiles = len(files)
		if len(files) == 0 {
			result.Warnings = append(result.Warnings, "No Markdown files in the default section order")
		}
	}

	result.Project.Metadata = fileutil.FileExists(paths.Metadata)
	if !result.Project.Metadata {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Metadata not found: %s (a placeholder is generated on export)", paths.Metadata))
	}
	result.Project.Pyproject = fileutil.FileExists(paths.Pyproject)
	if !result.Project.Pyproject {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("pyproject.toml not found: output is named after %q", bookexport.DefaultProjectName))
	}
	result.Project.TOC = fileutil.FileExists(paths.TOC)
	result.Project.Assets = fileutil.DirExists(paths.Assets)
}

// checkEnvironment detects container and CI environments.
func checkEnvironment(result *doctorResult) {
	result.Env.Container, result.Env.ContainerHint = isContainer()

	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}
	for _, v := range ciVars {
		if os.Getenv(v) != "" {
			result.Env.CI = true
			break
		}
	}
}

// isContainer detects if running in a container environment.
// Returns (isContainer, hint) where hint indicates which signal was detected.
func isContainer() (bool, string) {
	if os.Getenv(envPrefix+"CONTAINER") == "1" {
		return true, envPrefix + "CONTAINER=1"
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true, "/.dockerenv"
	}
	if v := os.Getenv("container"); v != "" {
		return true, "container=" + v
	}
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkSystem verifies the temp directory Pandoc writes to.
func checkSystem(result *doctorResult) {
	f, err := os.CreateTemp("", "bookexport-doctor-*")
	if err != nil {
		result.Errors = append(result.Errors,
			fmt.Sprintf("Temp directory not writable: %s", os.TempDir()))
		return
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	result.System.TempWritable = true
}

// printDoctorResult outputs human-readable diagnostic results.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "bookexport doctor")
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Tools")
	for _, t := range r.Tools {
		switch {
		case t.Found && t.Version != "":
			fmt.Fprintf(w, "  [OK] %s: %s (%s)\n", t.Name, t.Path, t.Version)
		case t.Found:
			fmt.Fprintf(w, "  [OK] %s: %s\n", t.Name, t.Path)
		case t.Required:
			fmt.Fprintf(w, "  [ERROR] %s: not found\n", t.Name)
		default:
			fmt.Fprintf(w, "  [WARN] %s: not found\n", t.Name)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Project")
	fmt.Fprintf(w, "  [OK] Root: %s\n", r.Project.Root)
	if r.Project.Config != "" {
		fmt.Fprintf(w, "  [OK] Config: %s\n", r.Project.Config)
	} else {
		fmt.Fprintln(w, "  [OK] Config: defaults")
	}
	if r.Project.Manuscript {
		fmt.Fprintf(w, "  [OK] Manuscript: %d Markdown files\n", r.Project.MarkdownFiles)
	} else {
		fmt.Fprintln(w, "  [ERROR] Manuscript: missing")
	}
	printCheck(w, "Metadata", r.Project.Metadata)
	printCheck(w, "pyproject.toml", r.Project.Pyproject)
	printCheck(w, "TOC", r.Project.TOC)
	printCheck(w, "Assets", r.Project.Assets)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Environment")
	fmt.Fprintf(w, "  [OK] Platform: %s/%s\n", r.Env.OS, r.Env.Arch)
	if r.Env.Container {
		fmt.Fprintf(w, "  [OK] Container: detected (%s)\n", r.Env.ContainerHint)
	}
	if r.Env.CI {
		fmt.Fprintln(w, "  [OK] CI: detected")
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "System")
	if r.System.TempWritable {
		fmt.Fprintln(w, "  [OK] Temp directory: writable")
	} else {
		fmt.Fprintln(w, "  [ERROR] Temp directory: not writable")
	}
	fmt.Fprintln(w)

	if len(r.Warnings) > 0 {
		fmt.Fprintln(w, "Warnings:")
		for _, warn := range r.Warnings {
			fmt.Fprintf(w, "  [WARN] %s\n", warn)
		}
		fmt.Fprintln(w)
	}

	if len(r.Errors) > 0 {
		fmt.Fprintln(w, "Errors:")
		for _, err := range r.Errors {
			fmt.Fprintf(w, "  [ERROR] %s\n", err)
		}
		fmt.Fprintln(w)
	}

	switch r.Status {
	case "ready":
		fmt.Fprintln(w, "Status: Ready to export")
	case "warnings":
		fmt.Fprintln(w, "Status: Ready with warnings")
	case "errors":
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}

func printCheck(w io.Writer, label string, ok bool) {
	if ok {
		fmt.Fprintf(w, "  [OK] %s: found\n", label)
	} else {
		fmt.Fprintf(w, "  [WARN] %s: missing\n", label)
	}
}
