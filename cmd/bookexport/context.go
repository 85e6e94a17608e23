package main

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	bookexport "github.com/alnah/go-bookexport"
	"github.com/alnah/go-bookexport/internal/config"
	"github.com/alnah/go-bookexport/internal/logging"
)

// commandContext is shared by every command: it resolves the project root
// and loads the configuration once.
type commandContext struct {
	env   *Environment
	flags *commonFlags

	configOnce sync.Once
	config     *config.Config
	configPath string // "" when the defaults apply
	envCfg     *envConfig
	configErr  error

	// started is set when a command's RunE is entered. Errors returned
	// before that come from cobra's flag and argument checks.
	started bool
}

func newCommandContext(env *Environment, flags *commonFlags) *commandContext {
	return &commandContext{env: env, flags: flags}
}

// rootDir returns the absolute project root.
func (c *commandContext) rootDir() string {
	root := strings.TrimSpace(c.flags.root)
	if root == "" {
		root = "."
	}
	if abs, err := filepath.Abs(root); err == nil {
		return abs
	}
	return root
}

// ensureConfig loads <root>/.env, the BOOKEXPORT_* variables and the config
// file: --config, then BOOKEXPORT_CONFIG, then bookexport.yaml in the root.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		root := c.rootDir()
		if err := loadDotEnv(root); err != nil {
			c.configErr = err
			return
		}
		warnUnknownEnvVars(c.env.Stderr)
		c.envCfg = loadEnvConfig()

		path := strings.TrimSpace(c.flags.config)
		if path == "" {
			path = c.envCfg.ConfigPath
		}

		var cfg *config.Config
		var err error
		if path != "" {
			cfg, err = config.LoadConfig(path)
			c.configPath = path
		} else {
			cfg, _, err = config.LoadProjectConfig(root)
			c.configPath = config.ProjectConfigPath(root)
		}
		if err != nil {
			c.configErr = err
			return
		}

		applyEnvConfig(c.envCfg, cfg)
		if err := cfg.Validate(); err != nil {
			c.configErr = fmt.Errorf("after applying %s* variables: %w", envPrefix, err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// action wraps a RunE so errors returned before it runs can be told apart.
func (c *commandContext) action(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c.started = true
		return fn(cmd, args)
	}
}

// session is one command run on a project.
type session struct {
	cfg      *config.Config
	paths    bookexport.Paths
	runLog   *logging.RunLog
	status   *logging.Status
	exporter *bookexport.Exporter
}

// openSession resolves the project layout, opens the run log (not for dry
// runs) and builds an Exporter. Callers must Close the session.
func (c *commandContext) openSession(dryRun bool, opts ...bookexport.Option) (*session, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	paths, err := bookexport.NewPaths(c.rootDir(), cfg.Paths)
	if err != nil {
		return nil, err
	}

	runLog := logging.Discard()
	if !dryRun {
		runLog, err = logging.Open(paths.Log, c.logLevel())
		if err != nil {
			return nil, err
		}
	}
	status := logging.NewStatus(c.env.Stdout, runLog.Logger(), c.flags.quiet)

	base := []bookexport.Option{
		bookexport.WithConfig(cfg),
		bookexport.WithRunLog(runLog),
		bookexport.WithStatus(status),
	}
	if c.env.Now != nil {
		base = append(base, bookexport.WithClock(c.env.Now))
	}
	if c.env.LookPath != nil {
		base = append(base, bookexport.WithLookPath(c.env.LookPath))
	}
	if c.env.Runner != nil {
		base = append(base, bookexport.WithRunner(c.env.Runner))
	}

	return &session{
		cfg:      cfg,
		paths:    paths,
		runLog:   runLog,
		status:   status,
		exporter: bookexport.NewExporter(paths, append(base, opts...)...),
	}, nil
}

func (s *session) Close() error {
	return s.runLog.Close()
}

func (c *commandContext) logLevel() slog.Level {
	if c.flags.verbose {
		return logging.ParseLevel("debug")
	}
	return logging.ParseLevel("info")
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
