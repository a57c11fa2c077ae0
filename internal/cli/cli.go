// Package cli implements the nacplan command-line interface.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nacplan/pkg/buildinfo"
	"github.com/matzehuels/nacplan/pkg/cache"
	"github.com/matzehuels/nacplan/pkg/pipeline"
	"github.com/matzehuels/nacplan/pkg/policy"
	"github.com/matzehuels/nacplan/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "nacplan"

	// policyFileName is the policy file looked up in the working directory
	// when --policy is not given.
	policyFileName = "nacplan.toml"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "nacplan sizes fire alarm notification circuits, power supplies and cabinets",
		Long: `nacplan turns a list of notification appliances into a circuit plan: it groups
devices by level, packs them into notification appliance circuits under the
current and unit-load limits, balances and merges circuits, assigns them to
power supplies, sizes the cabinet and reports every limit it checked.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	root.AddCommand(c.planCommand())
	root.AddCommand(c.reportCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.policyCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(noCache bool) (*pipeline.Runner, error) {
	cache, err := newCache(noCache)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(cache, nil, c.Logger), nil
}

func newCache(noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// newPlanStore opens the local plan history.
func newPlanStore() (*store.FileStore, error) {
	dir, err := plansDir()
	if err != nil {
		return nil, fmt.Errorf("get plans dir: %w", err)
	}
	return store.NewFileStore(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/nacplan/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// plansDir returns the plan history directory (~/.config/nacplan/plans/).
func plansDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "plans"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "plans"), nil
}

// =============================================================================
// Options Helpers
// =============================================================================

// loadPolicy reads the policy file at path. An empty path falls back to
// nacplan.toml in the working directory and then to the built-in defaults.
func loadPolicy(path string) (policy.Policy, string, error) {
	if path == "" {
		if _, err := os.Stat(policyFileName); err != nil {
			return policy.Defaults(), "", nil
		}
		path = policyFileName
	}
	p, err := policy.Load(path)
	if err != nil {
		return policy.Policy{}, "", fmt.Errorf("load policy %s: %w", path, err)
	}
	return p, path, nil
}

// parseFormats parses a comma-separated format string into a slice.
func parseFormats(s string) []string {
	if s == "" {
		return []string{pipeline.FormatJSON}
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
