package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/pnpmatch/internal/config"
	"github.com/standardbeagle/pnpmatch/internal/debug"
	"github.com/standardbeagle/pnpmatch/internal/version"
)

// loadConfigWithOverrides loads configuration and applies CLI flag overrides
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	configPath := c.String("config")

	root := c.String("root")
	if root != "" {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
		}
		root = absRoot
	}

	cfg, err := config.LoadWithRoot(configPath, root)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Apply CLI flag overrides
	if dir := c.String("db-dir"); dir != "" {
		cfg.Store.Dir = dir
	}
	if c.IsSet("parallel") {
		cfg.Batch.Parallel = c.Bool("parallel")
	}
	if c.IsSet("workers") {
		cfg.Batch.Workers = c.Int("workers")
		cfg.Batch.Parallel = cfg.Batch.Parallel || cfg.Batch.Workers > 1
	}
	if c.Bool("json") {
		cfg.Output.Format = "json"
	}
	if c.IsSet("max-candidates") {
		cfg.Output.MaxCandidates = c.Int("max-candidates")
	}

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT/SIGTERM, abandoning a running batch.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
}

func newApp() *cli.App {
	sessionFlag := &cli.StringFlag{
		Name:    "save-session",
		Aliases: []string{"s"},
		Usage:   "Write the results as a resumable session file (TOML)",
	}

	return &cli.App{
		Name:                   "pnpmatch",
		Usage:                  "Match pick-and-place footprints/comments to component library names",
		Version:                version.Version,
		UseShortOptionHandling: true,
		Before:                 openDebugLog,
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path (default: ./" + config.ConfigFileName + ")",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project directory holding the config file",
			},
			&cli.StringFlag{
				Name:    "db-dir",
				Aliases: []string{"d"},
				Usage:   "Directory with timestamped component databases (overrides config)",
			},
			&cli.BoolFlag{
				Name:    "parallel",
				Aliases: []string{"p"},
				Usage:   "Match rows on a worker pool",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Worker count for --parallel (0 = CPUs-1)",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output as JSON",
			},
			&cli.IntFlag{
				Name:    "max-candidates",
				Aliases: []string{"m"},
				Usage:   "Candidates printed per row (0 = all)",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "match",
				Usage:     "Match every row of a PnP file (CSV/TSV)",
				ArgsUsage: "<pnp-file>",
				Flags:     []cli.Flag{sessionFlag},
				Action:    matchCommand,
			},
			{
				Name:      "resume",
				Usage:     "Re-match a saved session, keeping manual and removed rows",
				ArgsUsage: "<session.toml>",
				Flags:     []cli.Flag{sessionFlag},
				Action:    resumeCommand,
			},
			{
				Name:      "filter",
				Aliases:   []string{"f"},
				Usage:     "List component names containing the keywords in order",
				ArgsUsage: "<keyword>...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "Include hidden names"},
				},
				Action: filterCommand,
			},
			{
				Name:  "names",
				Usage: "List visible component names, sorted",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Aliases: []string{"a"}, Usage: "List every name in database order with its hidden flag"},
				},
				Action: namesCommand,
			},
			{
				Name:      "merge",
				Usage:     "Merge a library scan (one name per line) into a new database file",
				ArgsUsage: "<scan-file>",
				Action:    mergeCommand,
			},
			{
				Name:      "hide",
				Usage:     "Hide component names and save a new database file",
				ArgsUsage: "<name>...",
				Action:    editCommand(true),
			},
			{
				Name:      "show",
				Usage:     "Unhide component names and save a new database file",
				ArgsUsage: "<name>...",
				Action:    editCommand(false),
			},
			{
				Name:      "watch",
				Usage:     "Match a PnP file and re-match whenever it or the database changes",
				ArgsUsage: "<pnp-file>",
				Flags:     []cli.Flag{sessionFlag},
				Action:    watchCommand,
			},
			{
				Name:   "mcp",
				Usage:  "Serve matching tools over MCP stdio",
				Action: mcpCommand,
			},
			{
				Name:  "version",
				Usage: "Print detailed version information",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, version.FullInfo())
					return nil
				},
			},
		},
	}
}

// openDebugLog sends debug output to a log file when DEBUG is set, so the
// mcp command keeps stdout for the protocol.
func openDebugLog(c *cli.Context) error {
	if !debug.Requested() {
		return nil
	}
	path, err := debug.InitDebugLogFile()
	if err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: %v\n", err)
		return nil
	}
	fmt.Fprintf(c.App.ErrWriter, "Debug log: %s\n", path)
	return nil
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		debug.FatalAndExit("Fatal error: %v\n", err)
	}
}
