package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/pnpmatch/internal/batch"
	"github.com/standardbeagle/pnpmatch/internal/config"
	"github.com/standardbeagle/pnpmatch/internal/debug"
	"github.com/standardbeagle/pnpmatch/internal/grid"
	"github.com/standardbeagle/pnpmatch/internal/matcher"
	"github.com/standardbeagle/pnpmatch/internal/mcp"
	"github.com/standardbeagle/pnpmatch/internal/session"
	"github.com/standardbeagle/pnpmatch/internal/store"
	"github.com/standardbeagle/pnpmatch/internal/types"
	"github.com/standardbeagle/pnpmatch/internal/watch"
)

// loadStore loads the newest database. A missing database is a warning:
// matching continues against an empty store and every row is NO_MATCH.
func loadStore(c *cli.Context, cfg *config.Config) *store.Store {
	st, err := store.LoadLatestOrEmpty(cfg.Store.Dir, cfg.Store.Pattern)
	if err != nil {
		fmt.Fprintf(c.App.ErrWriter, "Warning: %v\n", err)
	}
	return st
}

// loadStrict loads the newest database, failing when none exists. Used by
// commands that write a new database derived from the current one.
func loadStrict(cfg *config.Config, allowMissing bool) (*store.Store, error) {
	st, err := store.LoadLatest(cfg.Store.Dir, cfg.Store.Pattern)
	if err != nil {
		if allowMissing && errors.Is(err, store.ErrNoDatabase) {
			return store.Empty(), nil
		}
		return nil, err
	}
	return st, nil
}

func newProcessor(cfg *config.Config) *batch.Processor {
	return batch.NewProcessor(matcher.New(cfg.Match.SizeCodes), batch.StrategyFor(cfg.Batch))
}

func gridRows(cfg *config.Config, path string) ([]batch.RowSource, error) {
	g, err := grid.ReadFile(path, cfg.Columns.DelimiterRune())
	if err != nil {
		return nil, err
	}
	return batch.FromGrid(g, cfg.Columns), nil
}

// runBatch processes rows, prints the report and optionally saves a session.
// With fresh set the processor's cache is discarded first. A session whose
// items could not be read back by resume is refused after printing.
func runBatch(ctx context.Context, c *cli.Context, cfg *config.Config, p *batch.Processor, rows []batch.RowSource, st *store.Store, source string, fresh bool) error {
	start := time.Now()
	report, err := p.Run(ctx, rows, st, fresh)
	if err != nil {
		return err
	}
	records := report.Records
	debug.LogBatch("%d rows with %s strategy in %v\n", len(records), p.Strategy().Name(), time.Since(start))

	for _, d := range report.Diagnostics {
		fmt.Fprintf(c.App.ErrWriter, "Warning: %v\n", d)
	}

	if err := printRecords(c.App.Writer, cfg.Output, records); err != nil {
		return err
	}

	path := c.String("save-session")
	if path == "" {
		return nil
	}
	saved := session.FromRecords(source, records, time.Now())
	if err := saved.Validate(); err != nil {
		return fmt.Errorf("session not saved to %s: %w", path, err)
	}
	if err := saved.Save(path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Session saved to %s\n", path)
	return nil
}

func matchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: pnpmatch match <pnp-file>", 2)
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	path := c.Args().First()
	rows, err := gridRows(cfg, path)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	return runBatch(ctx, c, cfg, newProcessor(cfg), rows, loadStore(c, cfg), path, false)
}

func resumeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: pnpmatch resume <session.toml>", 2)
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	f, err := session.Load(c.Args().First())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	return runBatch(ctx, c, cfg, newProcessor(cfg), batch.FromSession(f), loadStore(c, cfg), f.Source, false)
}

func filterCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	query := strings.Join(c.Args().Slice(), " ")
	names := loadStore(c, cfg).Filtered(query, !c.Bool("all"))
	return printNames(c.App.Writer, cfg.Output, names)
}

func namesCommand(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	st := loadStore(c, cfg)
	if !c.Bool("all") {
		return printNames(c.App.Writer, cfg.Output, st.VisibleNames())
	}
	return printComponents(c.App.Writer, cfg.Output, st.All())
}

func mergeCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: pnpmatch merge <scan-file>", 2)
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	scanPath := c.Args().First()
	file, err := os.Open(scanPath)
	if err != nil {
		return fmt.Errorf("failed to open scan %s: %w", scanPath, err)
	}
	scanned, err := store.ReadNames(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("failed to read scan %s: %w", scanPath, err)
	}

	current, err := loadStrict(cfg, true)
	if err != nil {
		return err
	}
	merged := current.Merge(scanned)

	path, err := merged.Save(cfg.Store.Dir, cfg.Store.FilePrefix, cfg.Store.TimestampLayout, time.Now())
	if err != nil {
		return err
	}

	added, dropped := diffNames(current, merged)
	fmt.Fprintf(c.App.Writer, "Saved %d names to %s (%d added, %d dropped)\n", merged.Len(), path, added, dropped)
	return nil
}

// diffNames counts names present only in after (added) and only in before (dropped).
func diffNames(before, after *store.Store) (added, dropped int) {
	for _, n := range after.All() {
		if !before.Contains(n.Name) {
			added++
		}
	}
	for _, n := range before.All() {
		if !after.Contains(n.Name) {
			dropped++
		}
	}
	return added, dropped
}

func editCommand(hidden bool) cli.ActionFunc {
	verb := "show"
	if hidden {
		verb = "hide"
	}

	return func(c *cli.Context) error {
		if c.NArg() == 0 {
			return cli.Exit(fmt.Sprintf("usage: pnpmatch %s <name>...", verb), 2)
		}
		cfg, err := loadConfigWithOverrides(c)
		if err != nil {
			return err
		}

		current, err := loadStrict(cfg, false)
		if err != nil {
			return err
		}

		edits := store.NewEditBuffer()
		for _, name := range c.Args().Slice() {
			edits.SetHidden(name, hidden)
		}
		updated, unknown := edits.Flush(current)
		for _, name := range unknown {
			fmt.Fprintf(c.App.ErrWriter, "Warning: unknown component name %q\n", name)
		}
		if updated == current {
			return cli.Exit("no known names to "+verb, 1)
		}
		if updated.Fingerprint() == current.Fingerprint() {
			fmt.Fprintln(c.App.Writer, "No changes to save")
			return nil
		}

		path, err := updated.Save(cfg.Store.Dir, cfg.Store.FilePrefix, cfg.Store.TimestampLayout, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Saved %s\n", path)
		return nil
	}
}

func watchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: pnpmatch watch <pnp-file>", 2)
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	path := c.Args().First()
	p := newProcessor(cfg)

	rerun := func(fresh bool) {
		rows, err := gridRows(cfg, path)
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "Error: %v\n", err)
			return
		}
		if err := runBatch(ctx, c, cfg, p, rows, loadStore(c, cfg), path, fresh); err != nil && ctx.Err() == nil {
			fmt.Fprintf(c.App.ErrWriter, "Error: %v\n", err)
		}
	}
	rerun(false)

	changes := make(chan watch.Change, 1)
	w, err := watch.New(cfg, path, func(ch watch.Change) {
		select {
		case changes <- ch:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ch := <-changes:
			fmt.Fprintf(c.App.ErrWriter, "Change detected (%s), re-matching\n", ch.Kind)
			// a new PnP file starts a new run; a database change is
			// picked up by the cache's fingerprint binding
			rerun(ch.Kind&watch.ChangeSource != 0)
		}
	}
}

func mcpCommand(c *cli.Context) error {
	// MCP speaks JSON-RPC on stdio; keep debug output off stdout
	debug.SetMCPMode(true)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(c)
	defer cancel()

	server := mcp.NewServer(cfg, nil)
	if err := server.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}

// exportable counts the rows that carry a committed component name.
func exportable(records []types.MatchRecord) int {
	n := 0
	for i := range records {
		if records[i].Exportable() {
			n++
		}
	}
	return n
}
