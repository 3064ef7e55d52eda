// Package main is the entry point for the csvdb shell.
//
// csvdb edits a CSV file interactively: rows can be added, searched, sorted,
// updated and deleted, and columns added, moved, renamed or removed. Every
// change is written back to the file immediately. Settings come from CLI flags
// and an optional YAML config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/maruel/csvdb/internal/config"
	"github.com/maruel/csvdb/internal/csvdb"
	"github.com/maruel/csvdb/internal/history"
	"github.com/maruel/csvdb/internal/shell"
	"github.com/maruel/csvdb/internal/watch"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// product is the layout of a new table when no columns are configured.
type product struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "csvdb: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	version := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "YAML config file; created with the current settings if missing")
	file := flag.String("file", "products.csv", "CSV file to edit")
	columns := flag.String("columns", "", "Comma separated columns used when the file is missing or empty")
	idColumn := flag.String("id-column", "id", "Column filled with a generated identifier when left blank")
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	watchFile := flag.Bool("watch", false, "Reload the table when the file is modified by another program")
	useHistory := flag.Bool("history", false, "Commit every change to a git repository in the file's directory")
	flag.Parse()
	if len(flag.Args()) > 0 {
		return fmt.Errorf("unknown arguments: %v", flag.Args())
	}

	if *version {
		printVersion()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			skip := false
			switch t := a.Value.Any().(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case int64:
				skip = t == 0
			case time.Duration:
				skip = t == 0
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	defaults, err := csvdb.ColumnsFor[product]()
	if err != nil {
		return err
	}
	cfg := &config.Config{
		File:     *file,
		Columns:  defaults,
		IDColumn: *idColumn,
		LogLevel: *logLevel,
		Watch:    *watchFile,
		History:  config.History{Enabled: *useHistory},
	}
	if *columns != "" {
		cfg.Columns = splitColumns(*columns)
	}
	if *configPath != "" {
		// Flags override the file only when explicitly set.
		if cfg, err = config.Load(*configPath, *cfg); err != nil {
			return err
		}
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "file":
				cfg.File = *file
			case "columns":
				cfg.Columns = splitColumns(*columns)
			case "id-column":
				cfg.IDColumn = *idColumn
			case "log-level":
				cfg.LogLevel = *logLevel
			case "watch":
				cfg.Watch = *watchFile
			case "history":
				cfg.History.Enabled = *useHistory
			}
		})
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	ll.Set(level)

	table, err := csvdb.Open(cfg.File, cfg.Columns)
	if err != nil {
		return fmt.Errorf("failed to open table: %w", err)
	}
	slog.Info("Opened table", "path", table.Path(), "rows", table.Len(), "columns", strings.Join(table.Columns(), ","))

	opts := shell.Options{IDColumn: cfg.IDColumn}
	if cfg.History.Enabled {
		author := history.Author{Name: cfg.History.Author, Email: cfg.History.Email}
		if author.Name == "" {
			author = history.Author{Name: "csvdb", Email: "csvdb@localhost"}
		}
		repo, err := history.Open(ctx, filepath.Dir(table.Path()), author)
		if err != nil {
			return err
		}
		if _, err := repo.Commit(ctx, "Open "+filepath.Base(table.Path()), table.Path()); err != nil {
			slog.Warn("Failed to record initial version", "err", err)
		}
		opts.History = repo
	}
	if cfg.Watch {
		err := watch.File(ctx, table.Path(), 100*time.Millisecond, func() {
			if err := table.Reload(); err != nil {
				slog.Warn("Failed to reload table", "path", table.Path(), "err", err)
				return
			}
			slog.Info("Reloaded table", "path", table.Path(), "rows", table.Len())
		})
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", table.Path(), err)
		}
	}

	return shell.New(table, os.Stdin, os.Stdout, opts).Run(ctx)
}

func splitColumns(s string) []string {
	var out []string
	for c := range strings.SplitSeq(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func printVersion() {
	version, goVersion, revision, dirty := getBuildInfo()
	fmt.Printf("csvdb %s\n", version)
	fmt.Printf("  Go version: %s\n", goVersion)
	fmt.Printf("  Revision:   %s\n", revision)
	if dirty {
		fmt.Printf("  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
