// Package main is the entry point for shelf.
//
// shelf is a personal library catalog. Books are kept in one indented JSON
// file, edited through one-shot subcommands or an interactive menu session.
// Configuration is read from shelf.yaml, SHELF_* environment variables and
// CLI flags, in increasing order of precedence.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/maruel/ksid"
	"github.com/maruel/shelf/internal/config"
	"github.com/maruel/shelf/internal/history"
	"github.com/maruel/shelf/internal/library"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "shelf: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case bool:
				skip = !t
			case uint64:
				skip = t == 0
			case int64:
				skip = t == 0
			case float64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
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

	a := &app{in: os.Stdin, out: os.Stdout, getenv: os.Getenv, ll: ll}
	return newRootCmd(a).ExecuteContext(ctx)
}

// app is the state shared by all commands.
type app struct {
	in     io.Reader
	out    io.Writer
	getenv func(string) string
	ll     *slog.LevelVar

	configPath string
	file       string
	logLevel   string
	history    bool

	cfg   *config.Config
	store *library.Store
	repo  *history.Repo
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "shelf",
		Short: "Personal library catalog",
		Long: `shelf keeps a list of books (title, author, year, genre, read status) in a
single JSON file.

Run "shelf shell" for an interactive menu, or use the subcommands directly.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(a.in)
	root.SetOut(a.out)
	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", config.DefaultPath, "Configuration file")
	pf.StringVar(&a.file, "file", "", "Library file (default from config: library.json)")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.BoolVar(&a.history, "history", false, "Commit every change of the library file to git")

	root.AddCommand(
		newAddCmd(a),
		newRemoveCmd(a),
		newSearchCmd(a),
		newEditCmd(a),
		newListCmd(a),
		newStatsCmd(a),
		newSaveCmd(a),
		newShellCmd(a),
		newSchemaCmd(a),
		newHistoryCmd(a),
		newExportCmd(a),
	)
	return root
}

// setup resolves the configuration and opens the library.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(a.getenv); err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("file") {
		cfg.File = a.file
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("history") {
		cfg.History.Enabled = a.history
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	a.cfg = cfg
	if a.ll != nil {
		switch cfg.LogLevel {
		case "debug":
			a.ll.Set(slog.LevelDebug)
		case "info":
		case "warn":
			a.ll.Set(slog.LevelWarn)
		case "error":
			a.ll.Set(slog.LevelError)
		}
	}

	ctx := cmd.Context()
	var opts []library.Option
	if cfg.History.Enabled {
		a.repo, err = history.Open(filepath.Dir(cfg.File), cfg.History.AuthorName, cfg.History.AuthorEmail)
		if err != nil {
			return err
		}
		opts = append(opts, library.WithRecorder(a.repo))
	}
	slog.DebugContext(ctx, "Session started", "session", ksid.NewID().String(), "cmd", cmd.Name(), "file", cfg.File, "history", cfg.History.Enabled)
	a.store = library.Open(cfg.File, opts...)
	return nil
}
