package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/texforge/texforge/internal/compile"
	"github.com/texforge/texforge/internal/events"
	"github.com/texforge/texforge/internal/logging"
	"github.com/texforge/texforge/internal/metrics"
	"github.com/texforge/texforge/internal/settings"
	"github.com/texforge/texforge/internal/storage"
	"github.com/texforge/texforge/internal/watcher"
	"github.com/texforge/texforge/internal/workspace"
	"github.com/texforge/texforge/pkg/client"
	"github.com/texforge/texforge/pkg/protocol"
)

var compileCmd = &cobra.Command{
	Use:   "compile [flags] [dir]",
	Short: "Compile a project on the CLSI",
	Long: `Compile enumerates the project tree, sends the documents given with --open
inline and every other file by URL, and prints the compiler's diagnostics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCompile,
}

func init() {
	compileCmd.Flags().StringSlice("open", nil, "project files to send inline, in editor order (repeatable)")
	compileCmd.Flags().String("focus", "", "the open file that has focus")
	compileCmd.Flags().StringP("output", "o", "", "download the produced PDF to this path")
	compileCmd.Flags().Duration("timeout", 0, "bound the whole compile (default COMPILE_TIMEOUT)")
	compileCmd.Flags().Duration("watch", 0, "recompile on project changes, polling at this interval, until interrupted")
	compileCmd.Flags().Bool("show-log", false, "print the raw compiler log")
	compileCmd.Flags().Bool("events", false, "print lifecycle events as JSON lines to stdout")
	compileCmd.Flags().Bool("quiet", false, "suppress progress output")
}

type compileOptions struct {
	open    []string
	focus   string
	output  string
	timeout time.Duration
	watch   time.Duration
	showLog bool
	events  bool
	quiet   bool
}

func compileFlags(cmd *cobra.Command) (compileOptions, error) {
	var opts compileOptions
	var err error
	if opts.open, err = cmd.Flags().GetStringSlice("open"); err != nil {
		return opts, err
	}
	if opts.focus, err = cmd.Flags().GetString("focus"); err != nil {
		return opts, err
	}
	if opts.output, err = cmd.Flags().GetString("output"); err != nil {
		return opts, err
	}
	if opts.timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return opts, err
	}
	if opts.watch, err = cmd.Flags().GetDuration("watch"); err != nil {
		return opts, err
	}
	if opts.showLog, err = cmd.Flags().GetBool("show-log"); err != nil {
		return opts, err
	}
	if opts.events, err = cmd.Flags().GetBool("events"); err != nil {
		return opts, err
	}
	if opts.quiet, err = cmd.Flags().GetBool("quiet"); err != nil {
		return opts, err
	}
	return opts, nil
}

func runCompile(cmd *cobra.Command, args []string) error {
	opts, err := compileFlags(cmd)
	if err != nil {
		return err
	}

	cfg := projectConfig(argOr(args, 0))
	if opts.timeout > 0 {
		cfg.CompileTimeout = opts.timeout
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration: %w", err)
	}
	if err := applyLogConfig(cmd, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(client.Config{
		BaseURL:   cfg.CLSIURL,
		PublicURL: cfg.CLSIPublicURL,
		FilesURL:  cfg.FilesURL,
		Timeout:   cfg.HTTPTimeout,
	})

	src, err := storage.New(ctx, cfg, c)
	if err != nil {
		return fmt.Errorf("project tree: %w", err)
	}

	store, err := settings.Open(cfg)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}

	ws := workspace.New(cfg.ProjectPath)
	for _, p := range opts.open {
		if err := ws.OpenFile(p); err != nil {
			return err
		}
	}
	if opts.focus != "" {
		if err := ws.Focus(opts.focus); err != nil {
			return fmt.Errorf("--focus: %w", err)
		}
	}

	display := newTerminalDisplay(cmd.ErrOrStderr(), c.ResolveURL)
	display.showLog = opts.showLog
	display.quiet = opts.quiet

	bus := events.NewBroadcaster()
	orch := compile.New(compile.Options{
		Remote:          c,
		Tree:            src,
		Editor:          ws,
		Settings:        store,
		Display:         display,
		Events:          bus,
		DefaultCompiler: cfg.DefaultCompiler,
		Timeout:         cfg.CompileTimeout,
	})

	logging.Debug("compile starting",
		zap.String("clsi", cfg.CLSIURL),
		zap.String("backend", src.Type()),
		zap.String("project", cfg.ProjectPath),
		zap.Strings("open", opts.open))

	sub := bus.Subscribe()
	var metricsServer *http.Server
	if cfg.MetricsAddr != "" {
		metricsServer = &http.Server{Addr: cfg.MetricsAddr, Handler: metrics.Handler()}
	}

	var last *compile.Result
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return printEvents(cmd.OutOrStdout(), sub, opts.events)
	})

	if metricsServer != nil {
		g.Go(func() error {
			logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer bus.Unsubscribe(sub)
		if metricsServer != nil {
			defer metricsServer.Close()
		}

		var err error
		last, err = compileLoop(gctx, orch, c, ws, cfg.ProjectPath, opts)
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	if last != nil && last.Response != nil && last.Response.Status != protocol.StatusSuccess {
		return fmt.Errorf("compile %s", last.Response.Status)
	}
	return nil
}

// compileLoop compiles once, then with --watch recompiles whenever a file
// under the project directory changes until ctx is done. In watch mode
// failures are reported and the loop continues.
func compileLoop(ctx context.Context, orch *compile.Orchestrator, c *client.Client, ws *workspace.Workspace, root string, opts compileOptions) (*compile.Result, error) {
	res, err := compileOnce(ctx, orch, c, opts)
	if opts.watch <= 0 {
		return res, err
	}
	logWatchError(err)

	w := watcher.New(root, opts.watch)
	w.Ignore = outputIgnore(root, opts.output)
	err = w.Run(ctx, func(changes []watcher.Change) {
		applyChanges(ws, changes)

		next, err := compileOnce(ctx, orch, c, opts)
		logWatchError(err)
		if next != nil {
			res = next
		}
	})
	return res, err
}

// applyChanges brings open documents in line with the disk: changed ones
// are re-read unless they have unsaved edits, deleted ones are closed.
func applyChanges(ws *workspace.Workspace, changes []watcher.Change) {
	for _, ch := range changes {
		doc, ok := ws.Document(ch.Path)
		if !ok {
			continue
		}
		if ch.Type == watcher.ChangeDelete {
			ws.Close(ch.Path)
			logging.Info("closed deleted document", zap.String("path", ch.Path))
			continue
		}
		if doc.Dirty {
			continue
		}
		if err := ws.OpenFile(ch.Path); err != nil {
			logging.Warn("reload failed", zap.String("path", ch.Path), zap.Error(err))
		}
	}
}

// logWatchError logs a watch-mode failure the display has not already
// shown, such as a failed output download.
func logWatchError(err error) {
	var reported *reportedError
	switch {
	case err == nil, errors.As(err, &reported):
	case errors.Is(err, compile.ErrCompileInProgress):
		logging.Debug("skipping change, compile in flight")
	default:
		logging.Error("watch compile failed", zap.Error(err))
	}
}

// outputIgnore keeps the downloaded PDF, and its partial download, from
// triggering another compile when they are written inside the project.
func outputIgnore(root, output string) func(string) bool {
	if output == "" {
		return nil
	}
	absRoot, err1 := filepath.Abs(root)
	absOut, err2 := filepath.Abs(output)
	if err1 != nil || err2 != nil {
		return nil
	}
	rel, err := filepath.Rel(absRoot, absOut)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil
	}
	rel = filepath.ToSlash(rel)
	return func(p string) bool {
		return p == rel || p == rel+".part"
	}
}

func compileOnce(ctx context.Context, orch *compile.Orchestrator, c *client.Client, opts compileOptions) (*compile.Result, error) {
	res, err := orch.Compile(ctx)
	if err != nil {
		if errors.Is(err, compile.ErrCompileInProgress) {
			return res, err
		}
		// The display has shown it already.
		return res, &reportedError{err: err}
	}
	if opts.output != "" && res.OutputProduced {
		if err := downloadOutput(ctx, c, res.OutputURL, opts.output); err != nil {
			return res, err
		}
	}
	return res, nil
}

func downloadOutput(ctx context.Context, c *client.Client, url, path string) error {
	tmp := path + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	n, err := c.Download(ctx, url, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("download output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("download output: %w", err)
	}
	logging.Info("output saved", zap.String("path", path), zap.Int64("bytes", n))
	return nil
}

// printEvents drains the subscription until it is closed, writing events
// as JSON lines when enabled.
func printEvents(w io.Writer, sub chan events.Event, enabled bool) error {
	for e := range sub {
		if !enabled {
			continue
		}
		data, err := events.MarshalEvent(e)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

// reportedError marks an error the display already printed.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string { return e.err.Error() }
func (e *reportedError) Unwrap() error { return e.err }
