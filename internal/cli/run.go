package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/joi/internal/command"
	"github.com/hupe1980/joi/internal/config"
	"github.com/hupe1980/joi/internal/logging"
	"github.com/hupe1980/joi/internal/metrics"
	"github.com/hupe1980/joi/internal/preset"
	"github.com/hupe1980/joi/internal/watch"
)

// shutdownTimeout bounds how long joi waits for killed commands on exit.
const shutdownTimeout = 5 * time.Second

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every watcher once, then watch for changes",
		Long: `Run registers the preset and configured watchers, runs each of them once
over the whole project and then watches the project root for changes.

Changes are debounced into batches. For every batch, each watcher whose
change kinds and patterns match at least one path is restarted with the
matching paths; the previous run of that watcher is killed.

When attached to a terminal, pressing Enter runs every watcher again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), cmd)
		},
	}

	registerRunFlags(cmd)

	return cmd
}

// registerRunFlags adds the watch-mode flags to a cobra command.
func registerRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Duration("debounce", watch.DefaultDebounce, "quiet period used to batch file changes")
	f.StringSlice("ignore", []string{watch.DefaultIgnore}, "regular expressions for paths never reported")
	f.StringSlice("only", nil, "report only paths matching one of these regular expressions")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9090)")
}

// buildRunner registers the resolved watchers on a new runner.
func buildRunner(ctx context.Context, cfg *config.Config, console *logging.Console, observer watch.Observer) (*watch.Runner, error) {
	watchers, err := preset.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	opts := watch.DefaultOptions()
	opts.Root = cfg.Root
	opts.Logger = logging.FromContext(ctx)
	opts.Observer = observer
	opts.BaseContext = ctx

	runner, err := watch.New(opts)
	if err != nil {
		return nil, err
	}

	for i, wc := range watchers {
		name := wc.Name
		if name == "" {
			name = fmt.Sprintf("watcher-%d", i+1)
		}

		interests, err := watch.ParseKindSet(wc.On)
		if err != nil {
			return nil, fmt.Errorf("watcher %q: %w", name, err)
		}

		cmd := &command.Command{
			Args:    wc.Command,
			AllArgs: wc.All,
			Dir:     runner.Root(),
			Console: console,
		}

		w, err := watch.NewWatcher(name, interests, wc.Patterns, cmd.Action())
		if err != nil {
			return nil, err
		}

		runner.Watch(w)
	}

	return runner, nil
}

func newSource(cfg *config.Config, logger *slog.Logger) (*watch.Source, error) {
	ignore, err := config.CompilePatterns(cfg.Ignore)
	if err != nil {
		return nil, err
	}

	only, err := config.CompilePatterns(cfg.Only)
	if err != nil {
		return nil, err
	}

	return watch.NewSource(watch.SourceOptions{
		Root:     cfg.Root,
		Debounce: cfg.Debounce,
		Ignore:   ignore,
		Only:     only,
		Logger:   logger,
	})
}

func runWatch(ctx context.Context, cmd *cobra.Command) error {
	cfg := config.FromContext(ctx)
	logger := logging.FromContext(ctx)

	// Trap SIGINT / SIGTERM for graceful shutdown.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	console := logging.NewConsole(cmd.OutOrStdout(), cfg.NoColor)
	recorder := metrics.NewRecorder()

	runner, err := buildRunner(ctx, cfg, console, recorder)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	if len(runner.Watchers()) == 0 {
		logger.Warn("no watchers registered", slog.String("preset", cfg.Preset))
	}

	source, err := newSource(cfg, logger)
	if err != nil {
		return err
	}

	var trigger chan struct{}
	if in := cmd.InOrStdin(); logging.IsTerminal(in) {
		trigger = make(chan struct{})
		go readTriggers(ctx, in, trigger)

		console.Printf("press Enter to run every watcher")
	}

	g, gctx := errgroup.WithContext(ctx)

	// A failing source cancels gctx, which stops the runner too.
	g.Go(func() error { return source.Run(gctx) })
	g.Go(func() error { return runner.Run(gctx, source.Batches(), trigger) })

	if cfg.MetricsAddr != "" {
		g.Go(func() error { return recorder.Serve(gctx, cfg.MetricsAddr, logger) })
	}

	runErr := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("stopping watchers", slog.String("error", err.Error()))
	}

	return runErr
}

// readTriggers requests a run of every watcher for each line read from in.
// A blocked Scan cannot be interrupted, so after ctx is done the goroutine
// lingers until the next line or EOF and then exits without sending; joi
// exits right after shutdown anyway.
func readTriggers(ctx context.Context, in io.Reader, trigger chan<- struct{}) {
	scanner := bufio.NewScanner(in)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		select {
		case trigger <- struct{}{}:
		case <-ctx.Done():
			return
		}
	}
}
