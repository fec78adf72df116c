package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
)

// State is the runner's process-level lifecycle state. Transitions only
// move forward.
type State int32

// Runner states.
const (
	StateIdle State = iota
	StateRegistering
	StateBaseline
	StateWatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRegistering:
		return "registering"
	case StateBaseline:
		return "baseline"
	case StateWatching:
		return "watching"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures a Runner.
type Options struct {
	// Root is the project directory; changed paths are made relative to it.
	Root string

	// Logger receives dispatch diagnostics at debug level.
	Logger *slog.Logger

	// Observer is notified of dispatch decisions. Optional.
	Observer Observer

	// BaseContext is the parent of every task context. Defaults to
	// context.Background().
	BaseContext context.Context
}

// DefaultOptions returns options rooted at the current directory.
func DefaultOptions() Options {
	return Options{
		Root:   ".",
		Logger: slog.Default(),
	}
}

// Runner owns a watcher registry and feeds change batches to it. Runners
// share no state with each other.
type Runner struct {
	root       string
	registry   *Registry
	dispatcher *Dispatcher
	logger     *slog.Logger
	observer   Observer
	state      atomic.Int32
}

// New returns an idle runner.
func New(opts Options) (*Runner, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}

	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}

	if opts.Root == "" {
		opts.Root = "."
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", opts.Root, err)
	}

	return &Runner{
		root:       root,
		registry:   NewRegistry(),
		dispatcher: NewDispatcher(opts.BaseContext, opts.Logger, opts.Observer),
		logger:     opts.Logger,
		observer:   opts.Observer,
	}, nil
}

// Root returns the absolute project root.
func (r *Runner) Root() string { return r.root }

// State returns the current lifecycle state.
func (r *Runner) State() State { return State(r.state.Load()) }

func (r *Runner) advance(to State) {
	for {
		cur := r.state.Load()
		if cur >= int32(to) || r.state.CompareAndSwap(cur, int32(to)) {
			return
		}
	}
}

// Watch registers w. Registration after watching started is allowed; the
// watcher takes part from the next batch on.
func (r *Runner) Watch(w *Watcher) {
	r.advance(StateRegistering)
	r.registry.Add(w)

	r.logger.Debug("registered watcher", slog.Any("watcher", w))
}

// Watchers returns the registered watchers in registration order.
func (r *Runner) Watchers() []*Watcher {
	return r.registry.All()
}

// RunAll cancels every watcher's task and starts each action once with no
// paths, establishing a baseline.
func (r *Runner) RunAll() {
	for _, w := range r.registry.All() {
		r.logger.Debug("running watcher", slog.Any("watcher", w), slog.Bool("all", true))
		r.dispatcher.Baseline(w)
	}
}

// OnBatch normalises raw, then dispatches every watcher whose match set is
// non-empty, in registration order.
func (r *Runner) OnBatch(raw RawBatch) {
	modified := Normalize(r.logger, r.root, raw.Modified)
	added := Normalize(r.logger, r.root, raw.Added)
	removed := Normalize(r.logger, r.root, raw.Removed)

	r.logger.Debug("files changed",
		slog.Any("added", added),
		slog.Any("modified", modified),
		slog.Any("removed", removed),
	)

	batch := NewBatch(modified, added, removed)

	for _, w := range r.registry.All() {
		paths := Match(w, batch)
		if len(paths) == 0 {
			r.logger.Debug("skipping watcher", slog.Any("watcher", w))
			r.observer.Skipped(w.Name)

			continue
		}

		r.logger.Debug("running watcher", slog.Any("watcher", w), slog.Any("paths", paths))
		r.dispatcher.Dispatch(w, paths)
	}
}

// Run performs the baseline run and then processes batches one at a time
// until ctx is done or batches is closed. A value on trigger repeats the
// baseline run; trigger may be nil.
func (r *Runner) Run(ctx context.Context, batches <-chan RawBatch, trigger <-chan struct{}) error {
	r.advance(StateBaseline)
	r.RunAll()
	r.advance(StateWatching)

	r.logger.Info("watching for changes",
		slog.String("root", r.root),
		slog.Int("watchers", r.registry.Len()),
	)

	for {
		select {
		case <-ctx.Done():
			return nil

		case raw, ok := <-batches:
			if !ok {
				return nil
			}

			r.OnBatch(raw)

		case _, ok := <-trigger:
			if !ok {
				trigger = nil
				continue
			}

			r.RunAll()
		}
	}
}

// Shutdown cancels every running task and waits for them to return or for
// ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	var cancelled []*Task

	for _, w := range r.registry.All() {
		if t := r.dispatcher.Cancel(w); t != nil {
			cancelled = append(cancelled, t)
		}
	}

	for _, t := range cancelled {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return fmt.Errorf("waiting for %d task(s): %w", len(cancelled), ctx.Err())
		}
	}

	return nil
}
