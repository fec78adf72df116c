package watch

import (
	"context"
	"log/slog"
)

// Dispatcher starts watcher tasks, cancelling the task a watcher already
// has in flight. It never waits for tasks and never observes their results
// beyond logging.
type Dispatcher struct {
	ctx      context.Context
	logger   *slog.Logger
	observer Observer
}

// NewDispatcher returns a dispatcher whose tasks derive from ctx.
func NewDispatcher(ctx context.Context, logger *slog.Logger, observer Observer) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	if observer == nil {
		observer = nopObserver{}
	}

	return &Dispatcher{ctx: ctx, logger: logger, observer: observer}
}

// Dispatch cancels w's current task, if any, and starts a new one running
// w.Action with paths. Callers skip watchers without matches; an empty
// paths list is ignored and returns nil.
func (d *Dispatcher) Dispatch(w *Watcher, paths []string) *Task {
	if len(paths) == 0 {
		return nil
	}

	return d.replace(w, paths)
}

// Baseline is Dispatch for a whole-project run: the action receives no
// paths.
func (d *Dispatcher) Baseline(w *Watcher) *Task {
	return d.replace(w, nil)
}

// Cancel stops w's current task without starting a new one and returns
// the cancelled task, or nil if there was nothing to cancel.
func (d *Dispatcher) Cancel(w *Watcher) *Task {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.task
	if prev == nil {
		return nil
	}

	w.task = nil
	d.cancel(w, prev)

	return prev
}

func (d *Dispatcher) replace(w *Watcher, paths []string) *Task {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prev := w.task; prev != nil {
		d.cancel(w, prev)
	}

	t := startTask(d.ctx, w, paths, d.logger, d.observer)
	w.task = t

	d.observer.Dispatched(w.Name, len(paths))

	return t
}

// cancel must be called with w.mu held.
func (d *Dispatcher) cancel(w *Watcher, t *Task) {
	if t.Finished() {
		return
	}

	t.Cancel()
	d.observer.Cancelled(w.Name)
	d.logger.Debug("cancelled running task", slog.String("watcher", w.Name), slog.String("task", t.ID))
}
