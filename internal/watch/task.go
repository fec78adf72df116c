package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Task is one execution of a watcher's action on its own goroutine.
type Task struct {
	// ID uniquely identifies the task in logs.
	ID string

	// Watcher is the name of the watcher that started the task.
	Watcher string

	// Paths are the matched paths the action was invoked with.
	Paths []string

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func startTask(parent context.Context, w *Watcher, paths []string, logger *slog.Logger, obs Observer) *Task {
	ctx, cancel := context.WithCancel(parent)

	t := &Task{
		ID:      uuid.NewString(),
		Watcher: w.Name,
		Paths:   paths,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go t.run(ctx, w.Action, logger.With(slog.String("watcher", w.Name), slog.String("task", t.ID)), obs)

	return t
}

func (t *Task) run(ctx context.Context, action Action, logger *slog.Logger, obs Observer) {
	defer close(t.done)
	defer t.cancel()

	start := time.Now()
	err := t.invoke(ctx, action)
	elapsed := time.Since(start)
	cancelled := ctx.Err() != nil

	switch {
	case cancelled:
		logger.Debug("task cancelled", slog.Duration("elapsed", elapsed))
	case err != nil:
		logger.Error("watcher action failed", slog.String("error", err.Error()), slog.Duration("elapsed", elapsed))
	default:
		logger.Debug("task finished", slog.Duration("elapsed", elapsed))
	}

	obs.Finished(t.Watcher, elapsed, err != nil && !cancelled)

	t.err = err
}

func (t *Task) invoke(ctx context.Context, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panicked: %v", r)
		}
	}()

	return action(ctx, t.Paths)
}

// Cancel requests termination of the task. Cancelling a finished task is
// a no-op.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed once the action has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Finished reports whether the action has returned.
func (t *Task) Finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Err returns the action's error once Done is closed, nil before.
func (t *Task) Err() error {
	if !t.Finished() {
		return nil
	}

	return t.err
}

// Wait blocks until the task finished or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		if errors.Is(t.err, context.Canceled) {
			return nil
		}

		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
