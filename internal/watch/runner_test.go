package watch

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an action that records every invocation.
type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) action(_ context.Context, paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, paths)

	return nil
}

func (r *recorder) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]string, len(r.calls))
	copy(out, r.calls)

	return out
}

// blocker is an action that runs until cancelled and records how it ended.
type blocker struct {
	started   atomic.Int32
	cancelled atomic.Int32
	cleanedUp atomic.Int32
}

func (b *blocker) action(ctx context.Context, _ []string) error {
	defer b.cleanedUp.Add(1)

	b.started.Add(1)
	<-ctx.Done()
	b.cancelled.Add(1)

	return ctx.Err()
}

// countingObserver records observer callbacks.
type countingObserver struct {
	dispatched atomic.Int32
	skipped    atomic.Int32
	cancelled  atomic.Int32
	failed     atomic.Int32
}

func (o *countingObserver) Dispatched(string, int) { o.dispatched.Add(1) }
func (o *countingObserver) Skipped(string) { o.skipped.Add(1) }
func (o *countingObserver) Cancelled(string) { o.cancelled.Add(1) }
func (o *countingObserver) Finished(_ string, _ time.Duration, failed bool) {
	if failed {
		o.failed.Add(1)
	}
}

func newTestRunner(t *testing.T, obs Observer) *Runner {
	t.Helper()

	opts := DefaultOptions()
	opts.Root = t.TempDir()
	opts.Logger = discardLogger()
	opts.Observer = obs

	r, err := New(opts)
	require.NoError(t, err)

	return r
}

func newWatcher(t *testing.T, name string, interests KindSet, action Action, patterns ...string) *Watcher {
	t.Helper()

	w, err := NewWatcher(name, interests, patterns, action)
	require.NoError(t, err)

	return w
}

func waitDone(t *testing.T, task *Task) {
	t.Helper()

	select {
	case <-task.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("task %s did not finish", task.ID)
	}
}

// ---------------------------------------------------------------------------
// Dispatcher
// ---------------------------------------------------------------------------

func TestDispatch_CancelsPreviousTask(t *testing.T) {
	var b blocker

	d := NewDispatcher(context.Background(), discardLogger(), nil)
	w := newWatcher(t, "slow", NewKindSet(Modified), b.action, ".*")

	first := d.Dispatch(w, []string{"a.rb"})
	require.Eventually(t, func() bool { return b.started.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := d.Dispatch(w, []string{"b.rb"})

	waitDone(t, first)
	assert.Equal(t, int32(1), b.cancelled.Load())
	assert.Equal(t, int32(1), b.cleanedUp.Load(), "deferred cleanup must run on cancellation")

	assert.Same(t, second, w.CurrentTask())
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, []string{"b.rb"}, second.Paths)
	assert.False(t, second.Finished())

	second.Cancel()
	waitDone(t, second)
}

func TestDispatch_EmptyPathsIgnored(t *testing.T) {
	var rec recorder

	d := NewDispatcher(context.Background(), discardLogger(), nil)
	w := newWatcher(t, "w", NewKindSet(Modified), rec.action, ".*")

	assert.Nil(t, d.Dispatch(w, nil))
	assert.Nil(t, w.CurrentTask())
	assert.Empty(t, rec.Calls())
}

func TestDispatch_FinishedTaskIsNotCancelled(t *testing.T) {
	var rec recorder
	var obs countingObserver

	d := NewDispatcher(context.Background(), discardLogger(), &obs)
	w := newWatcher(t, "quick", NewKindSet(Modified), rec.action, ".*")

	first := d.Dispatch(w, []string{"a.rb"})
	waitDone(t, first)

	second := d.Dispatch(w, []string{"a.rb"})
	waitDone(t, second)

	assert.Equal(t, int32(0), obs.cancelled.Load())
	assert.Equal(t, int32(2), obs.dispatched.Load())
	assert.Len(t, rec.Calls(), 2)

	// Cancelling a finished task is a no-op.
	first.Cancel()
	assert.NoError(t, first.Err())
}

func TestDispatch_AtMostOneTrackedTask(t *testing.T) {
	var b blocker

	d := NewDispatcher(context.Background(), discardLogger(), nil)
	w := newWatcher(t, "busy", NewKindSet(Modified), b.action, ".*")

	var tasks []*Task
	for i := 0; i < 5; i++ {
		tasks = append(tasks, d.Dispatch(w, []string{"x.rb"}))
	}

	for _, task := range tasks[:4] {
		waitDone(t, task)
	}

	assert.Same(t, tasks[4], w.CurrentTask())
	assert.False(t, tasks[4].Finished())

	assert.Same(t, tasks[4], d.Cancel(w))
	assert.Nil(t, w.CurrentTask())
	waitDone(t, tasks[4])
	assert.Nil(t, d.Cancel(w))
}

func TestTask_ActionFailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	var obs countingObserver

	logger := slog.New(slog.NewTextHandler(&buf, nil))
	d := NewDispatcher(context.Background(), logger, &obs)

	w := newWatcher(t, "failing", NewKindSet(Modified), func(context.Context, []string) error {
		return errors.New("exit status 1")
	}, ".*")

	task := d.Dispatch(w, []string{"a.rb"})
	waitDone(t, task)

	require.EqualError(t, task.Err(), "exit status 1")
	assert.Equal(t, int32(1), obs.failed.Load())
	assert.Contains(t, buf.String(), "watcher action failed")
	assert.Contains(t, buf.String(), "failing")
}

func TestTask_PanicIsRecovered(t *testing.T) {
	d := NewDispatcher(context.Background(), discardLogger(), nil)

	w := newWatcher(t, "panicky", NewKindSet(Modified), func(context.Context, []string) error {
		panic("boom")
	}, ".*")

	task := d.Dispatch(w, []string{"a.rb"})
	waitDone(t, task)

	require.Error(t, task.Err())
	assert.Contains(t, task.Err().Error(), "boom")
}

func TestTask_Wait(t *testing.T) {
	var b blocker

	d := NewDispatcher(context.Background(), discardLogger(), nil)
	w := newWatcher(t, "w", NewKindSet(Modified), b.action, ".*")
	task := d.Dispatch(w, []string{"a.rb"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.ErrorIs(t, task.Wait(ctx), context.DeadlineExceeded)

	task.Cancel()
	assert.NoError(t, task.Wait(context.Background()))
}

// ---------------------------------------------------------------------------
// Runner: end-to-end scenarios
// ---------------------------------------------------------------------------

func TestRunner_SpecFileModified(t *testing.T) {
	var rec recorder
	var obs countingObserver

	r := newTestRunner(t, &obs)
	r.Watch(newWatcher(t, "rspec", NewKindSet(Modified), rec.action, `foo_spec\.rb$`))

	r.OnBatch(RawBatch{
		Modified: []string{filepath.Join(r.Root(), "foo_spec.rb"), filepath.Join(r.Root(), "bar.rb")},
	})

	require.Eventually(t, func() bool { return len(rec.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, [][]string{{"foo_spec.rb"}}, rec.Calls())
	assert.Equal(t, int32(1), obs.dispatched.Load())
}

func TestRunner_NoMatchSkipsWatcher(t *testing.T) {
	var rec recorder
	var obs countingObserver
	var buf bytes.Buffer

	opts := DefaultOptions()
	opts.Root = t.TempDir()
	opts.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	opts.Observer = &obs

	r, err := New(opts)
	require.NoError(t, err)

	w := newWatcher(t, "rspec", NewKindSet(Modified), rec.action, `foo_spec\.rb$`)
	r.Watch(w)

	r.OnBatch(RawBatch{Modified: []string{filepath.Join(r.Root(), "bar.rb")}})

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.Calls())
	assert.Nil(t, w.CurrentTask())
	assert.Equal(t, int32(0), obs.dispatched.Load())
	assert.Equal(t, int32(1), obs.skipped.Load())
	assert.Contains(t, buf.String(), "skipping watcher")
	assert.Contains(t, buf.String(), "foo_spec")
}

func TestRunner_AddedAndRemovedOrder(t *testing.T) {
	var rec recorder

	r := newTestRunner(t, nil)
	r.Watch(newWatcher(t, "all", NewKindSet(Added, Removed), rec.action, `.*`))

	r.OnBatch(RawBatch{
		Modified: []string{"a.rb"},
		Added:    []string{"b.rb"},
		Removed:  []string{"c.rb"},
	})

	require.Eventually(t, func() bool { return len(rec.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"b.rb", "c.rb"}, rec.Calls()[0])
}

func TestRunner_RunAllStartsEveryWatcherOnce(t *testing.T) {
	var first, second recorder
	var obs countingObserver

	r := newTestRunner(t, &obs)
	w1 := newWatcher(t, "one", NewKindSet(Modified), first.action, `.*`)
	w2 := newWatcher(t, "two", NewKindSet(Added), second.action, `.*`)
	r.Watch(w1)
	r.Watch(w2)

	r.RunAll()

	waitDone(t, w1.CurrentTask())
	waitDone(t, w2.CurrentTask())

	require.Len(t, first.Calls(), 1)
	require.Len(t, second.Calls(), 1)
	assert.Empty(t, first.Calls()[0])
	assert.Empty(t, second.Calls()[0])
	assert.Equal(t, int32(0), obs.cancelled.Load(), "nothing to cancel on a clean start")
}

func TestRunner_RunAllCancelsRunningTasks(t *testing.T) {
	var b blocker

	r := newTestRunner(t, nil)
	w := newWatcher(t, "slow", NewKindSet(Modified), b.action, `.*`)
	r.Watch(w)

	r.OnBatch(RawBatch{Modified: []string{"a.rb"}})
	before := w.CurrentTask()
	require.NotNil(t, before)

	r.RunAll()
	waitDone(t, before)

	assert.NotSame(t, before, w.CurrentTask())
	require.NoError(t, r.Shutdown(context.Background()))
	assert.Equal(t, int32(2), b.cancelled.Load())
}

func TestRunner_IndependentInstances(t *testing.T) {
	var recA, recB recorder

	a := newTestRunner(t, nil)
	b := newTestRunner(t, nil)

	a.Watch(newWatcher(t, "a", NewKindSet(Modified), recA.action, `.*`))
	b.Watch(newWatcher(t, "b", NewKindSet(Modified), recB.action, `.*`))

	a.OnBatch(RawBatch{Modified: []string{"x.rb"}})

	require.Eventually(t, func() bool { return len(recA.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, recB.Calls())
	assert.Len(t, b.Watchers(), 1)
}

func TestRunner_StateTransitions(t *testing.T) {
	var rec recorder

	r := newTestRunner(t, nil)
	assert.Equal(t, StateIdle, r.State())

	r.Watch(newWatcher(t, "w", NewKindSet(Modified), rec.action, `\.rb$`))
	assert.Equal(t, StateRegistering, r.State())

	ctx, cancel := context.WithCancel(context.Background())
	batches := make(chan RawBatch)
	trigger := make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, batches, trigger) }()

	require.Eventually(t, func() bool { return r.State() == StateWatching }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(rec.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	batches <- RawBatch{Modified: []string{"lib/a.rb"}}
	require.Eventually(t, func() bool { return len(rec.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"lib/a.rb"}, rec.Calls()[1])

	trigger <- struct{}{}
	require.Eventually(t, func() bool { return len(rec.Calls()) == 3 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, rec.Calls()[2])

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop in time")
	}

	assert.Equal(t, StateWatching, r.State())
}

func TestRunner_StopsWhenBatchesClosed(t *testing.T) {
	r := newTestRunner(t, nil)

	batches := make(chan RawBatch)
	close(batches)

	assert.NoError(t, r.Run(context.Background(), batches, nil))
}

func TestRunner_Shutdown(t *testing.T) {
	var b blocker

	r := newTestRunner(t, nil)
	r.Watch(newWatcher(t, "one", NewKindSet(Modified), b.action, `.*`))
	r.Watch(newWatcher(t, "two", NewKindSet(Modified), b.action, `.*`))

	r.RunAll()
	require.Eventually(t, func() bool { return b.started.Load() == 2 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, r.Shutdown(ctx))
	assert.Equal(t, int32(2), b.cleanedUp.Load())

	for _, w := range r.Watchers() {
		assert.Nil(t, w.CurrentTask())
	}
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "watching", StateWatching.String())
	assert.Equal(t, "State(9)", State(9).String())
}
