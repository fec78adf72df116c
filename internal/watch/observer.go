package watch

import "time"

// Observer receives dispatch decisions and task outcomes, e.g. for metrics.
// Implementations must be safe for concurrent use.
type Observer interface {
	// Dispatched is called after a task was started with n paths
	// (0 for a baseline run).
	Dispatched(watcher string, n int)
	// Skipped is called when a batch did not match the watcher.
	Skipped(watcher string)
	// Cancelled is called when a running task is replaced or shut down.
	Cancelled(watcher string)
	// Finished is called when a task returns. failed is false for tasks
	// that were cancelled.
	Finished(watcher string, elapsed time.Duration, failed bool)
}

type nopObserver struct{}

func (nopObserver) Dispatched(string, int) {}
func (nopObserver) Skipped(string) {}
func (nopObserver) Cancelled(string) {}
func (nopObserver) Finished(string, time.Duration, bool) {}
