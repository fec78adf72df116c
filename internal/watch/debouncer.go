package watch

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Debouncer coalesces rapid path changes into a single RawBatch. The
// callback fires once no new change arrived for the configured interval.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func(RawBatch)
	pending  map[string]ChangeKind
}

// NewDebouncer creates a debouncer that waits for interval of quiet before
// firing callback with every change collected since the last firing.
func NewDebouncer(interval time.Duration, callback func(RawBatch)) *Debouncer {
	return &Debouncer{
		interval: interval,
		callback: callback,
		pending:  make(map[string]ChangeKind),
	}
}

// Trigger records a change of kind for path and restarts the quiet period.
// Successive changes to one path collapse into a single kind: added then
// modified stays added, added then removed cancels out, removed then added
// becomes modified, anything else keeps the latest kind.
func (d *Debouncer) Trigger(path string, kind ChangeKind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.record(path, kind)

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) record(path string, kind ChangeKind) {
	prev, seen := d.pending[path]
	if !seen {
		d.pending[path] = kind
		return
	}

	switch {
	case prev == Added && kind == Modified:
		// still new to the consumer
	case prev == Added && kind == Removed:
		delete(d.pending, path)
	case prev == Removed && kind == Added:
		d.pending[path] = Modified
	default:
		d.pending[path] = kind
	}
}

func (d *Debouncer) fire() {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("debouncer callback panicked", slog.Any("error", r))
		}
	}()

	d.mu.Lock()
	batch := d.drain()
	d.mu.Unlock()

	if batch.Empty() {
		return
	}

	d.callback(batch)
}

// drain must be called with d.mu held.
func (d *Debouncer) drain() RawBatch {
	var b RawBatch

	for path, kind := range d.pending {
		switch kind {
		case Modified:
			b.Modified = append(b.Modified, path)
		case Added:
			b.Added = append(b.Added, path)
		case Removed:
			b.Removed = append(b.Removed, path)
		}
	}

	sort.Strings(b.Modified)
	sort.Strings(b.Added)
	sort.Strings(b.Removed)

	d.pending = make(map[string]ChangeKind)

	return b
}

// Stop cancels any pending callback and discards collected changes.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	d.pending = make(map[string]ChangeKind)
}
