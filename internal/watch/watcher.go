package watch

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
)

// Action is the work a watcher performs for a set of matched paths. An
// empty path list means a baseline run over the whole project. Actions must
// return promptly once ctx is cancelled.
type Action func(ctx context.Context, paths []string) error

// Watcher pairs change interests and path patterns with an action. The
// in-flight task is owned by the Dispatcher.
type Watcher struct {
	// Name identifies the watcher in logs and metrics.
	Name string

	// Interests are the change kinds the watcher reacts to.
	Interests KindSet

	// Patterns are compiled once at construction; a path matches when any
	// pattern finds a match in it.
	Patterns []*regexp.Regexp

	// Action runs for every dispatch.
	Action Action

	mu   sync.Mutex
	task *Task
}

// NewWatcher compiles patterns and returns a ready-to-register watcher.
func NewWatcher(name string, interests KindSet, patterns []string, action Action) (*Watcher, error) {
	if action == nil {
		return nil, fmt.Errorf("watcher %q: action is required", name)
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))

	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("watcher %q: compiling pattern %q: %w", name, p, err)
		}

		compiled = append(compiled, re)
	}

	return &Watcher{
		Name:      name,
		Interests: interests,
		Patterns:  compiled,
		Action:    action,
	}, nil
}

// Matches reports whether path matches at least one pattern.
func (w *Watcher) Matches(path string) bool {
	for _, re := range w.Patterns {
		if re.MatchString(path) {
			return true
		}
	}

	return false
}

// PatternStrings returns the source text of every pattern.
func (w *Watcher) PatternStrings() []string {
	out := make([]string, len(w.Patterns))
	for i, re := range w.Patterns {
		out[i] = re.String()
	}

	return out
}

// CurrentTask returns the task currently tracked for w, or nil.
func (w *Watcher) CurrentTask() *Task {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.task
}

// LogValue renders the watcher's configuration for diagnostics.
func (w *Watcher) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", w.Name),
		slog.Any("on", w.Interests.Names()),
		slog.Any("pattern", w.PatternStrings()),
	)
}
