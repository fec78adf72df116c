package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultIgnore matches directories whose changes are never reported.
const DefaultIgnore = `(public|node_modules|assets|vendor)/`

// DefaultDebounce is the quiet period used to batch filesystem events.
const DefaultDebounce = 250 * time.Millisecond

// SourceOptions configures the filesystem notification source.
type SourceOptions struct {
	// Root is the project directory watched recursively.
	Root string

	// Debounce is the quiet period before a batch is delivered.
	Debounce time.Duration

	// Ignore patterns are matched against root-relative paths; directories
	// are tested with a trailing slash.
	Ignore []*regexp.Regexp

	// Only, when non-empty, restricts reported files to those matching at
	// least one pattern.
	Only []*regexp.Regexp

	// Logger is used for watcher errors and diagnostics.
	Logger *slog.Logger
}

// DefaultSourceOptions returns options watching root with the default
// ignore list and debounce.
func DefaultSourceOptions(root string) SourceOptions {
	return SourceOptions{
		Root:     root,
		Debounce: DefaultDebounce,
		Ignore:   []*regexp.Regexp{regexp.MustCompile(DefaultIgnore)},
		Logger:   slog.Default(),
	}
}

// Source turns fsnotify events below a root directory into RawBatches.
type Source struct {
	opts    SourceOptions
	watcher *fsnotify.Watcher
	batches chan RawBatch
}

// NewSource creates the fsnotify watcher and registers every directory
// below opts.Root.
func NewSource(opts SourceOptions) (*Source, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving root %q: %w", opts.Root, err)
	}

	opts.Root = root

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	s := &Source{
		opts:    opts,
		watcher: watcher,
		batches: make(chan RawBatch),
	}

	if err := s.addRecursive(root); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching root directory: %w", err)
	}

	return s, nil
}

// Batches delivers one RawBatch per debounced burst of changes. The channel
// is never closed; stop reading when the context passed to Run is done.
func (s *Source) Batches() <-chan RawBatch {
	return s.batches
}

// ErrSourceClosed is returned by Run when the underlying watcher stopped
// delivering events before ctx was cancelled.
var ErrSourceClosed = errors.New("filesystem watcher closed")

// Run forwards filesystem events until ctx is cancelled, then releases the
// underlying watcher.
func (s *Source) Run(ctx context.Context) error {
	defer s.watcher.Close()

	debouncer := NewDebouncer(s.opts.Debounce, func(b RawBatch) {
		select {
		case s.batches <- b:
		case <-ctx.Done():
		}
	})
	defer debouncer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-s.watcher.Events:
			if !ok {
				return s.closed(ctx)
			}

			kind, relevant := s.classify(event)
			if !relevant {
				continue
			}

			debouncer.Trigger(event.Name, kind)

		case watchErr, ok := <-s.watcher.Errors:
			if !ok {
				return s.closed(ctx)
			}

			s.opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// closed reports a watcher shutdown that nobody asked for.
func (s *Source) closed(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	return ErrSourceClosed
}

// classify filters an event and maps it to a change kind. Newly created
// directories are added to the watch list and not reported themselves.
func (s *Source) classify(event fsnotify.Event) (ChangeKind, bool) {
	if !isRelevant(event) {
		return 0, false
	}

	rel, err := Rel(s.opts.Root, event.Name)
	if err != nil {
		return 0, false
	}

	if event.Has(fsnotify.Create) {
		if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
			if !s.ignored(rel + "/") {
				if err := s.addRecursive(event.Name); err != nil {
					s.opts.Logger.Warn("watching new directory", slog.String("path", rel), slog.String("error", err.Error()))
				}
			}

			return 0, false
		}
	}

	if s.ignored(rel) || !s.allowed(rel) {
		return 0, false
	}

	switch {
	case event.Has(fsnotify.Create):
		return Added, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Removed, true
	default:
		return Modified, true
	}
}

func (s *Source) ignored(rel string) bool {
	for _, re := range s.opts.Ignore {
		if re.MatchString(rel) {
			return true
		}
	}

	return false
}

func (s *Source) allowed(rel string) bool {
	if len(s.opts.Only) == 0 {
		return true
	}

	for _, re := range s.opts.Only {
		if re.MatchString(rel) {
			return true
		}
	}

	return false
}

// addRecursive walks dir and adds every directory that is neither hidden
// nor ignored.
func (s *Source) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.IsDir() {
			return nil
		}

		if path != s.opts.Root {
			// Skip hidden directories (e.g., .git).
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			if rel, relErr := Rel(s.opts.Root, path); relErr == nil && s.ignored(rel+"/") {
				return filepath.SkipDir
			}
		}

		return s.watcher.Add(path)
	})
}

// isRelevant filters out chmod-only events and editor scratch files.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	// Only care about write, create, remove, rename.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	// Ignore editor temporary files and hidden files.
	name := filepath.Base(event.Name)

	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}

// Close releases the underlying watcher. Run closes it as well.
func (s *Source) Close() error {
	return s.watcher.Close()
}

// WatchList returns the directories currently registered with fsnotify.
func (s *Source) WatchList() []string {
	return s.watcher.WatchList()
}
