// Package preset holds built-in watcher sets for common project layouts.
package preset

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/hupe1980/joi/internal/config"
)

// Preset names.
const (
	Auto = "auto"
	Go   = "go"
	Ruby = "ruby"
	None = "none"
)

var presets = map[string][]config.WatcherConfig{
	Go: {
		{
			Name:     "go-test",
			On:       []string{"modified", "added"},
			Patterns: []string{`\.go$`},
			Command:  []string{"go", "test", "{packages}"},
			All:      []string{"go", "test", "./..."},
		},
		{
			Name:     "go-vet",
			On:       []string{"modified", "added", "removed"},
			Patterns: []string{`\.go$`},
			Command:  []string{"go", "vet", "{packages}"},
			All:      []string{"go", "vet", "./..."},
		},
	},
	Ruby: {
		{
			Name:     "rspec",
			On:       []string{"modified", "added"},
			Patterns: []string{`_spec\.rb$`},
			Command:  []string{"bin/rspec"},
		},
		{
			Name:     "rubocop",
			On:       []string{"modified", "added"},
			Patterns: []string{`\.rb$`, `(^|/)Gemfile$`},
			Command:  []string{"bundle", "exec", "rubocop", "--force-exclusion", "{paths}"},
		},
	},
	None: nil,
}

// markers maps files that identify a project layout to its preset, in
// detection order.
var markers = []struct {
	file   string
	preset string
}{
	{"go.mod", Go},
	{"Gemfile", Ruby},
}

// Names returns every selectable preset name.
func Names() []string {
	names := []string{Auto}
	for name := range presets {
		names = append(names, name)
	}

	slices.Sort(names[1:])

	return names
}

// Lookup returns a copy of the watchers of the named preset. Auto detects
// the preset from marker files in root.
func Lookup(name, root string) ([]config.WatcherConfig, error) {
	if name == "" || name == Auto {
		name = Detect(root)
	}

	watchers, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("unknown preset %q: must be one of %v", name, Names())
	}

	out := make([]config.WatcherConfig, len(watchers))
	for i, w := range watchers {
		out[i] = config.WatcherConfig{
			Name:     w.Name,
			On:       slices.Clone(w.On),
			Patterns: slices.Clone(w.Patterns),
			Command:  slices.Clone(w.Command),
			All:      slices.Clone(w.All),
		}
	}

	return out, nil
}

// Detect returns the preset matching the first marker file found in root,
// or None.
func Detect(root string) string {
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(root, m.file)); err == nil {
			return m.preset
		}
	}

	return None
}

// Resolve returns the preset's watchers followed by the configured ones.
func Resolve(cfg *config.Config) ([]config.WatcherConfig, error) {
	base, err := Lookup(cfg.Preset, cfg.Root)
	if err != nil {
		return nil, err
	}

	return append(base, cfg.Watchers...), nil
}
