package preset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/joi/internal/command"
	"github.com/hupe1980/joi/internal/config"
)

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"auto", "go", "none", "ruby"}, Names())
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name  string
		files []string
		want  string
	}{
		{"go module", []string{"go.mod"}, Go},
		{"ruby project", []string{"Gemfile"}, Ruby},
		{"go wins over ruby", []string{"Gemfile", "go.mod"}, Go},
		{"nothing", nil, None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, f := range tt.files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, f), nil, 0o644))
			}

			assert.Equal(t, tt.want, Detect(dir))
		})
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("python", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown preset "python"`)
}

func TestLookup_ReturnsCopies(t *testing.T) {
	first, err := Lookup(Ruby, t.TempDir())
	require.NoError(t, err)

	first[0].Patterns[0] = "mutated"

	second, err := Lookup(Ruby, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, `_spec\.rb$`, second[0].Patterns[0])
}

func TestPresetsAreValid(t *testing.T) {
	for _, name := range []string{Go, Ruby} {
		watchers, err := Lookup(name, t.TempDir())
		require.NoError(t, err)
		require.NotEmpty(t, watchers)

		for _, w := range watchers {
			assert.NoError(t, w.Validate(), "%s/%s", name, w.Name)
		}
	}
}

func TestPresetCommandLines(t *testing.T) {
	tests := []struct {
		preset      string
		watcher     string
		paths       []string
		incremental []string
		baseline    []string
	}{
		{
			preset:      Go,
			watcher:     "go-test",
			paths:       []string{"internal/watch/runner.go", "internal/watch/runner_test.go", "main.go"},
			incremental: []string{"go", "test", "./internal/watch", "."},
			baseline:    []string{"go", "test", "./..."},
		},
		{
			preset:      Go,
			watcher:     "go-vet",
			paths:       []string{"cmd/joi/main.go"},
			incremental: []string{"go", "vet", "./cmd/joi"},
			baseline:    []string{"go", "vet", "./..."},
		},
		{
			preset:      Ruby,
			watcher:     "rspec",
			paths:       []string{"spec/models/user_spec.rb"},
			incremental: []string{"bin/rspec", "spec/models/user_spec.rb"},
			baseline:    []string{"bin/rspec"},
		},
		{
			preset:      Ruby,
			watcher:     "rubocop",
			paths:       []string{"lib/a.rb", "Gemfile"},
			incremental: []string{"bundle", "exec", "rubocop", "--force-exclusion", "lib/a.rb", "Gemfile"},
			baseline:    []string{"bundle", "exec", "rubocop", "--force-exclusion"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.preset+"/"+tt.watcher, func(t *testing.T) {
			watchers, err := Lookup(tt.preset, t.TempDir())
			require.NoError(t, err)

			var found *config.WatcherConfig

			for i := range watchers {
				if watchers[i].Name == tt.watcher {
					found = &watchers[i]
				}
			}

			require.NotNil(t, found, "watcher %q not in preset %q", tt.watcher, tt.preset)

			cmd := command.Command{Args: found.Command, AllArgs: found.All}
			assert.Equal(t, tt.incremental, cmd.Argv(tt.paths))
			assert.Equal(t, tt.baseline, cmd.Argv(nil))
		})
	}
}

// Go package patterns and file names cannot be mixed in one go invocation.
func TestGoPreset_NeverMixesFilesWithPackages(t *testing.T) {
	watchers, err := Lookup(Go, t.TempDir())
	require.NoError(t, err)

	for _, w := range watchers {
		cmd := command.Command{Args: w.Command, AllArgs: w.All}

		for _, arg := range cmd.Argv([]string{"pkg/a.go", "b_test.go"}) {
			assert.NotEqual(t, "./...", arg, w.Name)
			assert.NotContains(t, arg, ".go", w.Name)
		}
	}
}

func TestResolve_AppendsConfiguredWatchers(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Gemfile"), nil, 0o644))

	cfg := config.Default()
	cfg.Root = dir
	cfg.Watchers = []config.WatcherConfig{{Name: "custom", On: []string{"added"}, Patterns: []string{".*"}, Command: []string{"true"}}}

	watchers, err := Resolve(cfg)
	require.NoError(t, err)

	var names []string
	for _, w := range watchers {
		names = append(names, w.Name)
	}

	assert.Equal(t, []string{"rspec", "rubocop", "custom"}, names)
}
