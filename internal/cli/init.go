package cli

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/joi/internal/config"
	"github.com/hupe1980/joi/internal/logging"
	"github.com/hupe1980/joi/internal/output"
	"github.com/hupe1980/joi/internal/preset"
	"github.com/hupe1980/joi/internal/watch"
)

// starterConfig is the document written by joi init.
type starterConfig struct {
	Preset   string                 `yaml:"preset"`
	Debounce string                 `yaml:"debounce"`
	Ignore   []string               `yaml:"ignore"`
	Watchers []config.WatcherConfig `yaml:"watchers"`
}

func newInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter .joi.yaml",
		Long: `Write a .joi.yaml into the project root that spells out the watchers of
the selected preset, so they can be edited. The written file disables the
preset to avoid registering its watchers twice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())

			watchers, err := preset.Lookup(cfg.Preset, cfg.Root)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			data, err := renderStarter(watchers)
			if err != nil {
				return err
			}

			fw := output.NewFileWriter(filepath.Join(cfg.Root, config.FileName),
				output.WithOverwrite(force),
				output.WithLogger(logging.FromContext(cmd.Context())),
			)

			if err := fw.Write(data); err != nil {
				if errors.Is(err, output.ErrExists) {
					return fmt.Errorf("%w (use --force to overwrite)", err)
				}

				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s with %d watcher(s)\n", fw.Path(), len(watchers))

			return err
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")

	return cmd
}

func renderStarter(watchers []config.WatcherConfig) ([]byte, error) {
	if watchers == nil {
		watchers = []config.WatcherConfig{}
	}

	doc := starterConfig{
		Preset:   preset.None,
		Debounce: watch.DefaultDebounce.String(),
		Ignore:   []string{watch.DefaultIgnore},
		Watchers: watchers,
	}

	var buf bytes.Buffer
	buf.WriteString("# joi configuration. See `joi --help` for every key.\n")

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)

	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	return buf.Bytes(), nil
}
