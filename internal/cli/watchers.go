package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/joi/internal/config"
	"github.com/hupe1980/joi/internal/output"
	"github.com/hupe1980/joi/internal/preset"
)

func newWatchersCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "watchers",
		Short: "List the effective watchers",
		Long: `List the watchers joi would register: the preset's watchers followed
by the ones declared in the config file, in registration order.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())

			watchers, err := preset.Resolve(cfg)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			formats := output.DefaultRegistry()
			formats.Register("table", encodeWatcherTable)

			enc, err := formats.Encoder(format)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			return enc(cmd.OutOrStdout(), watchers)
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "table", "output format: table, yaml, json")

	return cmd
}

func encodeWatcherTable(w io.Writer, v any) error {
	watchers, ok := v.([]config.WatcherConfig)
	if !ok {
		return fmt.Errorf("table output does not support %T", v)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tON\tPATTERNS\tCOMMAND")

	for _, wc := range watchers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			wc.Name,
			strings.Join(wc.On, ","),
			strings.Join(wc.Patterns, " "),
			strings.Join(wc.Command, " "),
		)
	}

	return tw.Flush()
}
