package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/joi/internal/config"
	"github.com/hupe1980/joi/internal/logging"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the configuration without watching",
		Long: `Check loads the configuration, verifies the "requires" version
constraint, compiles every pattern and registers every watcher. It exits
non-zero on the first failure and runs no commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.FromContext(ctx)

			console := logging.NewConsole(cmd.OutOrStdout(), true)

			runner, err := buildRunner(ctx, cfg, console, nil)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			if _, err := config.CompilePatterns(cfg.Only); err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			names := make([]string, 0, len(runner.Watchers()))
			for _, w := range runner.Watchers() {
				names = append(names, w.Name)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d watcher(s) %s\n",
				len(names), strings.Join(names, ", "))

			return err
		},
	}
}
