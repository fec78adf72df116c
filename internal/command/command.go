// Package command runs external programs as watcher actions.
package command

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/hupe1980/joi/internal/logging"
	"github.com/hupe1980/joi/internal/watch"
)

// PathsToken is replaced by the matched paths when it appears as an
// argument.
const PathsToken = "{paths}"

// PackagesToken is replaced by the distinct directories of the matched
// paths, written as Go package patterns ("./internal/watch", ".").
const PackagesToken = "{packages}"

// waitDelay bounds how long Run waits for output pipes after the process
// was killed.
const waitDelay = 2 * time.Second

// Command describes a program a watcher runs.
type Command struct {
	// Args is the argv for incremental runs.
	Args []string

	// AllArgs is the argv for baseline runs. Defaults to Args.
	AllArgs []string

	// Dir is the working directory, usually the project root.
	Dir string

	// Console echoes the command line and receives the program's output.
	Console *logging.Console
}

// Argv returns the argv to execute for paths. Paths replace a PathsToken
// argument, their directories replace a PackagesToken argument, and without
// either token they are appended. Without paths the baseline argv is used
// and token arguments are dropped.
func (c *Command) Argv(paths []string) []string {
	if len(paths) == 0 {
		base := c.AllArgs
		if len(base) == 0 {
			base = c.Args
		}

		return slices.DeleteFunc(slices.Clone(base), isToken)
	}

	if !slices.ContainsFunc(c.Args, isToken) {
		return append(slices.Clone(c.Args), paths...)
	}

	argv := make([]string, 0, len(c.Args)+len(paths))

	for _, a := range c.Args {
		switch a {
		case PathsToken:
			argv = append(argv, paths...)
		case PackagesToken:
			argv = append(argv, packages(paths)...)
		default:
			argv = append(argv, a)
		}
	}

	return argv
}

func isToken(arg string) bool {
	return arg == PathsToken || arg == PackagesToken
}

// packages maps root-relative paths to the package patterns of their
// directories, deduplicated in first-seen order.
func packages(paths []string) []string {
	var pkgs []string

	for _, p := range paths {
		dir := path.Dir(p)

		// "." and paths outside the root are valid package patterns as is.
		if dir != "." && dir != ".." && !path.IsAbs(dir) && !strings.HasPrefix(dir, "../") {
			dir = "./" + dir
		}

		if !slices.Contains(pkgs, dir) {
			pkgs = append(pkgs, dir)
		}
	}

	return pkgs
}

// Run executes the command for paths and waits for it. Cancelling ctx kills
// the process and its children.
func (c *Command) Run(ctx context.Context, paths []string) error {
	argv := c.Argv(paths)
	if len(argv) == 0 {
		return errors.New("empty command")
	}

	out := c.console()
	out.Command(argv)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	cmd.Dir = c.Dir
	cmd.Stdout = out.Writer()
	cmd.Stderr = out.Writer()
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("running %s: %w", argv[0], err)
	}

	return nil
}

// Action adapts c to a watch.Action.
func (c *Command) Action() watch.Action {
	return c.Run
}

func (c *Command) console() *logging.Console {
	if c.Console == nil {
		return logging.NewConsole(os.Stdout, false)
	}

	return c.Console
}
