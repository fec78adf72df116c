package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

const (
	ansiGrey  = "\x1b[37m"
	ansiReset = "\x1b[0m"
)

// Console prints user-facing status lines such as the command about to run.
// Lines from concurrent watchers never interleave.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

// NewConsole returns a console writing to out. Color is used only when
// noColor is false and out is a terminal.
func NewConsole(out io.Writer, noColor bool) *Console {
	return &Console{out: out, color: !noColor && IsTerminal(out)}
}

// IsTerminal reports whether v is a file attached to a terminal or a
// Cygwin/MSYS pty.
func IsTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Writer returns the underlying writer, e.g. for child process output.
func (c *Console) Writer() io.Writer {
	return c.out
}

// Command echoes a command line as "$ name args...".
func (c *Console) Command(argv []string) {
	c.println("$ " + strings.Join(argv, " "))
}

// Printf prints a formatted status line.
func (c *Console) Printf(format string, args ...any) {
	c.println(fmt.Sprintf(format, args...))
}

func (c *Console) println(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.color {
		line = ansiGrey + line + ansiReset
	}

	fmt.Fprintln(c.out, line)
}
