package console

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Summary carries the per-status counters printed at the end of a run.
type Summary struct {
	AlreadyInstalled int
	Installed        int
	Failed           int
	Skipped          int
}

// Console prints status lines to a writer.
type Console struct {
	out io.Writer

	heading *color.Color
	ok      *color.Color
	bad     *color.Color
	muted   *color.Color
}

// New creates a console writing to out. Colors are disabled when noColor is set
// or out is not a terminal.
func New(out io.Writer, noColor bool) *Console {
	c := &Console{
		out:     out,
		heading: color.New(color.Bold, color.FgCyan),
		ok:      color.New(color.FgGreen),
		bad:     color.New(color.FgRed),
		muted:   color.New(color.FgYellow),
	}

	if noColor || !IsTerminal(out) {
		for _, clr := range []*color.Color{c.heading, c.ok, c.bad, c.muted} {
			clr.DisableColor()
		}
	}

	return c
}

// IsTerminal reports whether w is a terminal file.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	fd := f.Fd()

	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Out returns the underlying writer.
func (c *Console) Out() io.Writer {
	return c.out
}

// Heading prints the status block heading.
func (c *Console) Heading() {
	_, _ = c.heading.Fprintln(c.out, "Dependencies:")
}

// Dependency prints one status line. Installed entries carry a green marker.
func (c *Console) Dependency(name string, installed bool) {
	_, _ = fmt.Fprintf(c.out, "  - %s", name)

	if installed {
		_, _ = c.ok.Fprint(c.out, " (already installed)")
	}

	_, _ = fmt.Fprintln(c.out)
}

// Separator prints an empty line.
func (c *Console) Separator() {
	_, _ = fmt.Fprintln(c.out)
}

// Failure reports a package whose installer did not succeed.
func (c *Console) Failure(name string, err error) {
	_, _ = c.bad.Fprintf(c.out, "  ! %s: %v\n", name, err)
}

// Summary prints the final counters.
func (c *Console) Summary(s Summary) {
	_, _ = fmt.Fprintf(c.out, "%s already installed, %s installed",
		c.ok.Sprint(s.AlreadyInstalled), c.ok.Sprint(s.Installed))

	if s.Skipped > 0 {
		_, _ = fmt.Fprintf(c.out, ", %s skipped (dry run)", c.muted.Sprint(s.Skipped))
	}

	failed := fmt.Sprint(s.Failed)
	if s.Failed > 0 {
		failed = c.bad.Sprint(s.Failed)
	}

	_, _ = fmt.Fprintf(c.out, ", %s failed\n", failed)
}
