package diag

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Reporter renders a Bag to an output stream, colorizing severities only
// when the stream is a real terminal — the same guard the embedded runtime
// uses before emitting ANSI control codes for interactive terminals.
type Reporter struct {
	out   io.Writer
	color bool
}

// NewReporter builds a Reporter for out. If out is *os.File and refers to a
// terminal (including a Cygwin pty), diagnostics are colorized.
func NewReporter(out io.Writer) *Reporter {
	color := false
	if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Reporter{out: out, color: color}
}

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31;1m"
	ansiDim   = "\x1b[2m"
)

// Report writes every diagnostic in the bag, one per line plus its notes.
func (r *Reporter) Report(bag *Bag) {
	for _, d := range bag.Items() {
		if r.color {
			fmt.Fprintf(r.out, "%s%s%s: %s: %s\n", ansiRed, d.Span, ansiReset, d.Kind, d.Message)
			for _, n := range d.Notes {
				fmt.Fprintf(r.out, "%s  note: %s%s\n", ansiDim, n, ansiReset)
			}
			continue
		}
		fmt.Fprintln(r.out, d.String())
	}
}
