package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

const barWidth = 30

// progressBar draws a single-line bar, redrawn in place.
type progressBar struct {
	w    io.Writer
	last int
}

// newProgressBar returns a bar on stderr, or nil when stderr is not a
// terminal.
func newProgressBar() *progressBar {
	fd := os.Stderr.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil
	}
	return &progressBar{w: os.Stderr, last: -1}
}

func (p *progressBar) ReportProgress(fraction float64) {
	pct := int(fraction*100 + 0.5)
	pct = max(0, min(pct, 100))
	if pct == p.last {
		return
	}
	p.last = pct
	filled := pct * barWidth / 100
	fmt.Fprintf(p.w, "\r[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat(" ", barWidth-filled), pct)
}

// Done ends the bar's line.
func (p *progressBar) Done() {
	if p.last >= 0 {
		fmt.Fprintln(p.w)
	}
}
