package commands

import (
	"fmt"
	"io"

	"github.com/scode/transitprobe/corpus"
)

type progressPrinter struct {
	w      io.Writer
	redraw bool
	tenths map[corpus.Kind]int
}

func newProgressPrinter(w io.Writer, redraw bool) *progressPrinter {
	return &progressPrinter{w: w, redraw: redraw, tenths: map[corpus.Kind]int{}}
}

// update is called serialized by the driver.
func (p *progressPrinter) update(pr corpus.Progress) {
	if pr.Total == 0 {
		return
	}

	if p.redraw {
		fmt.Fprintf(p.w, "\r  [probe] %-9s %d/%d", pr.Kind, pr.Done, pr.Total)
		if pr.Done == pr.Total {
			fmt.Fprintln(p.w)
		}
		return
	}

	tenth := pr.Done * 10 / pr.Total
	if tenth > p.tenths[pr.Kind] {
		p.tenths[pr.Kind] = tenth
		fmt.Fprintf(p.w, "  [probe] %s records: %d/%d (%d%%)\n", pr.Kind, pr.Done, pr.Total, tenth*10)
	}
}
