package report

import (
	"fmt"
	"io"
	"math"
	"strings"
)

const (
	LatencyBins = 30
	EntropyBins = 25

	_BAR_WIDTH = 40
)

// Bin is one bucket of a histogram, covering [Lo, Hi). The last bin also includes Hi.
type Bin struct {
	Lo    float64
	Hi    float64
	Count int
}

// Histogram sorts samples into n equal-width bins spanning their range. A sample with no
// spread collapses into a single bin.
func Histogram(samples []float64, n int) []Bin {
	if len(samples) == 0 || n < 1 {
		return nil
	}
	lo, hi := samples[0], samples[0]
	for _, v := range samples {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return []Bin{{Lo: lo, Hi: hi, Count: len(samples)}}
	}

	width := (hi - lo) / float64(n)
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = lo + float64(i)*width
		bins[i].Hi = lo + float64(i+1)*width
	}
	bins[n-1].Hi = hi

	for _, v := range samples {
		i := int((v - lo) / width)
		if i >= n {
			i = n - 1
		}
		bins[i].Count++
	}
	return bins
}

func writeHistogram(w io.Writer, title string, bins []Bin) error {
	if _, err := fmt.Fprintf(w, "\n%s\n", title); err != nil {
		return err
	}
	if len(bins) == 0 {
		_, err := fmt.Fprintln(w, "  (no samples)")
		return err
	}

	peak := 0
	for _, b := range bins {
		if b.Count > peak {
			peak = b.Count
		}
	}
	for _, b := range bins {
		bar := 0
		if peak > 0 {
			bar = int(math.Round(float64(b.Count) / float64(peak) * _BAR_WIDTH))
		}
		if _, err := fmt.Fprintf(w, "  %10.2f - %-10.2f %5d %s\n", b.Lo, b.Hi, b.Count, strings.Repeat("#", bar)); err != nil {
			return err
		}
	}
	return nil
}
