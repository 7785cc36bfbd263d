// Package report renders an analysed run for people and exports its sample sets for charting.
// Nothing here judges the numbers; that happened in package analysis.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/scode/transitprobe/analysis"
	"github.com/scode/transitprobe/corpus"
)

// Summary is everything the emitter needs about one finished run.
type Summary struct {
	RunID   string
	Target  string
	Started time.Time
	Run     corpus.Summary
	Report  analysis.Report
}

// Distributions are the sample sets intended for histogram rendering.
type Distributions struct {
	EncryptMS []float64
	DecryptMS []float64
	Entropy   []float64
}

func DistributionsOf(r analysis.Report) Distributions {
	return Distributions{
		EncryptMS: r.Latency.Encrypt.SamplesMS,
		DecryptMS: r.Latency.Decrypt.SamplesMS,
		Entropy:   r.Entropy.Samples,
	}
}

// WriteSummary prints the console summary, followed by text histograms of the distributions
// when withHistograms is set.
func WriteSummary(w io.Writer, s Summary, withHistograms bool) error {
	r := s.Report
	u := r.Uniqueness
	e := r.Entropy

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s against %s\n", s.RunID, s.Target)
	fmt.Fprintf(&b, "Round trips: %d of %d verified, %d service failures, %s\n",
		s.Run.Completed, s.Run.Planned, len(s.Run.Failures), s.Run.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(&b, "Semantic security check: %d/%d ciphertexts unique (%.0f%%), %d duplicates\n",
		u.Distinct, u.Total, u.Ratio*100, u.Duplicates)
	fmt.Fprintf(&b, "Ciphertext Shannon entropy: mean=%.2f bits/byte (min=%.2f max=%.2f sd=%.2f, n=%d); "+
		"attainable %.2f for %.0f-byte payloads, ideal random = 8\n",
		e.Mean, e.Min, e.Max, e.StdDev, len(e.Samples), e.Ceiling, e.MeanPayloadLen)
	if e.Excluded > 0 {
		fmt.Fprintf(&b, "Undecodable ciphertexts: %d (excluded from entropy)\n", e.Excluded)
	}
	fmt.Fprintf(&b, "Encrypt latency: p95 = %.2f ms (mean=%.2f)\n", r.Latency.Encrypt.P95, r.Latency.Encrypt.Mean)
	fmt.Fprintf(&b, "Decrypt latency: p95 = %.2f ms (mean=%.2f)\n", r.Latency.Decrypt.P95, r.Latency.Decrypt.Mean)

	if len(r.Findings) == 0 {
		b.WriteString("Findings: none\n")
	} else {
		b.WriteString("Findings:\n")
		for _, f := range r.Findings {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", f.Severity, f.Kind, f.Message)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	if !withHistograms {
		return nil
	}

	d := DistributionsOf(r)
	if err := writeHistogram(w, "Encrypt latency (ms)", Histogram(d.EncryptMS, LatencyBins)); err != nil {
		return err
	}
	if err := writeHistogram(w, "Decrypt latency (ms)", Histogram(d.DecryptMS, LatencyBins)); err != nil {
		return err
	}
	return writeHistogram(w, "Ciphertext entropy (bits per byte)", Histogram(d.Entropy, EntropyBins))
}
