// Package analysis turns the results of a harness run into uniqueness, entropy and latency
// statistics, and flags the findings a reader should look at.
package analysis

import (
	"fmt"
	"log"
	"time"

	"github.com/scode/transitprobe/corpus"
	"github.com/scode/transitprobe/entropy"
	"github.com/scode/transitprobe/varmor"
)

// Uniqueness describes how many identical-kind plaintexts produced distinct ciphertexts.
type Uniqueness struct {
	Total      int
	Distinct   int
	Duplicates int
	Ratio      float64
}

// DecodeFailure is a ciphertext left out of the entropy statistics.
type DecodeFailure struct {
	Index    int
	RecordID int64
	Err      error
}

// EntropyStats summarizes ciphertext entropy in bits per byte over every decodable result.
type EntropyStats struct {
	Mean           float64
	Min            float64
	Max            float64
	StdDev         float64
	MeanPayloadLen float64
	Ceiling        float64 // best mean a uniform source could show at MeanPayloadLen
	Samples        []float64
	Excluded       int
	DecodeFailures []DecodeFailure
}

// Phase holds latency statistics for one side of the round trip, in milliseconds.
type Phase struct {
	P95       float64
	Mean      float64
	SamplesMS []float64
}

type LatencyStats struct {
	Encrypt Phase
	Decrypt Phase
}

// Report is the read-only outcome of analysing a complete run.
type Report struct {
	Results    int
	Uniqueness Uniqueness
	Entropy    EntropyStats
	Latency    LatencyStats
	Findings   []Finding
}

// Options tune judgement calls that do not change the statistics themselves.
type Options struct {
	// LowEntropyRatio flags mean entropy below this fraction of the ceiling for the observed
	// payload length.
	LowEntropyRatio float64
}

func DefaultOptions() Options {
	return Options{LowEntropyRatio: 0.9}
}

// Analyze computes the report with default options.
func Analyze(results []corpus.ObservedResult) Report {
	return AnalyzeWith(results, DefaultOptions())
}

// AnalyzeWith computes the report. The result order does not matter. An empty input yields a
// zero report with a uniqueness ratio of 1.
func AnalyzeWith(results []corpus.ObservedResult, opts Options) Report {
	r := Report{
		Results:    len(results),
		Uniqueness: uniqueness(results),
		Entropy:    entropyStats(results),
		Latency:    latencyStats(results),
	}
	r.Findings = findings(r, opts)
	return r
}

func uniqueness(results []corpus.ObservedResult) Uniqueness {
	seen := map[string]struct{}{}
	total := 0
	for _, res := range results {
		if res.Kind != corpus.Identical {
			continue
		}
		total++
		seen[res.Ciphertext] = struct{}{}
	}

	u := Uniqueness{Total: total, Distinct: len(seen), Ratio: 1}
	u.Duplicates = u.Total - u.Distinct
	if total > 0 {
		u.Ratio = float64(u.Distinct) / float64(u.Total)
	}
	return u
}

func entropyStats(results []corpus.ObservedResult) EntropyStats {
	var (
		es       EntropyStats
		totalLen int
	)
	es.Samples = make([]float64, 0, len(results))
	for _, res := range results {
		payload, err := varmor.Decode(res.Ciphertext)
		if err != nil {
			log.Printf("  [analysis] record %d (id %d) excluded from entropy: %v", res.Index, res.RecordID, err)
			es.DecodeFailures = append(es.DecodeFailures, DecodeFailure{Index: res.Index, RecordID: res.RecordID, Err: err})
			continue
		}
		totalLen += len(payload)
		es.Samples = append(es.Samples, entropy.Shannon(payload))
	}

	es.Excluded = len(es.DecodeFailures)
	es.Mean = Mean(es.Samples)
	es.StdDev = StdDev(es.Samples)
	es.Min, es.Max = minMax(es.Samples)
	if n := len(es.Samples); n > 0 {
		es.MeanPayloadLen = float64(totalLen) / float64(n)
		es.Ceiling = entropy.Ceiling(int(es.MeanPayloadLen + 0.5))
	}
	return es
}

func latencyStats(results []corpus.ObservedResult) LatencyStats {
	enc := make([]float64, 0, len(results))
	dec := make([]float64, 0, len(results))
	for _, res := range results {
		enc = append(enc, millis(res.EncryptLatency))
		dec = append(dec, millis(res.DecryptLatency))
	}
	return LatencyStats{
		Encrypt: Phase{P95: Percentile(enc, 0.95), Mean: Mean(enc), SamplesMS: enc},
		Decrypt: Phase{P95: Percentile(dec, 0.95), Mean: Mean(dec), SamplesMS: dec},
	}
}

func millis(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1e6
}

func findings(r Report, opts Options) []Finding {
	var out []Finding

	if u := r.Uniqueness; u.Duplicates > 0 {
		out = append(out, Finding{
			Kind:       SemanticSecurity,
			Severity:   duplicateSeverity(u),
			Duplicates: u.Duplicates,
			Message: fmt.Sprintf("%d of %d identical plaintexts produced an already-seen ciphertext (%d distinct)",
				u.Duplicates, u.Total, u.Distinct),
		})
	}

	if e := r.Entropy; len(e.Samples) > 0 && e.Mean < opts.LowEntropyRatio*e.Ceiling {
		out = append(out, Finding{
			Kind:     LowEntropy,
			Severity: Warning,
			Message: fmt.Sprintf("mean ciphertext entropy %.2f bits/byte is below %.0f%% of the %.2f attainable for %.0f-byte payloads",
				e.Mean, opts.LowEntropyRatio*100, e.Ceiling, e.MeanPayloadLen),
		})
	}

	if n := r.Entropy.Excluded; n > 0 {
		out = append(out, Finding{
			Kind:     Undecodable,
			Severity: Info,
			Message:  fmt.Sprintf("%d ciphertexts could not be decoded and were left out of the entropy statistics", n),
		})
	}

	return out
}
