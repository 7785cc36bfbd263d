// Package entropy estimates the randomness of byte sequences.
package entropy

import "math"

// MaxBitsPerByte is the entropy of a perfectly uniform byte distribution.
const MaxBitsPerByte = 8.0

// Shannon returns the empirical Shannon entropy of b in bits per byte, in [0, 8].
// An empty slice has zero entropy.
func Shannon(b []byte) float64 {
	if len(b) == 0 {
		return 0
	}

	var counts [256]int
	for _, c := range b {
		counts[c]++
	}

	n := float64(len(b))
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		h -= p * math.Log2(p)
	}

	// Rounding can leave a uniform sample a hair outside the valid range.
	if h < 0 {
		return 0
	}
	if h > MaxBitsPerByte {
		return MaxBitsPerByte
	}
	return h
}

// Ceiling is the highest entropy an n-byte sample can show: a sample shorter than 256 bytes
// cannot contain every byte value, so its entropy is bounded by log2(n).
func Ceiling(n int) float64 {
	if n <= 1 {
		return 0
	}
	return math.Min(MaxBitsPerByte, math.Log2(float64(n)))
}
