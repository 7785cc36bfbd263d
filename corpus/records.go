package corpus

import (
	"fmt"
	"math/rand"
	"time"
)

// Kind tells the two workloads apart.
type Kind string

const (
	Identical Kind = "identical"
	Random    Kind = "random"
)

// PlaintextRecord is one value to push through the service.
type PlaintextRecord struct {
	Index int // position in generation order across both kinds
	Label string
	Value string
	Kind  Kind
}

// ObservedResult is a completed and verified create+decrypt round trip.
type ObservedResult struct {
	Index          int
	RecordID       int64
	Label          string
	Plaintext      string
	Ciphertext     string
	DecryptedValue string
	EncryptLatency time.Duration
	DecryptLatency time.Duration
	Kind           Kind
}

// Generate builds the run's plaintext corpus: all identical-kind records first, then the
// random-kind ones. The same config always yields the same corpus.
func Generate(cfg Config) ([]PlaintextRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lo, _ := toCents(cfg.MinValue)
	hi, _ := toCents(cfg.MaxValue)
	same, _ := toCents(cfg.IdenticalValue)

	records := make([]PlaintextRecord, 0, cfg.IdenticalCount+cfg.RandomCount)
	for i := 0; i < cfg.IdenticalCount; i++ {
		records = append(records, PlaintextRecord{
			Index: len(records),
			Label: fmt.Sprintf("id_same_%d", i),
			Value: formatCents(same),
			Kind:  Identical,
		})
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	span := hi - lo + 1
	for i := 0; i < cfg.RandomCount; i++ {
		records = append(records, PlaintextRecord{
			Index: len(records),
			Label: fmt.Sprintf("id_rand_%d", i),
			Value: formatCents(lo + rng.Int63n(span)),
			Kind:  Random,
		})
	}

	return records, nil
}
