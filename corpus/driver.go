// Package corpus generates plaintext workloads and drives them through the encryption service,
// verifying every round trip.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/scode/transitprobe/rewardsapi"
)

// Service is the part of the encryption service the driver needs. *rewardsapi.Client
// implements it.
type Service interface {
	Create(ctx context.Context, label, value string) (rewardsapi.Created, error)
	Decrypt(ctx context.Context, id int64) (rewardsapi.Decrypted, error)
}

// Sink receives each verified result as soon as its round trip completes. Calls are serialized.
type Sink func(ObservedResult)

// Progress is reported after every finished record, successful or not.
type Progress struct {
	Kind  Kind
	Done  int
	Total int
}

// Summary describes how a run went. It is returned even when the run is aborted.
type Summary struct {
	Planned   int
	Completed int
	Failures  []RecordFailure
	Elapsed   time.Duration
}

type Driver struct {
	cfg        Config
	service    Service
	onProgress func(Progress)
}

func New(cfg Config, service Service) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	if service == nil {
		return nil, errors.New("no encryption service given")
	}
	return &Driver{cfg: cfg, service: service}, nil
}

// OnProgress registers fn to be called as records finish. Calls are serialized.
func (d *Driver) OnProgress(fn func(Progress)) {
	d.onProgress = fn
}

// run holds the mutable state of a single Run call.
type run struct {
	d      *Driver
	sink   Sink
	budget int
	stop   atomic.Bool

	mu         sync.Mutex
	summary    Summary
	violations []error
	exhausted  bool
}

// Run pushes the whole corpus through the service, identical-kind records first. It returns
// early with a *CorrectnessError (joined with any sibling violations from in-flight records)
// as soon as a decrypted value mismatches, or with ErrFailureBudget once too many records hit
// service failures. A run cannot be resumed.
func (d *Driver) Run(ctx context.Context, sink Sink) (Summary, error) {
	start := time.Now()
	records, err := Generate(d.cfg)
	if err != nil {
		return Summary{}, err
	}

	r := &run{
		d:      d,
		sink:   sink,
		budget: int(math.Floor(d.cfg.MaxFailureRate * float64(len(records)))),
	}
	r.summary.Planned = len(records)

	identical := records[:d.cfg.IdenticalCount]
	random := records[d.cfg.IdenticalCount:]
	for _, group := range [][]PlaintextRecord{identical, random} {
		r.runGroup(ctx, group)
		if r.stop.Load() || ctx.Err() != nil {
			break
		}
	}

	r.summary.Elapsed = time.Since(start)

	switch {
	case len(r.violations) > 0:
		return r.summary, errors.Join(r.violations...)
	case r.exhausted:
		return r.summary, fmt.Errorf("%w: %d of %d records failed (budget %d)",
			ErrFailureBudget, len(r.summary.Failures), r.summary.Planned, r.budget)
	case ctx.Err() != nil:
		return r.summary, fmt.Errorf("run interrupted: %w", ctx.Err())
	}
	return r.summary, nil
}

// runGroup processes records of one kind with at most Workers in flight. With one worker the
// next record starts only after the previous one has been fully handled, so a fatal record
// always prevents its successor from starting.
func (r *run) runGroup(ctx context.Context, group []PlaintextRecord) {
	var g errgroup.Group
	g.SetLimit(r.d.cfg.Workers)

	done := 0
	for _, rec := range group {
		if r.stop.Load() || ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if r.stop.Load() || ctx.Err() != nil {
				return nil
			}
			res, err := r.d.roundTrip(ctx, rec)

			r.mu.Lock()
			defer r.mu.Unlock()
			r.record(ctx, rec, res, err)
			done++
			if r.d.onProgress != nil {
				r.d.onProgress(Progress{Kind: rec.Kind, Done: done, Total: len(group)})
			}
			return nil
		})
	}
	// Goroutines always return nil; outcomes are filed on r.
	g.Wait()
}

// record files the outcome of one round trip. Callers hold r.mu.
func (r *run) record(ctx context.Context, rec PlaintextRecord, res ObservedResult, err error) {
	var ce *CorrectnessError
	switch {
	case err == nil:
		r.summary.Completed++
		if r.sink != nil {
			r.sink(res)
		}
	case errors.As(err, &ce):
		log.Printf("  [probe] FATAL %v", ce)
		r.violations = append(r.violations, err)
		r.stop.Store(true)
	case ctx.Err() != nil:
		// Interrupted; not the service's fault.
	default:
		log.Printf("  [probe] record %d (%s) failed: %v", rec.Index, rec.Label, err)
		r.summary.Failures = append(r.summary.Failures, RecordFailure{Record: rec, Err: err})
		if len(r.summary.Failures) > r.budget {
			r.exhausted = true
			r.stop.Store(true)
		}
	}
}

func (d *Driver) roundTrip(ctx context.Context, rec PlaintextRecord) (ObservedResult, error) {
	created, err := d.service.Create(ctx, rec.Label, rec.Value)
	if err != nil {
		return ObservedResult{}, err
	}

	dec, err := d.service.Decrypt(ctx, created.ID)
	if err != nil {
		return ObservedResult{}, err
	}

	if !SameDecimal(rec.Value, dec.Value) {
		return ObservedResult{}, &CorrectnessError{Record: rec, RecordID: created.ID, Got: dec.Value}
	}

	return ObservedResult{
		Index:          rec.Index,
		RecordID:       created.ID,
		Label:          rec.Label,
		Plaintext:      rec.Value,
		Ciphertext:     created.Ciphertext,
		DecryptedValue: dec.Value,
		EncryptLatency: created.Latency,
		DecryptLatency: dec.Latency,
		Kind:           rec.Kind,
	}, nil
}

// Collect runs d and gathers every result. On error the partial results are discarded so no
// analysis can run over an aborted corpus.
func Collect(ctx context.Context, d *Driver) ([]ObservedResult, Summary, error) {
	var results []ObservedResult
	summary, err := d.Run(ctx, func(res ObservedResult) {
		results = append(results, res)
	})
	if err != nil {
		return nil, summary, err
	}
	return results, summary, nil
}
