package corpus

import (
	"errors"
	"fmt"
)

var (
	// ErrCorrectness matches every *CorrectnessError.
	ErrCorrectness = errors.New("round trip returned a different value")

	// ErrFailureBudget is returned once service failures exceed Config.MaxFailureRate.
	ErrFailureBudget = errors.New("service failure budget exhausted")
)

// CorrectnessError identifies a record whose decrypted value differs from what was stored.
type CorrectnessError struct {
	Record   PlaintextRecord
	RecordID int64
	Got      string
}

func (e *CorrectnessError) Error() string {
	return fmt.Sprintf("record %d (%s, %s, id %d): stored %s but service decrypted %s",
		e.Record.Index, e.Record.Label, e.Record.Kind, e.RecordID, e.Record.Value, e.Got)
}

func (e *CorrectnessError) Is(target error) bool {
	return target == ErrCorrectness
}

// RecordFailure is a record that could not complete its round trip because the service failed.
type RecordFailure struct {
	Record PlaintextRecord
	Err    error
}
