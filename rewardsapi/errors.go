package rewardsapi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrServiceFailure matches every *Error with errors.Is.
var ErrServiceFailure = errors.New("encryption service failure")

// Kind classifies how a call to the service failed.
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindTransport Kind = "transport"
	KindStatus    Kind = "status"
	KindResponse  Kind = "response"
)

// Error is a failed exchange with the encryption service.
type Error struct {
	Op       string
	Endpoint string
	Kind     Kind
	Status   int
	Body     string
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Op, e.Endpoint, e.Kind)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Body != "" {
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrServiceFailure
}
