package orchestrator

import (
	"errors"
	"fmt"
)

// Kind names a request-level failure class. It prefixes the error text of a
// failed response.
type Kind string

const (
	KindPlanning  Kind = "PlanningError"
	KindSynthesis Kind = "SynthesisError"
)

// Sentinels for errors.Is checks against *Error.
var (
	ErrPlanning  = errors.New("planning failed")
	ErrSynthesis = errors.New("synthesis failed")
)

// Error is a failed request.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindPlanning:
		return target == ErrPlanning
	case KindSynthesis:
		return target == ErrSynthesis
	}
	return false
}

func planningError(err error) *Error  { return &Error{Kind: KindPlanning, Err: err} }
func synthesisError(err error) *Error { return &Error{Kind: KindSynthesis, Err: err} }
