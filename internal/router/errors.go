package router

import (
	"errors"
	"fmt"
	"strings"
)

// Terminal routing errors
var (
	// ErrPrimaryFailed indicates the primary failed and fallback was disabled or unavailable
	ErrPrimaryFailed = errors.New("primary source failed")

	// ErrAllSourcesExhausted indicates every source in the chain failed
	ErrAllSourcesExhausted = errors.New("all sources exhausted")
)

// AttemptError records why one chain entry failed.
type AttemptError struct {
	Source   string
	Position int
	Err      error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// ExhaustedError is the single terminal error Route returns. It matches
// ErrPrimaryFailed or ErrAllSourcesExhausted, and every attempt's cause, via
// errors.Is.
type ExhaustedError struct {
	// Kind is ErrPrimaryFailed, ErrAllSourcesExhausted, or the caller's
	// context error when cancellation cut the chain short
	Kind     error
	Attempts []*AttemptError

	// Complete is true when every chain entry was attempted. A failed
	// single-entry chain is both ErrPrimaryFailed and ErrAllSourcesExhausted.
	Complete bool
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.Error()
	}
	return fmt.Sprintf("%v: %s", e.Kind, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts)+2)
	errs = append(errs, e.Kind)
	if e.Kind != ErrAllSourcesExhausted && e.Complete {
		errs = append(errs, ErrAllSourcesExhausted)
	}
	for _, a := range e.Attempts {
		errs = append(errs, a)
	}
	return errs
}

// Causes returns the per-source failure causes keyed by source name.
func (e *ExhaustedError) Causes() map[string]error {
	out := make(map[string]error, len(e.Attempts))
	for _, a := range e.Attempts {
		out[a.Source] = a.Err
	}
	return out
}
