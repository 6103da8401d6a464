package core

import (
	"errors"
	"fmt"
)

// Sentinel errors for run failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrInput is wrapped by every error caused by caller input.
	ErrInput = errors.New("core: invalid input")

	// ErrUnknownSuite indicates a suite name missing from the catalog.
	ErrUnknownSuite = fmt.Errorf("%w: a valid test suite must be selected", ErrInput)

	// ErrMissingMarker indicates a template without a $PAYLOAD$ marker.
	ErrMissingMarker = fmt.Errorf("%w: the request template has no $PAYLOAD$ marker", ErrInput)

	// ErrMissingURL indicates a request without a URL.
	ErrMissingURL = fmt.Errorf("%w: request object with a URL is required", ErrInput)

	// ErrBaseline is wrapped by every BaselineError.
	ErrBaseline = errors.New("core: baseline request failed")
)

// BaselineError reports that the unmodified request could not be executed.
// The run produced no results.
type BaselineError struct {
	Err error
}

func (e *BaselineError) Error() string {
	return ErrBaseline.Error() + ": " + e.Err.Error()
}

func (e *BaselineError) Unwrap() []error {
	return []error{ErrBaseline, e.Err}
}
