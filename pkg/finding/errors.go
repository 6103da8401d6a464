package finding

import "errors"

// Sentinel errors for verdict validation.
// Callers should use errors.Is() to check for these.
var (
	// ErrInvalidSeverity indicates a severity outside the vocabulary.
	ErrInvalidSeverity = errors.New("finding: invalid severity")

	// ErrMissingName indicates a verdict without a name.
	ErrMissingName = errors.New("finding: missing vulnerability name")
)
