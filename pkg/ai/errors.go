package ai

import (
	"errors"
	"fmt"
)

// Sentinel errors for AI client failure modes.
// Callers should use errors.Is() to check for these.
var (
	// ErrNoAPIKey indicates a client was configured without credentials.
	ErrNoAPIKey = errors.New("ai: API key is required")

	// ErrUnknownProvider indicates an unsupported provider name.
	ErrUnknownProvider = errors.New("ai: unknown provider")

	// ErrEmptyResponse indicates the service answered without any text.
	ErrEmptyResponse = errors.New("ai: empty response")

	// ErrMalformedResponse indicates the service reply could not be decoded.
	ErrMalformedResponse = errors.New("ai: malformed response")
)

// APIError is a non-2xx reply from the service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("ai: service returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("ai: service returned HTTP %d: %s", e.StatusCode, e.Body)
}
