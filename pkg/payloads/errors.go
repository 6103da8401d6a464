package payloads

import "errors"

// ErrInvalidCatalog indicates a catalog document failed validation.
var ErrInvalidCatalog = errors.New("payloads: invalid catalog")
