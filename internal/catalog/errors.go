package catalog

import "errors"

// Failure classes of the catalog engine. Returned errors wrap one of these.
var (
	ErrUnsupportedQuery  = errors.New("unsupported query")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrFederation        = errors.New("federation failed")

	// ErrSourceNotFound accompanies ErrSourceUnavailable when a requested
	// source index does not exist.
	ErrSourceNotFound = errors.New("source not found")
)
