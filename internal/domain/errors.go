package domain

import "errors"

// Failure taxonomy shared by every layer. Adapters wrap these with context so
// callers can match them with errors.Is.
var (
	// ErrNetworkFailure covers transport errors and unexpected backend statuses.
	ErrNetworkFailure = errors.New("network failure")

	// ErrMalformedSchema means an upstream record matched none of the known shapes.
	ErrMalformedSchema = errors.New("malformed schema")

	// ErrNotFound means a cart, cart index, location or property is missing.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds rejects a build whose total cost exceeds the budget.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrEnrichmentDegraded accompanies a location that carries fallback metrics.
	ErrEnrichmentDegraded = errors.New("enrichment degraded")

	// ErrSeriesLengthMismatch rejects a simulation whose two series differ in length.
	ErrSeriesLengthMismatch = errors.New("simulation series length mismatch")

	ErrLocationNotEnriched = errors.New("location not enriched")
	ErrUnknownLocation     = errors.New("unknown location")
	ErrUnknownBuilding     = errors.New("unknown building option")
	ErrNoSelection         = errors.New("no location selected")

	// ErrStaleSelection is returned when a newer selection superseded the one
	// being enriched; the stale result is discarded.
	ErrStaleSelection = errors.New("selection superseded")

	ErrInvalidCatalog = errors.New("invalid building catalog")
)
