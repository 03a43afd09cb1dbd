package storage

import "errors"

// Error taxonomy shared across the service.
var (
	// ErrNotFound is returned when a requested symbol or currency code is unknown.
	ErrNotFound = errors.New("not found")

	// ErrRateUnavailable is returned when a fiat rate or crypto price needed
	// for a requested pair is missing or non-positive.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamTimeout is returned when an external fetch exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrUpstream is returned on a non-2xx or malformed upstream response.
	ErrUpstream = errors.New("upstream error")

	// ErrPersistence is returned when a local durable write fails.
	// Callers log it; it never invalidates the in-memory result.
	ErrPersistence = errors.New("persistence error")
)
