// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across normalizer/repo/service layers.
var (
	// ErrMalformedPayload indicates the raw payload is not parseable JSON.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrPayloadTooLarge indicates the serialized payload exceeds the configured ceiling.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrKindMismatch indicates the payload declares a record kind different from the endpoint.
	ErrKindMismatch = errors.New("record kind mismatch")

	// ErrFutureDate indicates the record date is strictly after today (UTC).
	ErrFutureDate = errors.New("date in the future")

	// ErrInvalidField indicates a required field is missing or unusable.
	ErrInvalidField = errors.New("invalid field")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates a failed API key check.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrRateLimited indicates a device exceeded its sync budget.
	ErrRateLimited = errors.New("rate limited")
)
