package models

import "errors"

var (
	// ErrIncompleteData means a required descriptor field is missing.
	ErrIncompleteData = errors.New("incomplete extension data")

	// ErrMalformedInput means a URL or identifier failed shape validation.
	ErrMalformedInput = errors.New("malformed input")

	// ErrCapabilityFailure wraps a rejection from the download or clipboard capability.
	ErrCapabilityFailure = errors.New("capability failure")

	ErrDomainNotAllowed   = errors.New("domain not allowed")
	ErrProtocolNotAllowed = errors.New("protocol not allowed")
)
