package webhook

import "errors"

var (
	// ErrMissingSecret indicates no signing secret was configured
	ErrMissingSecret = errors.New("signing secret is required")

	// ErrEmptyPayload indicates the request body was empty
	ErrEmptyPayload = errors.New("webhook payload is empty")

	// ErrMalformedHeader indicates the signature header could not be parsed
	ErrMalformedHeader = errors.New("malformed signature header")

	// ErrUnsupportedVersion indicates the expected v1 version tag is absent
	ErrUnsupportedVersion = errors.New("unsupported signature version")

	// ErrTimestampTooOld indicates the signature is outside the freshness window
	ErrTimestampTooOld = errors.New("signature timestamp too old")

	// ErrTimestampInFuture indicates the signature timestamp is ahead of the clock
	ErrTimestampInFuture = errors.New("signature timestamp is in the future")

	// ErrSignatureMismatch indicates the recomputed digest did not match
	ErrSignatureMismatch = errors.New("signature mismatch")
)
