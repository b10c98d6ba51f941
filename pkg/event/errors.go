package event

import "errors"

var (
	// ErrMalformedPayload indicates the raw body was not valid JSON of
	// the expected envelope shape
	ErrMalformedPayload = errors.New("malformed webhook payload")

	// ErrMissingField indicates a required field was absent from an
	// otherwise recognized event
	ErrMissingField = errors.New("required field missing from webhook payload")
)
