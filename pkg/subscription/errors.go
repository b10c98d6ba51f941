package subscription

import "errors"

var (
	ErrNotFound          = errors.New("subscription not found")
	ErrCustomerNotFound  = errors.New("billing customer not found")
	ErrUnknownTier       = errors.New("unknown subscription tier")
	ErrQuotaExhausted    = errors.New("plan generation quota exhausted")
	ErrMissingUserID     = errors.New("user ID is required")
	ErrMissingExternalID = errors.New("external subscription ID is required")
)
