package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/growthacademy/subscriptions/pkg/subscription"
)

// identityEnvelope matches the identity provider's webhook shape:
// a type tag plus a data object describing the user.
type identityEnvelope struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// NormalizeIdentity parses a raw identity-provider payload into a
// domain event. Unrecognized event types return Ignored.
func NormalizeIdentity(raw []byte) (Event, error) {
	var env identityEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: type", ErrMissingField)
	}

	switch env.Type {
	case "user.created":
		if env.Data.ID == "" {
			return nil, fmt.Errorf("%w: data.id", ErrMissingField)
		}
		return IdentityCreated{
			UserID:      env.Data.ID,
			Email:       firstEmail(env),
			DisplayName: strings.TrimSpace(env.Data.FirstName + " " + env.Data.LastName),
		}, nil

	case "user.updated":
		if env.Data.ID == "" {
			return nil, fmt.Errorf("%w: data.id", ErrMissingField)
		}
		return IdentityUpdated{
			UserID: env.Data.ID,
			Email:  firstEmail(env),
		}, nil

	case "user.deleted":
		if env.Data.ID == "" {
			return nil, fmt.Errorf("%w: data.id", ErrMissingField)
		}
		return IdentityDeleted{UserID: env.Data.ID}, nil

	default:
		return Ignored{RawType: env.Type}, nil
	}
}

func firstEmail(env identityEnvelope) string {
	if len(env.Data.EmailAddresses) == 0 {
		return ""
	}
	return env.Data.EmailAddresses[0].EmailAddress
}

// billingEnvelope matches the billing provider's webhook shape: a type
// tag plus a data.object whose fields depend on the event type.
type billingEnvelope struct {
	Type string `json:"type"`
	Data struct {
		Object billingObject `json:"object"`
	} `json:"data"`
}

type billingObject struct {
	ID               string            `json:"id"`
	Subscription     string            `json:"subscription"`
	Customer         string            `json:"customer"`
	CurrentPeriodEnd int64             `json:"current_period_end"`
	Metadata         map[string]string `json:"metadata"`
}

// NormalizeBilling parses a raw billing-provider payload into a domain
// event. Unrecognized event types return Ignored. Tier validity is not
// checked here; the reconciliation engine rejects tiers outside the
// quota table.
func NormalizeBilling(raw []byte) (Event, error) {
	var env billingEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPayload, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: type", ErrMissingField)
	}

	obj := env.Data.Object

	switch env.Type {
	case "checkout.session.completed":
		userID := obj.Metadata["userId"]
		if userID == "" {
			return nil, fmt.Errorf("%w: metadata.userId", ErrMissingField)
		}
		rawTier := obj.Metadata["tier"]
		if rawTier == "" {
			return nil, fmt.Errorf("%w: metadata.tier", ErrMissingField)
		}
		if obj.Subscription == "" {
			return nil, fmt.Errorf("%w: data.object.subscription", ErrMissingField)
		}
		return CheckoutCompleted{
			UserID:                 userID,
			Tier:                   normalizeTier(rawTier),
			ExternalCustomerID:     obj.Customer,
			ExternalSubscriptionID: obj.Subscription,
			CurrentPeriodEnd:       unixOrZero(obj.CurrentPeriodEnd),
		}, nil

	case "invoice.payment_succeeded":
		if obj.Subscription == "" {
			return nil, fmt.Errorf("%w: data.object.subscription", ErrMissingField)
		}
		return InvoicePaid{
			ExternalSubscriptionID: obj.Subscription,
			CurrentPeriodEnd:       unixOrZero(obj.CurrentPeriodEnd),
		}, nil

	case "invoice.payment_failed":
		if obj.Subscription == "" {
			return nil, fmt.Errorf("%w: data.object.subscription", ErrMissingField)
		}
		return InvoicePaymentFailed{ExternalSubscriptionID: obj.Subscription}, nil

	case "customer.subscription.deleted":
		if obj.ID == "" {
			return nil, fmt.Errorf("%w: data.object.id", ErrMissingField)
		}
		return SubscriptionCanceled{ExternalSubscriptionID: obj.ID}, nil

	default:
		return Ignored{RawType: env.Type}, nil
	}
}

// normalizeTier maps the billing provider's price aliases onto domain
// tiers. Checkout metadata historically carried "growth-pro" and
// "growth-expert"; bare tier names pass through for newer checkouts.
// Unknown values pass through unmapped so the engine can reject them
// against the quota table.
func normalizeTier(raw string) subscription.Tier {
	switch raw {
	case "growth-pro", "pro":
		return subscription.TierPro
	case "growth-expert", "expert":
		return subscription.TierExpert
	case "free":
		return subscription.TierFree
	default:
		return subscription.Tier(raw)
	}
}

func unixOrZero(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
