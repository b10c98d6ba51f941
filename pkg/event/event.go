package event

import (
	"time"

	"github.com/growthacademy/subscriptions/pkg/subscription"
)

// Event is the closed union of domain events the reconciliation engine
// understands. The unexported marker method seals the set: only types in
// this package satisfy the interface.
type Event interface {
	// Type returns a stable dotted name for logging and audit entries.
	Type() string

	domainEvent()
}

// IdentityCreated signals a new user at the identity provider.
type IdentityCreated struct {
	UserID      string
	Email       string
	DisplayName string
}

func (IdentityCreated) Type() string { return "identity.created" }
func (IdentityCreated) domainEvent() {}

// IdentityDeleted signals that a user was removed at the identity
// provider; all their rows are cascade-deleted.
type IdentityDeleted struct {
	UserID string
}

func (IdentityDeleted) Type() string { return "identity.deleted" }
func (IdentityDeleted) domainEvent() {}

// IdentityUpdated signals a profile change. Informational only, it
// never changes subscription state.
type IdentityUpdated struct {
	UserID string
	Email  string
}

func (IdentityUpdated) Type() string { return "identity.updated" }
func (IdentityUpdated) domainEvent() {}

// CheckoutCompleted signals a finished checkout session at the billing
// provider: the user subscribed to a paid tier.
type CheckoutCompleted struct {
	UserID                 string
	Tier                   subscription.Tier
	ExternalCustomerID     string
	ExternalSubscriptionID string
	CurrentPeriodEnd       time.Time
}

func (CheckoutCompleted) Type() string { return "checkout.completed" }
func (CheckoutCompleted) domainEvent() {}

// InvoicePaid signals a successful billing-period renewal.
type InvoicePaid struct {
	ExternalSubscriptionID string
	CurrentPeriodEnd       time.Time
}

func (InvoicePaid) Type() string { return "invoice.paid" }
func (InvoicePaid) domainEvent() {}

// InvoicePaymentFailed signals a failed renewal charge.
type InvoicePaymentFailed struct {
	ExternalSubscriptionID string
}

func (InvoicePaymentFailed) Type() string { return "invoice.payment_failed" }
func (InvoicePaymentFailed) domainEvent() {}

// SubscriptionCanceled signals that the provider-side subscription
// ended, whether by the user or by the provider.
type SubscriptionCanceled struct {
	ExternalSubscriptionID string
}

func (SubscriptionCanceled) Type() string { return "subscription.canceled" }
func (SubscriptionCanceled) domainEvent() {}

// Ignored wraps an event type this system does not handle. It is
// acknowledged and logged, never failed.
type Ignored struct {
	RawType string
}

func (Ignored) Type() string { return "ignored" }
func (Ignored) domainEvent() {}
