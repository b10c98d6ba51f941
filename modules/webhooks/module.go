// Package webhooks exposes the HTTP surface of the subscription core:
// the two inbound webhook endpoints and the read-only status check.
//
// Response contract for the webhook endpoints: 200 when processing
// succeeded or was an idempotent no-op, 400 for missing headers or a
// malformed payload, 401 for a failed signature check, 500 for any
// internal failure so the provider redelivers.
package webhooks

import (
	"context"

	"github.com/growthacademy/subscriptions/pkg/event"
	"github.com/growthacademy/subscriptions/pkg/subscription"
)

type Config struct {
	// IdentitySecret signs deliveries from the identity provider.
	IdentitySecret string `env:"IDENTITY_WEBHOOK_SECRET,required"`

	// BillingSecret signs deliveries from the billing provider.
	BillingSecret string `env:"BILLING_WEBHOOK_SECRET,required"`

	// MaxBodyBytes caps webhook request bodies.
	MaxBodyBytes int64 `env:"WEBHOOK_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Engine is the slice of the reconciliation service this module calls.
// Snapshot must be read-only; the status endpoint depends on it.
type Engine interface {
	Apply(ctx context.Context, ev event.Event) error
	Snapshot(ctx context.Context, userID string) (*subscription.Subscription, error)
}
