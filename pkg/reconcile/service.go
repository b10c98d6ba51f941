package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/growthacademy/subscriptions/pkg/audit"
	"github.com/growthacademy/subscriptions/pkg/event"
	"github.com/growthacademy/subscriptions/pkg/subscription"
)

// Service is the reconciliation engine. It owns all writes to the
// subscription and customer stores; everything else reads.
type Service struct {
	subs      subscription.Store
	customers subscription.CustomerStore
	plans     subscription.PlanStore
	auditor   *audit.Logger
	log       *slog.Logger
}

// New creates the engine. Panics if a required dependency is nil to
// fail fast during initialization.
func New(subs subscription.Store, customers subscription.CustomerStore, plans subscription.PlanStore, auditor *audit.Logger, log *slog.Logger) *Service {
	if subs == nil {
		panic("reconcile: subscription store is required")
	}
	if customers == nil {
		panic("reconcile: customer store is required")
	}
	if plans == nil {
		panic("reconcile: plan store is required")
	}
	if auditor == nil {
		panic("reconcile: audit logger is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		subs:      subs,
		customers: customers,
		plans:     plans,
		auditor:   auditor,
		log:       log,
	}
}

// Apply runs one event through the state machine. A nil return means
// the event's effects are durably committed (or the event required
// none); any error means nothing observable changed beyond possibly
// idempotent partial creations, and the delivery should be retried by
// the sender.
func (s *Service) Apply(ctx context.Context, ev event.Event) error {
	switch e := ev.(type) {
	case event.IdentityCreated:
		return s.identityCreated(ctx, e)
	case event.IdentityUpdated:
		return s.identityUpdated(ctx, e)
	case event.IdentityDeleted:
		return s.identityDeleted(ctx, e)
	case event.CheckoutCompleted:
		return s.checkoutCompleted(ctx, e)
	case event.InvoicePaid:
		return s.invoicePaid(ctx, e)
	case event.InvoicePaymentFailed:
		return s.invoicePaymentFailed(ctx, e)
	case event.SubscriptionCanceled:
		return s.subscriptionCanceled(ctx, e)
	case event.Ignored:
		s.log.InfoContext(ctx, "acknowledging unhandled webhook event",
			slog.String("raw_type", e.RawType))
		return nil
	default:
		// The union is sealed; a new variant without a case here is a
		// programming error, not a delivery problem.
		return fmt.Errorf("unhandled event type %T", ev)
	}
}

// identityCreated provisions the default free subscription and a
// placeholder billing customer. Both creations are insert-if-absent, so
// a redelivered event changes nothing.
func (s *Service) identityCreated(ctx context.Context, e event.IdentityCreated) error {
	now := time.Now().UTC()

	if err := s.customers.CreateIfAbsent(ctx, subscription.NewCustomer(e.UserID, now)); err != nil {
		return fmt.Errorf("create customer for %s: %w", e.UserID, err)
	}
	if err := s.subs.CreateIfAbsent(ctx, subscription.NewFree(e.UserID, now)); err != nil {
		return fmt.Errorf("create subscription for %s: %w", e.UserID, err)
	}

	s.auditor.Record(ctx, e.UserID, e.Type(), map[string]any{
		"email":  e.Email,
		"name":   e.DisplayName,
		"tier":   subscription.TierFree,
		"status": subscription.StatusActive,
	})
	return nil
}

// identityUpdated has no state-machine effect; the subscription row is
// untouched and only the audit trail records the change.
func (s *Service) identityUpdated(ctx context.Context, e event.IdentityUpdated) error {
	s.auditor.Record(ctx, e.UserID, e.Type(), map[string]any{
		"email": e.Email,
	})
	return nil
}

// identityDeleted cascades: subscription, customer, and the user's
// generated plans all go. Deleting absent rows is a no-op, so replays
// converge.
func (s *Service) identityDeleted(ctx context.Context, e event.IdentityDeleted) error {
	if err := s.subs.DeleteByUserID(ctx, e.UserID); err != nil {
		return fmt.Errorf("delete subscription for %s: %w", e.UserID, err)
	}
	if err := s.customers.DeleteByUserID(ctx, e.UserID); err != nil {
		return fmt.Errorf("delete customer for %s: %w", e.UserID, err)
	}
	if err := s.plans.DeleteByUserID(ctx, e.UserID); err != nil {
		return fmt.Errorf("delete plans for %s: %w", e.UserID, err)
	}

	s.auditor.Record(ctx, e.UserID, e.Type(), nil)
	return nil
}

// checkoutCompleted activates the purchased tier. The whole row is
// overwritten keyed by user ID, so a mid-cycle tier change resets quota
// to the new tier's full ceiling rather than prorating, and a replayed
// checkout lands on the same state.
func (s *Service) checkoutCompleted(ctx context.Context, e event.CheckoutCompleted) error {
	quota, ok := subscription.QuotaForTier(e.Tier)
	if !ok {
		return fmt.Errorf("%w: %q", subscription.ErrUnknownTier, e.Tier)
	}

	now := time.Now().UTC()

	if e.ExternalCustomerID != "" {
		err := s.customers.Upsert(ctx, &subscription.Customer{
			UserID:             e.UserID,
			ExternalCustomerID: e.ExternalCustomerID,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if err != nil {
			return fmt.Errorf("upsert customer for %s: %w", e.UserID, err)
		}
	}

	periodEnd := e.CurrentPeriodEnd
	if periodEnd.IsZero() {
		periodEnd = now.Add(30 * 24 * time.Hour)
	}

	err := s.subs.Upsert(ctx, &subscription.Subscription{
		UserID:                 e.UserID,
		Tier:                   e.Tier,
		Status:                 subscription.StatusActive,
		CurrentPeriodEnd:       periodEnd,
		QuotaRemaining:         quota,
		QuotaMax:               quota,
		ExternalSubscriptionID: e.ExternalSubscriptionID,
		CreatedAt:              now,
		UpdatedAt:              now,
	})
	if err != nil {
		return fmt.Errorf("upsert subscription for %s: %w", e.UserID, err)
	}

	s.auditor.Record(ctx, e.UserID, e.Type(), map[string]any{
		"tier":                     e.Tier,
		"external_subscription_id": e.ExternalSubscriptionID,
		"quota_max":                quota,
	})
	return nil
}

// invoicePaid marks a renewal: status back to active and quota reset to
// the full ceiling for the row's current tier. A replayed invoice
// resets to the same ceiling, never increments.
func (s *Service) invoicePaid(ctx context.Context, e event.InvoicePaid) error {
	// Resolve the owner first; an invoice for a subscription this
	// system has never seen is rejected, not fabricated. The lookup
	// only attributes the audit entry, the state change below stands
	// alone as one atomic patch.
	sub, err := s.subs.GetByExternalID(ctx, e.ExternalSubscriptionID)
	if err != nil {
		return fmt.Errorf("resolve subscription %s: %w", e.ExternalSubscriptionID, err)
	}

	status := subscription.StatusActive
	patch := subscription.Patch{
		Status:     &status,
		ResetQuota: true,
	}
	if !e.CurrentPeriodEnd.IsZero() {
		patch.CurrentPeriodEnd = &e.CurrentPeriodEnd
	}

	if err := s.subs.UpdateByExternalID(ctx, e.ExternalSubscriptionID, patch); err != nil {
		return fmt.Errorf("renew subscription %s: %w", e.ExternalSubscriptionID, err)
	}

	s.auditor.Record(ctx, sub.UserID, e.Type(), map[string]any{
		"external_subscription_id": e.ExternalSubscriptionID,
		"tier":                     sub.Tier,
	})
	return nil
}

// invoicePaymentFailed flips status to past_due. Tier and quota stay
// untouched; access decisions for past-due subscriptions belong to the
// quota consumer, not this transition.
func (s *Service) invoicePaymentFailed(ctx context.Context, e event.InvoicePaymentFailed) error {
	sub, err := s.subs.GetByExternalID(ctx, e.ExternalSubscriptionID)
	if err != nil {
		return fmt.Errorf("resolve subscription %s: %w", e.ExternalSubscriptionID, err)
	}

	status := subscription.StatusPastDue
	patch := subscription.Patch{Status: &status}

	if err := s.subs.UpdateByExternalID(ctx, e.ExternalSubscriptionID, patch); err != nil {
		return fmt.Errorf("mark subscription %s past due: %w", e.ExternalSubscriptionID, err)
	}

	s.auditor.Record(ctx, sub.UserID, e.Type(), map[string]any{
		"external_subscription_id": e.ExternalSubscriptionID,
	})
	return nil
}

// subscriptionCanceled reverts the row to the free tier and severs the
// link to the provider subscription.
func (s *Service) subscriptionCanceled(ctx context.Context, e event.SubscriptionCanceled) error {
	sub, err := s.subs.GetByExternalID(ctx, e.ExternalSubscriptionID)
	if err != nil {
		return fmt.Errorf("resolve subscription %s: %w", e.ExternalSubscriptionID, err)
	}

	tier := subscription.TierFree
	status := subscription.StatusCanceled
	patch := subscription.Patch{
		Tier:            &tier,
		Status:          &status,
		ResetQuota:      true,
		ClearExternalID: true,
	}

	if err := s.subs.UpdateByExternalID(ctx, e.ExternalSubscriptionID, patch); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", e.ExternalSubscriptionID, err)
	}

	s.auditor.Record(ctx, sub.UserID, e.Type(), map[string]any{
		"external_subscription_id": e.ExternalSubscriptionID,
		"previous_tier":            sub.Tier,
	})
	return nil
}

// Snapshot returns the current subscription state for a user without
// mutating anything. This is the only code path behind the status-check
// endpoint; it deliberately shares nothing with the write paths so a
// stale CurrentPeriodEnd can never trigger a downgrade on read.
func (s *Service) Snapshot(ctx context.Context, userID string) (*subscription.Subscription, error) {
	return s.subs.GetByUserID(ctx, userID)
}

// ConsumeQuota spends one unit of the user's quota ahead of paid work.
// The check and the decrement are a single atomic store operation.
func (s *Service) ConsumeQuota(ctx context.Context, userID string) error {
	if err := s.subs.ConsumeQuota(ctx, userID); err != nil {
		return err
	}

	s.auditor.Record(ctx, userID, "quota.consumed", nil)
	return nil
}
