package subscription

import (
	"context"
	"time"
)

// Patch describes a partial subscription update applied atomically by
// UpdateByExternalID. Nil fields are left untouched.
type Patch struct {
	Tier             *Tier
	Status           *Status
	CurrentPeriodEnd *time.Time

	// ResetQuota sets quota_remaining and quota_max to the tier table's
	// ceiling for the row's tier after the patch is applied. A renewal
	// resets to the full ceiling; it never increments.
	ResetQuota bool

	// ClearExternalID nulls the external subscription ID, used when a
	// subscription is canceled and the row reverts to the free tier.
	ClearExternalID bool
}

// Store persists subscriptions. Every write is keyed by a stable
// identifier and must be a single atomic operation; see the package
// documentation for the concurrency contract.
type Store interface {
	// GetByUserID returns the subscription for a user.
	// Returns ErrNotFound if no row exists.
	GetByUserID(ctx context.Context, userID string) (*Subscription, error)

	// GetByExternalID returns the subscription carrying the given
	// external subscription ID. Returns ErrNotFound if no row exists.
	GetByExternalID(ctx context.Context, externalID string) (*Subscription, error)

	// Upsert creates or fully overwrites the row keyed by sub.UserID.
	// The unique constraint on the user ID guarantees concurrent upserts
	// for the same user never produce duplicate rows.
	Upsert(ctx context.Context, sub *Subscription) error

	// CreateIfAbsent inserts the row only when no subscription exists
	// for sub.UserID. An existing row is left untouched, making repeated
	// identity-creation events a no-op.
	CreateIfAbsent(ctx context.Context, sub *Subscription) error

	// UpdateByExternalID applies patch to the row carrying externalID as
	// one atomic statement. Returns ErrNotFound when no row matches so
	// the caller can surface a retryable failure instead of fabricating
	// state.
	UpdateByExternalID(ctx context.Context, externalID string, patch Patch) error

	// ConsumeQuota atomically decrements quota_remaining when it is
	// positive. Returns ErrQuotaExhausted when the quota is spent and
	// ErrNotFound when the user has no subscription. The check and the
	// decrement are one operation; two concurrent callers can never
	// both spend the last unit.
	ConsumeQuota(ctx context.Context, userID string) error

	// DeleteByUserID removes the user's subscription row. Deleting a
	// missing row is not an error.
	DeleteByUserID(ctx context.Context, userID string) error
}

// CustomerStore persists the user to billing-customer mapping.
type CustomerStore interface {
	// GetByUserID returns the customer row for a user.
	// Returns ErrCustomerNotFound if no row exists.
	GetByUserID(ctx context.Context, userID string) (*Customer, error)

	// CreateIfAbsent inserts the row only when the user has no customer
	// record yet; an existing record keeps its external ID.
	CreateIfAbsent(ctx context.Context, customer *Customer) error

	// Upsert creates or overwrites the row keyed by customer.UserID,
	// replacing any placeholder external ID.
	Upsert(ctx context.Context, customer *Customer) error

	// DeleteByUserID removes the customer row. Deleting a missing row is
	// not an error.
	DeleteByUserID(ctx context.Context, userID string) error
}

// PlanStore is the slice of marketing-plan persistence this subsystem
// needs: cascading removal of a user's generated plans when their
// identity is deleted. Plan creation and retrieval live elsewhere.
type PlanStore interface {
	DeleteByUserID(ctx context.Context, userID string) error
}
