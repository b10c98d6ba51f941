package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Tier is a named subscription level determining the quota ceiling.
type Tier string

const (
	TierFree   Tier = "free"
	TierPro    Tier = "pro"
	TierExpert Tier = "expert"
)

// tierQuotas is the single source of truth for quota ceilings.
// Both initial subscription creation and billing-period renewals consult
// this table, never a value carried in an event payload.
var tierQuotas = map[Tier]int{
	TierFree:   1,
	TierPro:    10,
	TierExpert: 20,
}

// QuotaForTier returns the quota ceiling for a tier.
// The second return value is false for tiers not present in the table,
// which callers must treat as a malformed event rather than defaulting.
func QuotaForTier(t Tier) (int, bool) {
	quota, ok := tierQuotas[t]
	return quota, ok
}

// Valid reports whether the tier exists in the quota table.
func (t Tier) Valid() bool {
	_, ok := tierQuotas[t]
	return ok
}

// Status represents the current state of a subscription.
type Status string

const (
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// defaultPeriod is the informational period length assigned to free
// subscriptions that have no billing provider driving renewals.
const defaultPeriod = 30 * 24 * time.Hour

// Subscription is a user's billing state. One row per user.
//
// CurrentPeriodEnd is informational only. Nothing in this system
// compares it against the wall clock to expire a subscription; tier and
// status change exclusively in response to explicit billing events.
type Subscription struct {
	UserID                 string    `json:"user_id"`
	Tier                   Tier      `json:"tier"`
	Status                 Status    `json:"status"`
	CurrentPeriodEnd       time.Time `json:"current_period_end"`
	QuotaRemaining         int       `json:"quota_remaining"`
	QuotaMax               int       `json:"quota_max"`
	ExternalSubscriptionID string    `json:"external_subscription_id,omitempty"` // empty when tier is free
	CreatedAt              time.Time `json:"created_at"`
	UpdatedAt              time.Time `json:"updated_at"`
}

func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

func (s *Subscription) IsPastDue() bool {
	return s.Status == StatusPastDue
}

func (s *Subscription) IsCanceled() bool {
	return s.Status == StatusCanceled
}

// NewFree returns the default subscription assigned on identity creation.
func NewFree(userID string, now time.Time) *Subscription {
	quota, _ := QuotaForTier(TierFree)
	return &Subscription{
		UserID:           userID,
		Tier:             TierFree,
		Status:           StatusActive,
		CurrentPeriodEnd: now.Add(defaultPeriod),
		QuotaRemaining:   quota,
		QuotaMax:         quota,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// Customer maps a user to the billing provider's customer record.
// Created with a placeholder external ID on identity creation; the
// placeholder is replaced once the provider assigns a permanent one at
// checkout.
type Customer struct {
	UserID             string    `json:"user_id"`
	ExternalCustomerID string    `json:"external_customer_id"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// NewCustomer returns a customer row with a placeholder external ID.
func NewCustomer(userID string, now time.Time) *Customer {
	return &Customer{
		UserID:             userID,
		ExternalCustomerID: "temp_" + uuid.New().String(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
