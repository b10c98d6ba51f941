package subscription

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore implements Store on PostgreSQL. Every mutation is a single
// statement keyed by user_id or external_subscription_id; the unique
// constraint on user_id turns concurrent upserts into last-write-wins
// instead of duplicate rows.
type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	if db == nil {
		panic("subscription: pgx pool is required")
	}
	return &PgStore{db: db}
}

const subscriptionColumns = `user_id, tier, status, current_period_end, quota_remaining, quota_max, COALESCE(external_subscription_id, ''), created_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(
		&sub.UserID,
		&sub.Tier,
		&sub.Status,
		&sub.CurrentPeriodEnd,
		&sub.QuotaRemaining,
		&sub.QuotaMax,
		&sub.ExternalSubscriptionID,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &sub, nil
}

func (s *PgStore) GetByUserID(ctx context.Context, userID string) (*Subscription, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	return scanSubscription(s.db.QueryRow(ctx, query, userID))
}

func (s *PgStore) GetByExternalID(ctx context.Context, externalID string) (*Subscription, error) {
	if externalID == "" {
		return nil, ErrMissingExternalID
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE external_subscription_id = $1`
	return scanSubscription(s.db.QueryRow(ctx, query, externalID))
}

func (s *PgStore) Upsert(ctx context.Context, sub *Subscription) error {
	if sub.UserID == "" {
		return ErrMissingUserID
	}

	query := `
		INSERT INTO subscriptions
			(user_id, tier, status, current_period_end, quota_remaining, quota_max, external_subscription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			quota_remaining = EXCLUDED.quota_remaining,
			quota_max = EXCLUDED.quota_max,
			external_subscription_id = EXCLUDED.external_subscription_id,
			updated_at = now()`

	_, err := s.db.Exec(ctx, query,
		sub.UserID, sub.Tier, sub.Status, sub.CurrentPeriodEnd,
		sub.QuotaRemaining, sub.QuotaMax, sub.ExternalSubscriptionID,
	)
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

func (s *PgStore) CreateIfAbsent(ctx context.Context, sub *Subscription) error {
	if sub.UserID == "" {
		return ErrMissingUserID
	}

	query := `
		INSERT INTO subscriptions
			(user_id, tier, status, current_period_end, quota_remaining, quota_max, external_subscription_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), now(), now())
		ON CONFLICT (user_id) DO NOTHING`

	_, err := s.db.Exec(ctx, query,
		sub.UserID, sub.Tier, sub.Status, sub.CurrentPeriodEnd,
		sub.QuotaRemaining, sub.QuotaMax, sub.ExternalSubscriptionID,
	)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (s *PgStore) UpdateByExternalID(ctx context.Context, externalID string, patch Patch) error {
	if externalID == "" {
		return ErrMissingExternalID
	}

	set := []string{"updated_at = now()"}
	args := []any{externalID}

	if patch.Tier != nil {
		args = append(args, *patch.Tier)
		set = append(set, fmt.Sprintf("tier = $%d", len(args)))
	}
	if patch.Status != nil {
		args = append(args, *patch.Status)
		set = append(set, fmt.Sprintf("status = $%d", len(args)))
	}
	if patch.CurrentPeriodEnd != nil {
		args = append(args, *patch.CurrentPeriodEnd)
		set = append(set, fmt.Sprintf("current_period_end = $%d", len(args)))
	}
	if patch.ResetQuota {
		if patch.Tier != nil {
			quota, ok := QuotaForTier(*patch.Tier)
			if !ok {
				return fmt.Errorf("%w: %s", ErrUnknownTier, *patch.Tier)
			}
			args = append(args, quota)
			set = append(set,
				fmt.Sprintf("quota_remaining = $%d", len(args)),
				fmt.Sprintf("quota_max = $%d", len(args)),
			)
		} else {
			// Resolve the ceiling from the row's own tier inside the
			// statement; the reset stays a single round trip.
			set = append(set,
				"quota_remaining = "+quotaCaseSQL(),
				"quota_max = "+quotaCaseSQL(),
			)
		}
	}
	if patch.ClearExternalID {
		set = append(set, "external_subscription_id = NULL")
	}

	query := "UPDATE subscriptions SET " + strings.Join(set, ", ") + " WHERE external_subscription_id = $1"

	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update subscription by external ID: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// quotaCaseSQL renders the tier quota table as a SQL CASE expression so
// renewals can reset quota without reading the row first.
func quotaCaseSQL() string {
	var b strings.Builder
	b.WriteString("CASE tier")
	for _, tier := range []Tier{TierFree, TierPro, TierExpert} {
		fmt.Fprintf(&b, " WHEN '%s' THEN %d", tier, tierQuotas[tier])
	}
	b.WriteString(" ELSE quota_max END")
	return b.String()
}

func (s *PgStore) ConsumeQuota(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}

	// Guard and decrement in one statement so concurrent consumers can
	// never both spend the last unit.
	query := `
		UPDATE subscriptions
		SET quota_remaining = quota_remaining - 1, updated_at = now()
		WHERE user_id = $1 AND quota_remaining > 0`

	tag, err := s.db.Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("consume quota: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Zero rows means either no subscription or spent quota; only the
	// error classification needs a second query, the decision itself was
	// already made atomically above.
	var exists bool
	if err := s.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM subscriptions WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
		return fmt.Errorf("consume quota: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrQuotaExhausted
}

func (s *PgStore) DeleteByUserID(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM subscriptions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// PgCustomerStore implements CustomerStore on PostgreSQL.
type PgCustomerStore struct {
	db *pgxpool.Pool
}

func NewPgCustomerStore(db *pgxpool.Pool) *PgCustomerStore {
	if db == nil {
		panic("subscription: pgx pool is required")
	}
	return &PgCustomerStore{db: db}
}

func (s *PgCustomerStore) GetByUserID(ctx context.Context, userID string) (*Customer, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}

	var c Customer
	query := `SELECT user_id, external_customer_id, created_at, updated_at FROM customers WHERE user_id = $1`
	err := s.db.QueryRow(ctx, query, userID).Scan(&c.UserID, &c.ExternalCustomerID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}

func (s *PgCustomerStore) CreateIfAbsent(ctx context.Context, customer *Customer) error {
	if customer.UserID == "" {
		return ErrMissingUserID
	}

	query := `
		INSERT INTO customers (user_id, external_customer_id, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := s.db.Exec(ctx, query, customer.UserID, customer.ExternalCustomerID); err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

func (s *PgCustomerStore) Upsert(ctx context.Context, customer *Customer) error {
	if customer.UserID == "" {
		return ErrMissingUserID
	}

	query := `
		INSERT INTO customers (user_id, external_customer_id, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (user_id) DO UPDATE SET
			external_customer_id = EXCLUDED.external_customer_id,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, customer.UserID, customer.ExternalCustomerID); err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}
	return nil
}

func (s *PgCustomerStore) DeleteByUserID(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM customers WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	return nil
}

// PgPlanStore covers the cascade-delete slice of marketing plan storage.
type PgPlanStore struct {
	db *pgxpool.Pool
}

func NewPgPlanStore(db *pgxpool.Pool) *PgPlanStore {
	if db == nil {
		panic("subscription: pgx pool is required")
	}
	return &PgPlanStore{db: db}
}

func (s *PgPlanStore) DeleteByUserID(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrMissingUserID
	}

	if _, err := s.db.Exec(ctx, `DELETE FROM marketing_plans WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete marketing plans: %w", err)
	}
	return nil
}
