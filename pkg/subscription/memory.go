package subscription

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development.
// All operations run under one mutex, which gives the same effective
// atomicity per key as the single-statement Postgres implementation.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]Subscription // keyed by user ID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]Subscription)}
}

func (s *MemoryStore) GetByUserID(ctx context.Context, userID string) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (s *MemoryStore) GetByExternalID(ctx context.Context, externalID string) (*Subscription, error) {
	if externalID == "" {
		return nil, ErrMissingExternalID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, row := range s.rows {
		if row.ExternalSubscriptionID == externalID {
			return &row, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Upsert(ctx context.Context, sub *Subscription) error {
	if sub.UserID == "" {
		return ErrMissingUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := *sub
	if existing, ok := s.rows[sub.UserID]; ok {
		row.CreatedAt = existing.CreatedAt
	}
	row.UpdatedAt = time.Now().UTC()
	s.rows[sub.UserID] = row
	return nil
}

func (s *MemoryStore) CreateIfAbsent(ctx context.Context, sub *Subscription) error {
	if sub.UserID == "" {
		return ErrMissingUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[sub.UserID]; ok {
		return nil
	}
	s.rows[sub.UserID] = *sub
	return nil
}

func (s *MemoryStore) UpdateByExternalID(ctx context.Context, externalID string, patch Patch) error {
	if externalID == "" {
		return ErrMissingExternalID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for userID, row := range s.rows {
		if row.ExternalSubscriptionID != externalID {
			continue
		}
		applyPatch(&row, patch, time.Now().UTC())
		s.rows[userID] = row
		return nil
	}
	return ErrNotFound
}

func (s *MemoryStore) ConsumeQuota(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[userID]
	if !ok {
		return ErrNotFound
	}
	if row.QuotaRemaining <= 0 {
		return ErrQuotaExhausted
	}
	row.QuotaRemaining--
	row.UpdatedAt = time.Now().UTC()
	s.rows[userID] = row
	return nil
}

func (s *MemoryStore) DeleteByUserID(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, userID)
	return nil
}

// applyPatch mutates sub in place the same way the Postgres store's
// UPDATE statement does. Quota reset resolves the ceiling from the tier
// after the patch, so a patch that changes the tier resets to the new
// tier's ceiling.
func applyPatch(sub *Subscription, patch Patch, now time.Time) {
	if patch.Tier != nil {
		sub.Tier = *patch.Tier
	}
	if patch.Status != nil {
		sub.Status = *patch.Status
	}
	if patch.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = *patch.CurrentPeriodEnd
	}
	if patch.ResetQuota {
		if quota, ok := QuotaForTier(sub.Tier); ok {
			sub.QuotaRemaining = quota
			sub.QuotaMax = quota
		}
	}
	if patch.ClearExternalID {
		sub.ExternalSubscriptionID = ""
	}
	sub.UpdatedAt = now
}

// MemoryCustomerStore is an in-memory CustomerStore for tests and local
// development.
type MemoryCustomerStore struct {
	mu   sync.RWMutex
	rows map[string]Customer
}

func NewMemoryCustomerStore() *MemoryCustomerStore {
	return &MemoryCustomerStore{rows: make(map[string]Customer)}
}

func (s *MemoryCustomerStore) GetByUserID(ctx context.Context, userID string) (*Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[userID]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return &row, nil
}

func (s *MemoryCustomerStore) CreateIfAbsent(ctx context.Context, customer *Customer) error {
	if customer.UserID == "" {
		return ErrMissingUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rows[customer.UserID]; ok {
		return nil
	}
	s.rows[customer.UserID] = *customer
	return nil
}

func (s *MemoryCustomerStore) Upsert(ctx context.Context, customer *Customer) error {
	if customer.UserID == "" {
		return ErrMissingUserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row := *customer
	if existing, ok := s.rows[customer.UserID]; ok {
		row.CreatedAt = existing.CreatedAt
	}
	row.UpdatedAt = time.Now().UTC()
	s.rows[customer.UserID] = row
	return nil
}

func (s *MemoryCustomerStore) DeleteByUserID(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, userID)
	return nil
}

// MemoryPlanStore satisfies PlanStore for tests: it only tracks which
// users still have plan rows.
type MemoryPlanStore struct {
	mu   sync.Mutex
	rows map[string]int // user ID -> plan count
}

func NewMemoryPlanStore() *MemoryPlanStore {
	return &MemoryPlanStore{rows: make(map[string]int)}
}

// Add records n plan rows for a user, seeding state for cascade tests.
func (s *MemoryPlanStore) Add(userID string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[userID] += n
}

// Count returns the number of plan rows recorded for a user.
func (s *MemoryPlanStore) Count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[userID]
}

func (s *MemoryPlanStore) DeleteByUserID(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rows, userID)
	return nil
}
