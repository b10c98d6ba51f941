package subscription_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthacademy/subscriptions/pkg/subscription"
)

func ptr[T any](v T) *T { return &v }

func TestMemoryStore_CreateIfAbsent_Idempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryStore()
	now := time.Now().UTC()

	require.NoError(t, store.CreateIfAbsent(ctx, subscription.NewFree("user_1", now)))

	// Simulate a pro upgrade, then a duplicate identity-creation event.
	pro := subscription.NewFree("user_1", now)
	pro.Tier = subscription.TierPro
	pro.QuotaRemaining, pro.QuotaMax = 10, 10
	pro.ExternalSubscriptionID = "sub_1"
	require.NoError(t, store.Upsert(ctx, pro))

	require.NoError(t, store.CreateIfAbsent(ctx, subscription.NewFree("user_1", now)))

	got, err := store.GetByUserID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, subscription.TierPro, got.Tier, "duplicate create must not clobber existing row")
	assert.Equal(t, 10, got.QuotaRemaining)
}

func TestMemoryStore_GetByExternalID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryStore()

	sub := subscription.NewFree("user_1", time.Now().UTC())
	sub.ExternalSubscriptionID = "sub_1"
	require.NoError(t, store.Upsert(ctx, sub))

	got, err := store.GetByExternalID(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "user_1", got.UserID)

	_, err = store.GetByExternalID(ctx, "sub_missing")
	require.ErrorIs(t, err, subscription.ErrNotFound)

	_, err = store.GetByExternalID(ctx, "")
	require.ErrorIs(t, err, subscription.ErrMissingExternalID)
}

func TestMemoryStore_UpdateByExternalID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	seed := func(t *testing.T) *subscription.MemoryStore {
		t.Helper()
		store := subscription.NewMemoryStore()
		sub := subscription.NewFree("user_1", time.Now().UTC())
		sub.Tier = subscription.TierPro
		sub.Status = subscription.StatusActive
		sub.QuotaRemaining, sub.QuotaMax = 3, 10
		sub.ExternalSubscriptionID = "sub_1"
		require.NoError(t, store.Upsert(ctx, sub))
		return store
	}

	t.Run("renewal resets quota to ceiling", func(t *testing.T) {
		t.Parallel()
		store := seed(t)

		err := store.UpdateByExternalID(ctx, "sub_1", subscription.Patch{
			Status:     ptr(subscription.StatusActive),
			ResetQuota: true,
		})
		require.NoError(t, err)

		got, err := store.GetByUserID(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, 10, got.QuotaRemaining)
		assert.Equal(t, 10, got.QuotaMax)
	})

	t.Run("status only patch leaves quota alone", func(t *testing.T) {
		t.Parallel()
		store := seed(t)

		err := store.UpdateByExternalID(ctx, "sub_1", subscription.Patch{
			Status: ptr(subscription.StatusPastDue),
		})
		require.NoError(t, err)

		got, err := store.GetByUserID(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPastDue, got.Status)
		assert.Equal(t, 3, got.QuotaRemaining)
		assert.Equal(t, subscription.TierPro, got.Tier)
	})

	t.Run("cancel reverts to free with cleared external ID", func(t *testing.T) {
		t.Parallel()
		store := seed(t)

		err := store.UpdateByExternalID(ctx, "sub_1", subscription.Patch{
			Tier:            ptr(subscription.TierFree),
			Status:          ptr(subscription.StatusCanceled),
			ResetQuota:      true,
			ClearExternalID: true,
		})
		require.NoError(t, err)

		got, err := store.GetByUserID(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.TierFree, got.Tier)
		assert.Equal(t, subscription.StatusCanceled, got.Status)
		assert.Equal(t, 1, got.QuotaRemaining)
		assert.Equal(t, 1, got.QuotaMax)
		assert.Empty(t, got.ExternalSubscriptionID)

		_, err = store.GetByExternalID(ctx, "sub_1")
		require.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("unknown external ID", func(t *testing.T) {
		t.Parallel()
		store := seed(t)

		err := store.UpdateByExternalID(ctx, "sub_other", subscription.Patch{
			Status: ptr(subscription.StatusActive),
		})
		require.ErrorIs(t, err, subscription.ErrNotFound)
	})
}

func TestMemoryStore_ConsumeQuota(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryStore()
	require.NoError(t, store.Upsert(ctx, subscription.NewFree("user_1", time.Now().UTC())))

	require.NoError(t, store.ConsumeQuota(ctx, "user_1"))
	require.ErrorIs(t, store.ConsumeQuota(ctx, "user_1"), subscription.ErrQuotaExhausted)
	require.ErrorIs(t, store.ConsumeQuota(ctx, "missing"), subscription.ErrNotFound)
}

func TestMemoryStore_ConsumeQuota_Concurrent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryStore()

	sub := subscription.NewFree("user_1", time.Now().UTC())
	sub.Tier = subscription.TierPro
	sub.QuotaRemaining, sub.QuotaMax = 10, 10
	require.NoError(t, store.Upsert(ctx, sub))

	const workers = 50
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.ConsumeQuota(ctx, "user_1")
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, subscription.ErrQuotaExhausted)
		}
	}
	assert.Equal(t, 10, succeeded, "exactly the quota ceiling may be consumed")

	got, err := store.GetByUserID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 0, got.QuotaRemaining)
}

func TestMemoryCustomerStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := subscription.NewMemoryCustomerStore()
	now := time.Now().UTC()

	first := subscription.NewCustomer("user_1", now)
	require.NoError(t, store.CreateIfAbsent(ctx, first))

	// A duplicate create keeps the original placeholder.
	require.NoError(t, store.CreateIfAbsent(ctx, subscription.NewCustomer("user_1", now)))
	got, err := store.GetByUserID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, first.ExternalCustomerID, got.ExternalCustomerID)

	// Checkout replaces the placeholder with the provider's ID.
	require.NoError(t, store.Upsert(ctx, &subscription.Customer{
		UserID:             "user_1",
		ExternalCustomerID: "cus_real",
	}))
	got, err = store.GetByUserID(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_real", got.ExternalCustomerID)

	require.NoError(t, store.DeleteByUserID(ctx, "user_1"))
	_, err = store.GetByUserID(ctx, "user_1")
	require.ErrorIs(t, err, subscription.ErrCustomerNotFound)
}
