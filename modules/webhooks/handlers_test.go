package webhooks_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/growthacademy/subscriptions/modules/webhooks"
	"github.com/growthacademy/subscriptions/pkg/audit"
	"github.com/growthacademy/subscriptions/pkg/reconcile"
	"github.com/growthacademy/subscriptions/pkg/subscription"
	"github.com/growthacademy/subscriptions/pkg/webhook"
)

const (
	identitySecret = "identity-secret"
	billingSecret  = "billing-secret"
)

type fixture struct {
	srv  *httptest.Server
	subs *subscription.MemoryStore
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	subs := subscription.NewMemoryStore()
	engine := reconcile.New(
		subs,
		subscription.NewMemoryCustomerStore(),
		subscription.NewMemoryPlanStore(),
		audit.NewLogger(audit.NewMemoryStorage(), log),
		log,
	)

	cfg := webhooks.Config{
		IdentitySecret: identitySecret,
		BillingSecret:  billingSecret,
		MaxBodyBytes:   1 << 20,
	}

	srv := httptest.NewServer(webhooks.Router(cfg, engine, log))
	t.Cleanup(srv.Close)

	return fixture{srv: srv, subs: subs}
}

func (f fixture) postIdentity(t *testing.T, body string) *http.Response {
	t.Helper()

	ts := time.Now().Unix()
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/webhooks/identity", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(webhooks.HeaderWebhookID, "msg_test")
	req.Header.Set(webhooks.HeaderWebhookTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(webhooks.HeaderWebhookSignature, "v1,"+webhook.Sign(identitySecret, []byte(body), ts))

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (f fixture) postBilling(t *testing.T, body string) *http.Response {
	t.Helper()

	ts := time.Now().Unix()
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/webhooks/billing", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(webhooks.HeaderWebhookSignature,
		fmt.Sprintf("t=%d,v1=%s", ts, webhook.Sign(billingSecret, []byte(body), ts)))

	resp, err := f.srv.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func identityCreatedBody(userID string) string {
	return fmt.Sprintf(`{
		"type": "user.created",
		"data": {
			"id": %q,
			"first_name": "Ada",
			"last_name": "Lovelace",
			"email_addresses": [{"email_address": "ada@example.com"}]
		}
	}`, userID)
}

func checkoutBody(userID, subID, tier string) string {
	return fmt.Sprintf(`{
		"type": "checkout.session.completed",
		"data": {"object": {
			"subscription": %q,
			"customer": "cus_1",
			"metadata": {"userId": %q, "tier": %q}
		}}
	}`, subID, userID, tier)
}

func TestIdentityWebhook(t *testing.T) {
	t.Parallel()

	t.Run("valid delivery provisions free subscription", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.postIdentity(t, identityCreatedBody("user_1"))
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		sub, err := f.subs.GetByUserID(context.Background(), "user_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.TierFree, sub.Tier)
	})

	t.Run("missing signature headers", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp, err := f.srv.Client().Post(
			f.srv.URL+"/webhooks/identity", "application/json",
			strings.NewReader(identityCreatedBody("user_1")))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("wrong secret is unauthorized and mutates nothing", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		body := identityCreatedBody("user_1")
		ts := time.Now().Unix()

		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/webhooks/identity", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set(webhooks.HeaderWebhookTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(webhooks.HeaderWebhookSignature, "v1,"+webhook.Sign("wrong-secret", []byte(body), ts))

		resp, err := f.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		_, err = f.subs.GetByUserID(context.Background(), "user_1")
		assert.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("stale timestamp is unauthorized", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		body := identityCreatedBody("user_1")
		ts := time.Now().Add(-10 * time.Minute).Unix()

		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/webhooks/identity", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set(webhooks.HeaderWebhookTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(webhooks.HeaderWebhookSignature, "v1,"+webhook.Sign(identitySecret, []byte(body), ts))

		resp, err := f.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("malformed payload", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.postIdentity(t, `{"type": "user.created", "data": {}}`)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown event type is acknowledged", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.postIdentity(t, `{"type": "session.created", "data": {"id": "sess_1"}}`)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestBillingWebhook(t *testing.T) {
	t.Parallel()

	t.Run("checkout upgrades subscription", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.postIdentity(t, identityCreatedBody("user_1"))
		resp.Body.Close()

		resp = f.postBilling(t, checkoutBody("user_1", "sub_ext_1", "growth-pro"))
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		sub, err := f.subs.GetByUserID(context.Background(), "user_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.TierPro, sub.Tier)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, 10, sub.QuotaRemaining)
	})

	t.Run("unknown tier is a bad request", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.postBilling(t, checkoutBody("user_1", "sub_ext_1", "enterprise"))
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invoice for unknown subscription answers 500 for redelivery", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.postBilling(t, `{
			"type": "invoice.payment_succeeded",
			"data": {"object": {"subscription": "sub_never_seen"}}
		}`)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	})

	t.Run("signature without timestamp token", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		body := checkoutBody("user_1", "sub_ext_1", "pro")

		req, err := http.NewRequest(http.MethodPost, f.srv.URL+"/webhooks/billing", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set(webhooks.HeaderWebhookSignature, "v1="+webhook.Sign(billingSecret, []byte(body), 0))

		resp, err := f.srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("replayed delivery is idempotent", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		body := checkoutBody("user_1", "sub_ext_1", "pro")

		for range 3 {
			resp := f.postBilling(t, body)
			resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
		}

		sub, err := f.subs.GetByUserID(context.Background(), "user_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.TierPro, sub.Tier)
		assert.Equal(t, 10, sub.QuotaRemaining)
	})
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("returns snapshot", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp := f.postIdentity(t, identityCreatedBody("user_1"))
		resp.Body.Close()

		resp, err := f.srv.Client().Get(f.srv.URL + "/subscriptions/user_1")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var sub subscription.Subscription
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&sub))
		assert.Equal(t, "user_1", sub.UserID)
		assert.Equal(t, subscription.TierFree, sub.Tier)
	})

	t.Run("unknown user is not found", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		resp, err := f.srv.Client().Get(f.srv.URL + "/subscriptions/nobody")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("read does not rewrite expired state", func(t *testing.T) {
		t.Parallel()

		f := newFixture(t)
		ctx := context.Background()

		expired := subscription.NewFree("user_1", time.Now())
		expired.Tier = subscription.TierPro
		expired.Status = subscription.StatusActive
		expired.CurrentPeriodEnd = time.Now().Add(-48 * time.Hour)
		expired.QuotaRemaining = 7
		expired.QuotaMax = 10
		require.NoError(t, f.subs.Upsert(ctx, expired))

		resp, err := f.srv.Client().Get(f.srv.URL + "/subscriptions/user_1")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		sub, err := f.subs.GetByUserID(ctx, "user_1")
		require.NoError(t, err)
		assert.Equal(t, subscription.TierPro, sub.Tier)
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, 7, sub.QuotaRemaining)
	})
}
