package webhooks

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/growthacademy/subscriptions/pkg/event"
	"github.com/growthacademy/subscriptions/pkg/subscription"
	"github.com/growthacademy/subscriptions/pkg/webhook"
)

// Signature headers for inbound deliveries. The identity provider sends
// the timestamp in its own header with a bare "v1,<hex>" signature; the
// billing provider packs the timestamp into the signature header as
// "t=<ts>,v1=<hex>".
const (
	HeaderWebhookID        = "X-Webhook-Id"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
	HeaderWebhookSignature = "X-Webhook-Signature"
)

type handlers struct {
	cfg    Config
	engine Engine
	log    *slog.Logger
}

func (h *handlers) identity(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	sigHeader := r.Header.Get(HeaderWebhookSignature)
	tsHeader := r.Header.Get(HeaderWebhookTimestamp)
	if sigHeader == "" || tsHeader == "" {
		h.writeError(w, http.StatusBadRequest, "missing signature headers")
		return
	}

	sig, err := webhook.ParseSignatureHeader(sigHeader)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed signature header")
		return
	}
	if sig.Timestamp == 0 {
		ts, err := strconv.ParseInt(tsHeader, 10, 64)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "malformed timestamp header")
			return
		}
		sig.Timestamp = ts
	}

	if err := webhook.Verify(h.cfg.IdentitySecret, body, sig, webhook.DefaultMaxAge); err != nil {
		h.log.WarnContext(r.Context(), "identity webhook rejected",
			slog.String("webhook_id", r.Header.Get(HeaderWebhookID)),
			slog.Any("error", err))
		h.writeError(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	h.apply(w, r, body, event.NormalizeIdentity)
}

func (h *handlers) billing(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	sigHeader := r.Header.Get(HeaderWebhookSignature)
	if sigHeader == "" {
		h.writeError(w, http.StatusBadRequest, "missing signature header")
		return
	}

	sig, err := webhook.ParseSignatureHeader(sigHeader)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed signature header")
		return
	}
	if sig.Timestamp == 0 {
		h.writeError(w, http.StatusBadRequest, "missing timestamp token")
		return
	}

	if err := webhook.Verify(h.cfg.BillingSecret, body, sig, webhook.DefaultMaxAge); err != nil {
		h.log.WarnContext(r.Context(), "billing webhook rejected", slog.Any("error", err))
		h.writeError(w, http.StatusUnauthorized, "signature verification failed")
		return
	}

	h.apply(w, r, body, event.NormalizeBilling)
}

// apply runs a verified payload through normalization and the
// reconciliation engine, mapping failures onto the response contract.
// Internal and not-found failures answer 500 on purpose: the provider
// retries those, while 4xx responses it treats as final.
func (h *handlers) apply(w http.ResponseWriter, r *http.Request, body []byte, normalize func([]byte) (event.Event, error)) {
	ev, err := normalize(body)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed payload")
		return
	}

	if err := h.engine.Apply(r.Context(), ev); err != nil {
		if errors.Is(err, subscription.ErrUnknownTier) {
			h.writeError(w, http.StatusBadRequest, "unknown tier")
			return
		}
		h.log.ErrorContext(r.Context(), "webhook processing failed",
			slog.String("event_type", ev.Type()),
			slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "processing failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *handlers) status(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	sub, err := h.engine.Snapshot(r.Context(), userID)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "subscription not found")
			return
		}
		h.log.ErrorContext(r.Context(), "status check failed",
			slog.String("user_id", userID),
			slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "status check failed")
		return
	}

	h.writeJSON(w, http.StatusOK, sub)
}

// readBody drains the raw request body before anything parses it; the
// signature is computed over the exact bytes on the wire.
func (h *handlers) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxBodyBytes+1))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "unreadable body")
		return nil, false
	}
	if int64(len(body)) > h.cfg.MaxBodyBytes {
		h.writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return nil, false
	}
	if len(body) == 0 {
		h.writeError(w, http.StatusBadRequest, "empty body")
		return nil, false
	}
	return body, true
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("failed to encode response", slog.Any("error", err))
	}
}

func (h *handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]any{"error": msg})
}
