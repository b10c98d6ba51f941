// Package reconcile applies normalized webhook events to stored
// subscription state.
//
// Both providers deliver at-least-once and unordered, so every
// transition here is naturally idempotent: creations are
// insert-if-absent, updates are upserts or patches keyed by a stable
// identifier, and replaying an event converges on the same state
// instead of doubling side effects. There is no event-id dedup table;
// the event source does not guarantee stable IDs across retries, so
// correctness rests on the transitions themselves.
//
// Events that reference a subscription this system has not seen yet
// (an invoice paid before its checkout was observed) fail with
// subscription.ErrNotFound. Callers surface that as a retryable error
// so the provider redelivers once ordering catches up; the engine never
// fabricates a plausible-looking row.
//
// Subscriptions are never expired by comparing CurrentPeriodEnd against
// the wall clock. Downgrades happen only in response to explicit
// cancellation or payment-failure events, and the read-only Snapshot
// path shares no code with the write paths.
package reconcile
