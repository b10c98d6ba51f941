// Package subscription holds the persisted billing state for each user:
// the subscription row (tier, status, quota) and the customer row that
// maps the user to the external billing provider.
//
// Every user has exactly one subscription, keyed by the opaque user ID
// issued by the identity provider. Paid subscriptions additionally carry
// the external subscription ID assigned by the billing provider so that
// billing lifecycle events, which reference only that ID, can be resolved
// back to a row.
//
// Store implementations must express every mutation as a single atomic
// statement scoped by a stable key (user ID or external subscription ID).
// Two concurrent deliveries for the same user then converge via
// last-write-wins on that key instead of racing a read-modify-write
// cycle. Both the Postgres and in-memory stores follow this contract.
//
// Quota ceilings come from a fixed per-tier table (free 1, pro 10,
// expert 20). The table is consulted at subscription creation and on
// every renewal so ceilings never drift from it.
package subscription
