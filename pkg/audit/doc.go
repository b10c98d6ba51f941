// Package audit records subscription state transitions to an
// append-only log.
//
// Auditing is strictly best-effort: Record swallows storage failures
// after logging them, so an unavailable audit table can never block or
// roll back a reconciliation decision that already committed. Callers
// therefore get no error back and must not depend on an entry existing.
package audit
